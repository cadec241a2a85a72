package db

import (
	"context"

	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

// GetCategories returns the user's categories in creation order. The order
// matters: category resolution picks the first match in list order.
func GetCategories(ctx context.Context, userID string) ([]models.Category, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, name, type
		FROM categories
		WHERE user_id = $1::uuid
		ORDER BY created_at, id
	`

	rows, err := Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}

	return cats, rows.Err()
}

// CreateCategory inserts a category and returns its id.
func CreateCategory(ctx context.Context, userID, name, catType string) (string, error) {
	if Pool == nil {
		return "", ErrNoDatabase
	}

	var id string
	err := Pool.QueryRow(ctx,
		`INSERT INTO categories (user_id, name, type) VALUES ($1::uuid, $2, $3) RETURNING id`,
		userID, name, catType,
	).Scan(&id)
	return id, err
}
