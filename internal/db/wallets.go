package db

import (
	"context"

	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

// GetWallets returns the user's wallets in creation order.
func GetWallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, name
		FROM wallets
		WHERE user_id = $1::uuid
		ORDER BY created_at, id
	`

	rows, err := Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}

	return wallets, rows.Err()
}

// WalletBelongsToUser reports whether the wallet exists and is the user's.
func WalletBelongsToUser(ctx context.Context, userID, walletID string) (bool, error) {
	if Pool == nil {
		return false, ErrNoDatabase
	}

	var exists bool
	err := Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1::uuid AND id = $2::uuid)`,
		userID, walletID,
	).Scan(&exists)
	return exists, err
}
