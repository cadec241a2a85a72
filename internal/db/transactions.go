package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one saved income or expense row.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	WalletID        uuid.UUID       `json:"walletId"`
	CategoryID      *uuid.UUID      `json:"categoryId,omitempty"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Note            string          `json:"note,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	SlipImageURL    string          `json:"slipImageUrl,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       *time.Time      `json:"updatedAt,omitempty"`
}

// SaveTransaction inserts a transaction and fills in its id and created_at.
func SaveTransaction(ctx context.Context, tx *Transaction) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	query := `
		INSERT INTO transactions (
			user_id, wallet_id, category_id, type, amount, date, note,
			reference_number, slip_image_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	return Pool.QueryRow(ctx, query,
		tx.UserID, tx.WalletID, tx.CategoryID, tx.Type,
		tx.Amount, tx.Date, tx.Note, tx.ReferenceNumber, tx.SlipImageURL,
	).Scan(&tx.ID, &tx.CreatedAt)
}

// GetTransactionsPaginated returns one page of a user's transactions plus the
// total row count.
func GetTransactionsPaginated(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error) {
	if Pool == nil {
		return nil, 0, ErrNoDatabase
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_id = $1::uuid`
	if err := Pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, wallet_id, category_id, type, amount, date,
		       COALESCE(note, ''), COALESCE(reference_number, ''),
		       COALESCE(slip_image_url, ''), created_at, updated_at
		FROM transactions
		WHERE user_id = $1::uuid
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.WalletID, &tx.CategoryID, &tx.Type,
			&tx.Amount, &tx.Date, &tx.Note, &tx.ReferenceNumber,
			&tx.SlipImageURL, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}

	return txs, total, rows.Err()
}

// GetTransactionByID retrieves one of the user's transactions.
func GetTransactionByID(ctx context.Context, userID, txID string) (*Transaction, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, user_id, wallet_id, category_id, type, amount, date,
		       COALESCE(note, ''), COALESCE(reference_number, ''),
		       COALESCE(slip_image_url, ''), created_at, updated_at
		FROM transactions
		WHERE user_id = $1::uuid AND id = $2::uuid
	`

	var tx Transaction
	err := Pool.QueryRow(ctx, query, userID, txID).Scan(
		&tx.ID, &tx.UserID, &tx.WalletID, &tx.CategoryID, &tx.Type,
		&tx.Amount, &tx.Date, &tx.Note, &tx.ReferenceNumber,
		&tx.SlipImageURL, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateTransaction updates the given columns on one of the user's rows.
func UpdateTransaction(ctx context.Context, userID, txID string, updates map[string]interface{}) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	// Build dynamic UPDATE query
	sets := []string{}
	args := []interface{}{}
	i := 1
	for key, value := range updates {
		sets = append(sets, fmt.Sprintf("%s = $%d", key, i))
		args = append(args, value)
		i++
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now())
	i++

	args = append(args, userID, txID)

	query := fmt.Sprintf("UPDATE transactions SET %s WHERE user_id = $%d::uuid AND id = $%d::uuid",
		strings.Join(sets, ", "), i, i+1)

	_, err := Pool.Exec(ctx, query, args...)
	return err
}

// DeleteTransaction removes one of the user's transactions.
func DeleteTransaction(ctx context.Context, userID, txID string) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	query := `DELETE FROM transactions WHERE user_id = $1::uuid AND id = $2::uuid`
	_, err := Pool.Exec(ctx, query, userID, txID)
	return err
}

// GetNotesWithReferences returns the notes of the user's transactions that
// carry a slip reference number, for the duplicate check on slip imports.
func GetNotesWithReferences(ctx context.Context, userID string) ([]string, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT note
		FROM transactions
		WHERE user_id = $1::uuid AND COALESCE(note, '') <> ''
		      AND COALESCE(reference_number, '') <> ''
	`

	rows, err := Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}

// MonthlyStats summarizes one user's current month.
type MonthlyStats struct {
	Month        string          `json:"month"`
	Count        int             `json:"count"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	Balance      decimal.Decimal `json:"balance"`
}

// GetMonthlyStats returns the user's totals for the current calendar month.
func GetMonthlyStats(ctx context.Context, userID string) (*MonthlyStats, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0)
		FROM transactions
		WHERE user_id = $1::uuid
		AND DATE_TRUNC('month', date) = DATE_TRUNC('month', CURRENT_DATE)
	`

	stats := &MonthlyStats{
		Month: time.Now().Format("2006-01"),
	}

	err := Pool.QueryRow(ctx, query, userID).Scan(
		&stats.Count, &stats.TotalExpense, &stats.TotalIncome,
	)
	if err != nil {
		return nil, err
	}

	stats.Balance = stats.TotalIncome.Sub(stats.TotalExpense)
	return stats, nil
}
