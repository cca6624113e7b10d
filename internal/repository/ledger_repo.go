package repository

import (
	"context"
	"errors"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
)

type LedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LockAccount takes the user row lock that serializes balance writers.
func (r *LedgerRepository) LockAccount(ctx context.Context, userID int64) error {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return err
}

// LatestBalance returns balance_after of the newest entry, or 0.
func (r *LedgerRepository) LatestBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx,
		`SELECT balance_after
		 FROM coin_ledger
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT 1`,
		userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// Insert appends an entry
func (r *LedgerRepository) Insert(ctx context.Context, e *domain.LedgerEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO coin_ledger (user_id, change_amount, balance_after, type, source)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.UserID, e.ChangeAmount, e.BalanceAfter, e.Type, e.Source,
	).Scan(&e.ID, &e.CreatedAt)
}

// List returns a page of entries newest first and the total count
func (r *LedgerRepository) List(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM coin_ledger WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, change_amount, balance_after, type, source, created_at
		 FROM coin_ledger
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ChangeAmount, &e.BalanceAfter, &e.Type, &e.Source, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
