package repository

import (
	"context"
	"errors"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByIdempotencyKey returns nil when the key is new
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.BookOrder, error) {
	var o domain.BookOrder
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, story_list_id, price_coins, status, idempotency_key, created_at
		FROM book_orders
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key).Scan(&o.ID, &o.UserID, &o.StoryListID, &o.PriceCoins, &o.Status, &o.IdempotencyKey, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Insert writes an order; a repeated key is domain.ErrDuplicateOperation
func (r *OrderRepository) Insert(ctx context.Context, o *domain.BookOrder) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO book_orders (user_id, story_list_id, price_coins, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, o.UserID, o.StoryListID, o.PriceCoins, o.Status, o.IdempotencyKey).Scan(&o.ID, &o.CreatedAt)
	if isUniqueViolation(err, "") {
		return domain.ErrDuplicateOperation
	}
	return err
}
