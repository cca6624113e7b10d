package repository

import (
	"context"
	"errors"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
)

type BookstoreRepository struct {
	db DBTX
}

func NewBookstoreRepository(db DBTX) *BookstoreRepository {
	return &BookstoreRepository{db: db}
}

// FindActive returns nil for an unknown or inactive item
func (r *BookstoreRepository) FindActive(ctx context.Context, storyListID int64) (*domain.StoreItem, error) {
	var it domain.StoreItem
	err := r.db.QueryRow(ctx, `
		SELECT story_list_id, title, author, cover_image, price_coins, is_active, created_at
		FROM book_store_items
		WHERE story_list_id = $1 AND is_active
	`, storyListID).Scan(&it.StoryListID, &it.Title, &it.Author, &it.CoverImage, &it.PriceCoins, &it.IsActive, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListActive returns active items newest first
func (r *BookstoreRepository) ListActive(ctx context.Context) ([]domain.StoreItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT story_list_id, title, author, cover_image, price_coins, is_active, created_at
		FROM book_store_items
		WHERE is_active
		ORDER BY created_at DESC, story_list_id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StoreItem
	for rows.Next() {
		var it domain.StoreItem
		if err := rows.Scan(&it.StoryListID, &it.Title, &it.Author, &it.CoverImage, &it.PriceCoins, &it.IsActive, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Upsert creates or replaces an item
func (r *BookstoreRepository) Upsert(ctx context.Context, it *domain.StoreItem) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO book_store_items (story_list_id, title, author, cover_image, price_coins, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (story_list_id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			cover_image = EXCLUDED.cover_image,
			price_coins = EXCLUDED.price_coins,
			is_active = EXCLUDED.is_active
		RETURNING created_at
	`, it.StoryListID, it.Title, it.Author, it.CoverImage, it.PriceCoins, it.IsActive).Scan(&it.CreatedAt)
}
