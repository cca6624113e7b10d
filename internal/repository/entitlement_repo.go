package repository

import (
	"context"
	"time"

	"storyshelf/internal/domain"
)

type EntitlementRepository struct {
	db DBTX
}

func NewEntitlementRepository(db DBTX) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) Exists(ctx context.Context, userID, storyListID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM entitlements WHERE user_id = $1 AND story_list_id = $2)
	`, userID, storyListID).Scan(&exists)
	return exists, err
}

// Insert grants access; an existing grant is domain.ErrAlreadyOwned
func (r *EntitlementRepository) Insert(ctx context.Context, e *domain.Entitlement) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO entitlements (user_id, story_list_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, e.UserID, e.StoryListID).Scan(&e.ID, &e.CreatedAt)
	if isUniqueViolation(err, "") {
		return domain.ErrAlreadyOwned
	}
	return err
}

// ListByUser returns a page of grants newest first with their catalog item
func (r *EntitlementRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.EntitlementItem, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM entitlements WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.story_list_id, e.created_at,
		       b.title, b.author, b.cover_image, b.price_coins, b.is_active, b.created_at
		FROM entitlements e
		LEFT JOIN book_store_items b ON b.story_list_id = e.story_list_id
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.EntitlementItem
	for rows.Next() {
		var (
			item                 domain.EntitlementItem
			title, author, cover *string
			price                *int64
			active               *bool
			itemCreated          *time.Time
		)
		if err := rows.Scan(&item.StoryListID, &item.CreatedAt, &title, &author, &cover, &price, &active, &itemCreated); err != nil {
			return nil, 0, err
		}
		if title != nil {
			item.Story = &domain.StoreItem{
				StoryListID: item.StoryListID,
				Title:       *title,
				Author:      *author,
				CoverImage:  *cover,
				PriceCoins:  *price,
				IsActive:    *active,
				CreatedAt:   *itemCreated,
			}
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}
