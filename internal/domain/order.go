package domain

import "time"

// OrderStatusSuccess is written for every committed purchase.
const OrderStatusSuccess = "SUCCESS"

// StoreItem is a catalog entry purchasable with coins.
type StoreItem struct {
	StoryListID int64     `db:"story_list_id" json:"storyListId"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	CoverImage  string    `db:"cover_image" json:"coverImage"`
	PriceCoins  int64     `db:"price_coins" json:"priceCoins"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// BookOrder is a committed coin-spend. (UserID, IdempotencyKey) is unique.
type BookOrder struct {
	ID             int64     `db:"id" json:"orderId"`
	UserID         int64     `db:"user_id" json:"userId"`
	StoryListID    int64     `db:"story_list_id" json:"storyListId"`
	PriceCoins     int64     `db:"price_coins" json:"priceCoins"`
	Status         string    `db:"status" json:"status"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotencyKey"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Entitlement grants permanent access to a catalog item. (UserID, StoryListID) is unique.
type Entitlement struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"userId"`
	StoryListID int64     `db:"story_list_id" json:"storyListId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// EntitlementItem is an entitlement with the catalog item it unlocks.
type EntitlementItem struct {
	StoryListID int64      `json:"storyListId"`
	CreatedAt   time.Time  `json:"createdAt"`
	Story       *StoreItem `json:"story,omitempty"`
}
