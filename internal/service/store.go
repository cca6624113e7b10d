package service

import (
	"context"
	"time"

	"storyshelf/internal/domain"
)

// LedgerStore is the append-only coin ledger.
type LedgerStore interface {
	// LockAccount serializes ledger writers for one user until the
	// surrounding transaction ends. Returns domain.ErrUserNotFound.
	LockAccount(ctx context.Context, userID int64) error
	// LatestBalance is BalanceAfter of the newest entry, or 0.
	LatestBalance(ctx context.Context, userID int64) (int64, error)
	Insert(ctx context.Context, e *domain.LedgerEntry) error
	// List returns entries newest first plus the total count.
	List(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, int, error)
}

// ReceiptStore keeps verified IAP receipts. Insert returns
// domain.ErrDuplicateOperation when (platform, transaction_id) exists.
type ReceiptStore interface {
	FindByTransaction(ctx context.Context, platform domain.Platform, transactionID string) (*domain.IAPReceipt, error)
	Insert(ctx context.Context, r *domain.IAPReceipt) error
	ListByUser(ctx context.Context, userID int64) ([]domain.IAPReceipt, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.AdminReceipt, int, error)
}

// CoinPackStore maps store products to coin grants.
type CoinPackStore interface {
	// FindActive returns nil when the pack is unknown or inactive.
	FindActive(ctx context.Context, platform domain.Platform, productID string) (*domain.CoinPack, error)
	// ListActive filters by platform unless it is empty.
	ListActive(ctx context.Context, platform domain.Platform) ([]domain.CoinPack, error)
	Upsert(ctx context.Context, p *domain.CoinPack) error
}

// OrderStore keeps book orders. Insert returns domain.ErrDuplicateOperation
// when (user_id, idempotency_key) exists.
type OrderStore interface {
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.BookOrder, error)
	Insert(ctx context.Context, o *domain.BookOrder) error
}

// EntitlementStore keeps permanent access grants. Insert returns
// domain.ErrAlreadyOwned when (user_id, story_list_id) exists.
type EntitlementStore interface {
	Exists(ctx context.Context, userID, storyListID int64) (bool, error)
	Insert(ctx context.Context, e *domain.Entitlement) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.EntitlementItem, int, error)
}

// CatalogStore is the coin-priced bookstore catalog.
type CatalogStore interface {
	// FindActive returns nil when the item is unknown or inactive.
	FindActive(ctx context.Context, storyListID int64) (*domain.StoreItem, error)
	ListActive(ctx context.Context) ([]domain.StoreItem, error)
	Upsert(ctx context.Context, item *domain.StoreItem) error
}

// UserStore is the account store. Lookups return nil, nil when nothing matches.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByProvider(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error)
	// Create returns domain.ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *domain.User) error
	UpdateProfile(ctx context.Context, id int64, upd domain.ProfileUpdate) (*domain.User, error)
	SetEmailVerified(ctx context.Context, id int64) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	LinkProvider(ctx context.Context, id int64, provider domain.Provider, providerID string) error
	// Delete removes the account and every row it owns.
	Delete(ctx context.Context, id int64) error
}

// AuditStore persists audit log rows.
type AuditStore interface {
	Insert(ctx context.Context, log *domain.AuditLog) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error)
}

// Tx is a unit of work. Every store it returns shares one transaction.
type Tx interface {
	Ledger() LedgerStore
	Receipts() ReceiptStore
	CoinPacks() CoinPackStore
	Orders() OrderStore
	Entitlements() EntitlementStore
	Catalog() CatalogStore
	Users() UserStore
}

// TxRunner opens units of work. fn's writes commit when it returns nil and
// roll back otherwise. Read returns stores outside any transaction; it must
// not be used from inside fn.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Read() Tx
}

// KVStore is a string key-value store with per-key expiry.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ok=false for a missing or expired key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Del(ctx context.Context, key string) error
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}
