package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyshelf/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const defaultTxTimeout = 10 * time.Second

// TxManager runs units of work on a pool.
type TxManager struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewTxManager(pool *pgxpool.Pool, timeout time.Duration) *TxManager {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &TxManager{pool: pool, timeout: timeout}
}

// InTx runs fn in a read committed transaction bounded by the timeout. The
// caller's cancellation is not propagated: once started, a financial
// transaction either commits or times out.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, Stores{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("commit tx: timed out after %s: %w", m.timeout, err)
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Read returns repositories on the pool, outside any transaction.
func (m *TxManager) Read() service.Tx {
	return Stores{db: m.pool}
}

// Stores binds every repository to one DBTX.
type Stores struct {
	db DBTX
}

// NewStores binds the repositories to db.
func NewStores(db DBTX) Stores {
	return Stores{db: db}
}

func (s Stores) Ledger() service.LedgerStore { return NewLedgerRepository(s.db) }
func (s Stores) Receipts() service.ReceiptStore { return NewReceiptRepository(s.db) }
func (s Stores) CoinPacks() service.CoinPackStore { return NewCoinPackRepository(s.db) }
func (s Stores) Orders() service.OrderStore { return NewOrderRepository(s.db) }
func (s Stores) Entitlements() service.EntitlementStore { return NewEntitlementRepository(s.db) }
func (s Stores) Catalog() service.CatalogStore { return NewBookstoreRepository(s.db) }
func (s Stores) Users() service.UserStore { return NewUserRepository(s.db) }
