package service

import (
	"context"
	"fmt"

	"storyshelf/internal/domain"
)

// Outcome tags how a coin workflow resolved.
type Outcome int

const (
	// OutcomeApplied means new receipt, order or ledger rows were committed.
	OutcomeApplied Outcome = iota + 1
	// OutcomeDuplicate means the operation was already processed; the prior result is returned.
	OutcomeDuplicate
	// OutcomeAlreadyOwned means the item was entitled before; nothing was written.
	OutcomeAlreadyOwned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAlreadyOwned:
		return "already_owned"
	}
	return "unknown"
}

// CoinLedger computes balances and appends ledger entries. Its methods run
// inside the caller's unit of work so sibling writes commit together.
type CoinLedger struct{}

// NewCoinLedger creates the ledger engine.
func NewCoinLedger() *CoinLedger {
	return &CoinLedger{}
}

// Lock acquires the per-user write lock. Must be called within a transaction.
func (l *CoinLedger) Lock(ctx context.Context, store LedgerStore, userID int64) error {
	if err := store.LockAccount(ctx, userID); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

// Balance is the current balance: BalanceAfter of the newest entry, or 0.
func (l *CoinLedger) Balance(ctx context.Context, store LedgerStore, userID int64) (int64, error) {
	balance, err := store.LatestBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("latest balance: %w", err)
	}
	return balance, nil
}

// ApplyDelta appends one entry with BalanceAfter = latest + change. A debit
// that would go negative fails with domain.ErrInsufficientBalance and writes
// nothing. The caller must hold the account lock from Lock.
func (l *CoinLedger) ApplyDelta(ctx context.Context, store LedgerStore, userID, change int64, typ domain.LedgerType, source string) (*domain.LedgerEntry, error) {
	if change == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("ledger type %q: %w", typ, domain.ErrInvalidAmount)
	}

	latest, err := l.Balance(ctx, store, userID)
	if err != nil {
		return nil, err
	}

	next := latest + change
	if change < 0 && next < 0 {
		return nil, domain.ErrInsufficientBalance
	}

	entry := &domain.LedgerEntry{
		UserID:       userID,
		ChangeAmount: change,
		BalanceAfter: next,
		Type:         typ,
		Source:       source,
	}
	if err := store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}
