package service_test

import (
	"context"
	"testing"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinLedgerApplyDelta(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ledger@example.com", domain.RoleNormal)
	ctx := context.Background()

	apply := func(change int64, typ domain.LedgerType) (*domain.LedgerEntry, error) {
		var entry *domain.LedgerEntry
		err := f.store.InTx(ctx, func(ctx context.Context, tx service.Tx) error {
			if err := f.ledger.Lock(ctx, tx.Ledger(), u.ID); err != nil {
				return err
			}
			var err error
			entry, err = f.ledger.ApplyDelta(ctx, tx.Ledger(), u.ID, change, typ, "test")
			return err
		})
		return entry, err
	}

	e, err := apply(100, domain.LedgerTypeIAP)
	require.NoError(t, err)
	assert.Equal(t, int64(100), e.BalanceAfter)

	e, err = apply(-30, domain.LedgerTypeBookPurchase)
	require.NoError(t, err)
	assert.Equal(t, int64(70), e.BalanceAfter)

	_, err = apply(-71, domain.LedgerTypeBookPurchase)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = apply(0, domain.LedgerTypeIAP)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = apply(5, domain.LedgerType("GIFT"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	e, err = apply(-70, domain.LedgerTypeBookPurchase)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.BalanceAfter, "spending down to zero is allowed")

	entries := f.entries(t, u.ID)
	require.Len(t, entries, 3)
	requireChain(t, entries)
}

func TestCoinLedgerLockUnknownUser(t *testing.T) {
	f := newFixture(t)
	err := f.store.InTx(context.Background(), func(ctx context.Context, tx service.Tx) error {
		return f.ledger.Lock(ctx, tx.Ledger(), 404)
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", service.OutcomeApplied.String())
	assert.Equal(t, "duplicate", service.OutcomeDuplicate.String())
	assert.Equal(t, "already_owned", service.OutcomeAlreadyOwned.String())
	assert.Equal(t, "unknown", service.Outcome(0).String())
}
