package service_test

import (
	"context"
	"fmt"
	"testing"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		page, limit     int
		wantPage, wantN int
		wantOffset      int
	}{
		{0, 0, 1, 20, 0},
		{-3, -1, 1, 20, 0},
		{2, 10, 2, 10, 10},
		{3, 500, 3, 100, 200},
	}
	for _, tt := range tests {
		p := service.NewPage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, p.Page)
		assert.Equal(t, tt.wantN, p.Limit)
		assert.Equal(t, tt.wantOffset, p.Offset())
	}
}

func TestLedgerPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "pages@example.com", domain.RoleNormal)
	f.pack(t, "coins_10", 10, 0)
	for i := range 5 {
		f.credit(t, u.ID, "coins_10", fmt.Sprintf("GPA.P%d", i))
	}

	first, err := f.queries.Ledger(ctx, u.ID, service.NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	require.Len(t, first.Items, 2)
	assert.Equal(t, int64(50), first.Items[0].BalanceAfter, "newest first")

	last, err := f.queries.Ledger(ctx, u.ID, service.NewPage(3, 2))
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, int64(10), last.Items[0].BalanceAfter)

	past, err := f.queries.Ledger(ctx, u.ID, service.NewPage(9, 2))
	require.NoError(t, err)
	assert.NotNil(t, past.Items)
	assert.Empty(t, past.Items)
}

func TestEmptyAccountQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "empty@example.com", domain.RoleNormal)

	balance, err := f.queries.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	receipts, err := f.queries.Receipts(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, receipts)
	assert.Empty(t, receipts)

	packs, err := f.queries.CoinPacks(ctx, domain.PlatformApple)
	require.NoError(t, err)
	assert.NotNil(t, packs)

	books, err := f.queries.Bookstore(ctx)
	require.NoError(t, err)
	assert.NotNil(t, books)
}

func TestAdminReceipts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a@example.com", domain.RoleNormal)
	b := f.user(t, "b@example.com", domain.RoleNormal)
	f.pack(t, "coins_100", 90, 5)
	f.credit(t, a.ID, "coins_100", "GPA.A")
	f.credit(t, b.ID, "coins_100", "GPA.B")

	res, err := f.queries.AdminReceipts(ctx, service.NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 2)
	emails := []string{res.Items[0].Email, res.Items[1].Email}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, emails)
	assert.Equal(t, "coins_100", res.Items[0].ProductName)

	ledger, err := f.queries.AdminLedger(ctx, b.ID, service.NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.Total)
}

func TestCoinPacksFilteredAndSorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, "coins_b", 10, 0)
	f.pack(t, "coins_a", 20, 0)
	require.NoError(t, f.store.Read().CoinPacks().Upsert(ctx, &domain.CoinPack{
		Platform: domain.PlatformApple, ProductID: "apple_pack", BaseAmount: 10, IsActive: true,
	}))

	google, err := f.queries.CoinPacks(ctx, domain.PlatformGoogle)
	require.NoError(t, err)
	assert.Len(t, google, 2)

	all, err := f.queries.CoinPacks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
