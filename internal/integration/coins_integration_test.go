package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"storyshelf/internal/domain"
	"storyshelf/internal/migrations"
	"storyshelf/internal/repository"
	"storyshelf/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	pool      *pgxpool.Pool
	txm       *repository.TxManager
	iap       *service.IAPService
	purchases *service.PurchaseService
	users     *service.UserService
}

// setup connects to DATABASE_URL, migrates and empties the tables.
func setup(t *testing.T) *env {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.Up(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users, coin_ledger, coin_packs, iap_receipts, book_store_items, book_orders, entitlements, audit_logs RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	txm := repository.NewTxManager(pool, 10*time.Second)
	audit := service.NewAuditService(repository.NewAuditRepository(pool))
	ledger := service.NewCoinLedger()
	return &env{
		pool:      pool,
		txm:       txm,
		iap:       service.NewIAPService(txm, ledger, audit),
		purchases: service.NewPurchaseService(txm, ledger, audit),
		users:     service.NewUserService(txm, audit),
	}
}

func (e *env) seed(t *testing.T, email string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{Email: email, Name: "Reader", EmailVerified: true, RoleLevel: domain.RoleNormal}
	require.NoError(t, e.txm.Read().Users().Create(ctx, u))
	require.NoError(t, e.txm.Read().CoinPacks().Upsert(ctx, &domain.CoinPack{
		Platform: domain.PlatformGoogle, ProductID: "coins_100", Name: "100 coins",
		BaseAmount: 90, BonusAmount: 5, Price: decimal.RequireFromString("1.99"), Currency: "USD", IsActive: true,
	}))
	require.NoError(t, e.txm.Read().Catalog().Upsert(ctx, &domain.StoreItem{
		StoryListID: 7, Title: "Night Train", PriceCoins: 40, IsActive: true,
	}))
	return u
}

func (e *env) ledger(t *testing.T, userID int64) []domain.LedgerEntry {
	t.Helper()
	items, _, err := e.txm.Read().Ledger().List(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	return items
}

func TestCreditAndPurchasePostgres(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	u := e.seed(t, "pg@example.com")

	credit, err := e.iap.Credit(ctx, u.ID, domain.PlatformGoogle, "coins_100", "T1", []byte(`{"orderId":"T1"}`))
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeApplied, credit.Outcome)
	assert.Equal(t, int64(95), credit.Balance)

	dup, err := e.iap.Credit(ctx, u.ID, domain.PlatformGoogle, "coins_100", "T1", nil)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeDuplicate, dup.Outcome)
	assert.Equal(t, int64(95), dup.CoinsGranted)

	first, err := e.purchases.Purchase(ctx, u.ID, 7, "K1")
	require.NoError(t, err)
	assert.Equal(t, int64(55), first.Balance)

	again, err := e.purchases.Purchase(ctx, u.ID, 7, "K1")
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeDuplicate, again.Outcome)
	assert.Equal(t, first.Order.ID, again.Order.ID)

	owned, err := e.purchases.Purchase(ctx, u.ID, 7, "K2")
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAlreadyOwned, owned.Outcome)

	entries := e.ledger(t, u.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{55, 95, 90}, []int64{entries[0].BalanceAfter, entries[1].BalanceAfter, entries[2].BalanceAfter})
}

func TestConcurrentCreditsPostgres(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	u := e.seed(t, "race@example.com")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every transaction id is submitted twice
			tx := fmt.Sprintf("T-%d", i%5)
			_, errs[i] = e.iap.Credit(ctx, u.ID, domain.PlatformGoogle, "coins_100", tx, nil)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	entries := e.ledger(t, u.ID)
	require.Len(t, entries, 10, "five receipts, base and bonus each")
	var prev int64
	for i := len(entries) - 1; i >= 0; i-- {
		assert.Equal(t, prev+entries[i].ChangeAmount, entries[i].BalanceAfter)
		prev = entries[i].BalanceAfter
	}
	assert.Equal(t, int64(5*95), prev)
}

// Each user starts at 50 and races a +100 credit against a 30 coin
// purchase; the row lock must serialize them into one consistent chain.
func TestConcurrentCreditAndDebitPostgres(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	for _, pack := range []*domain.CoinPack{
		{Platform: domain.PlatformGoogle, ProductID: "coins_50", Name: "50 coins", BaseAmount: 50, Price: decimal.RequireFromString("0.99"), Currency: "USD", IsActive: true},
		{Platform: domain.PlatformGoogle, ProductID: "coins_100_flat", Name: "100 coins", BaseAmount: 100, Price: decimal.RequireFromString("1.99"), Currency: "USD", IsActive: true},
	} {
		require.NoError(t, e.txm.Read().CoinPacks().Upsert(ctx, pack))
	}
	require.NoError(t, e.txm.Read().Catalog().Upsert(ctx, &domain.StoreItem{
		StoryListID: 13, Title: "Harbour Lights", PriceCoins: 30, IsActive: true,
	}))

	const rounds = 5
	users := make([]*domain.User, rounds)
	for i := range users {
		users[i] = e.seed(t, fmt.Sprintf("mixed-%d@example.com", i))
		_, err := e.iap.Credit(ctx, users[i].ID, domain.PlatformGoogle, "coins_50", fmt.Sprintf("START-%d", i), nil)
		require.NoError(t, err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2*rounds)
	for i, u := range users {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[2*i] = e.iap.Credit(ctx, u.ID, domain.PlatformGoogle, "coins_100_flat", fmt.Sprintf("MIXED-%d", i), nil)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[2*i+1] = e.purchases.Purchase(ctx, u.ID, 13, fmt.Sprintf("MIXED-%d", i))
		}()
	}
	close(start)
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, u := range users {
		balance, err := e.txm.Read().Ledger().LatestBalance(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(120), balance, "user %d", u.ID)

		entries := e.ledger(t, u.ID)
		require.Len(t, entries, 3)
		var prev int64
		for i := len(entries) - 1; i >= 0; i-- {
			assert.Equal(t, prev+entries[i].ChangeAmount, entries[i].BalanceAfter)
			assert.GreaterOrEqual(t, entries[i].BalanceAfter, int64(0))
			prev = entries[i].BalanceAfter
		}
	}
}

func TestDeleteAccountPostgres(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	u := e.seed(t, "delete@example.com")

	_, err := e.iap.Credit(ctx, u.ID, domain.PlatformGoogle, "coins_100", "T-DEL", nil)
	require.NoError(t, err)
	_, err = e.purchases.Purchase(ctx, u.ID, 7, "K1")
	require.NoError(t, err)

	require.NoError(t, e.users.DeleteAccount(ctx, u.ID, u.ID))

	var rows int
	require.NoError(t, e.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM coin_ledger WHERE user_id = $1)
		      + (SELECT count(*) FROM iap_receipts WHERE user_id = $1)
		      + (SELECT count(*) FROM book_orders WHERE user_id = $1)
		      + (SELECT count(*) FROM entitlements WHERE user_id = $1)`, u.ID).Scan(&rows))
	assert.Zero(t, rows)
}
