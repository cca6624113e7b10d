package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"storyshelf/internal/cache"
	"storyshelf/internal/domain"
	"storyshelf/internal/repository/memstore"
	"storyshelf/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memstore.Store
	audit     *service.AuditService
	ledger    *service.CoinLedger
	iap       *service.IAPService
	purchases *service.PurchaseService
	queries   *service.QueryService
	users     *service.UserService
	verifier  *stubVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	audit := service.NewAuditService(store.Audit())
	ledger := service.NewCoinLedger()
	verifier := &stubVerifier{platform: domain.PlatformGoogle}
	return &fixture{
		store:     store,
		audit:     audit,
		ledger:    ledger,
		iap:       service.NewIAPService(store, ledger, audit, verifier),
		purchases: service.NewPurchaseService(store, ledger, audit),
		queries:   service.NewQueryService(store),
		users:     service.NewUserService(store, audit),
		verifier:  verifier,
	}
}

func (f *fixture) user(t *testing.T, email string, role int) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Reader", EmailVerified: true, RoleLevel: role}
	require.NoError(t, f.store.Read().Users().Create(context.Background(), u))
	return u
}

func (f *fixture) pack(t *testing.T, productID string, base, bonus int64) {
	t.Helper()
	require.NoError(t, f.store.Read().CoinPacks().Upsert(context.Background(), &domain.CoinPack{
		Platform:    domain.PlatformGoogle,
		ProductID:   productID,
		Name:        productID,
		BaseAmount:  base,
		BonusAmount: bonus,
		Price:       decimal.RequireFromString("2.99"),
		Currency:    "USD",
		IsActive:    true,
	}))
}

func (f *fixture) story(t *testing.T, id, price int64) {
	t.Helper()
	require.NoError(t, f.store.Read().Catalog().Upsert(context.Background(), &domain.StoreItem{
		StoryListID: id,
		Title:       "Story",
		PriceCoins:  price,
		IsActive:    true,
	}))
}

func (f *fixture) credit(t *testing.T, userID int64, productID, txID string) *service.CreditResult {
	t.Helper()
	res, err := f.iap.Credit(context.Background(), userID, domain.PlatformGoogle, productID, txID, json.RawMessage(`{}`))
	require.NoError(t, err)
	return res
}

func (f *fixture) entries(t *testing.T, userID int64) []domain.LedgerEntry {
	t.Helper()
	items, _, err := f.store.Read().Ledger().List(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return items
}

// requireChain checks that entries (newest first) form a consistent running
// balance starting from zero.
func requireChain(t *testing.T, entries []domain.LedgerEntry) {
	t.Helper()
	var prev int64
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		require.NotZero(t, e.ChangeAmount, "entry %d", e.ID)
		require.Equal(t, prev+e.ChangeAmount, e.BalanceAfter, "entry %d", e.ID)
		require.GreaterOrEqual(t, e.BalanceAfter, int64(0), "entry %d", e.ID)
		prev = e.BalanceAfter
	}
}

type stubVerifier struct {
	platform domain.Platform
	txID     string
	err      error
	calls    int
}

func (v *stubVerifier) Platform() domain.Platform { return v.platform }

func (v *stubVerifier) Verify(ctx context.Context, productID, receipt string) (*domain.VerifiedPurchase, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &domain.VerifiedPurchase{
		Platform:      v.platform,
		ProductID:     productID,
		TransactionID: v.txID,
		Raw:           json.RawMessage(`{"orderId":"` + v.txID + `"}`),
	}, nil
}

type sentMail struct {
	to, subject, body string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return nil
}

var tokenParam = regexp.MustCompile(`token=([0-9a-f-]{36})`)

// lastToken returns the token embedded in the most recent mail.
func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	match := tokenParam.FindStringSubmatch(m.sent[len(m.sent)-1].body)
	require.Len(t, match, 2)
	return match[1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testTokenConfig() service.TokenConfig {
	return service.TokenConfig{
		AccessSecret:     "access-secret",
		RefreshSecret:    "refresh-secret",
		AccessTTL:        time.Hour,
		RefreshTTL:       7 * 24 * time.Hour,
		RefreshThreshold: 10 * time.Minute,
		GracePeriod:      30 * time.Second,
	}
}

func newTokens(c *clock) (*service.TokenService, *cache.MemoryKV) {
	kv := cache.NewMemoryKV().WithClock(c.Now)
	return service.NewTokenService(testTokenConfig(), kv).WithClock(c.Now), kv
}

var errBoom = errors.New("boom")
