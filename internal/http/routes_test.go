package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"storyshelf/internal/cache"
	"storyshelf/internal/domain"
	httpServer "storyshelf/internal/http"
	"storyshelf/internal/http/handlers"
	"storyshelf/internal/http/middleware"
	"storyshelf/internal/iap"
	"storyshelf/internal/repository/memstore"
	"storyshelf/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu   sync.Mutex
	last string
}

func (o *outbox) Send(ctx context.Context, to, subject, html string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = html
	return nil
}

var tokenParam = regexp.MustCompile(`token=([0-9a-f-]{36})`)

func (o *outbox) token(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	m := tokenParam.FindStringSubmatch(o.last)
	require.Len(t, m, 2)
	return m[1]
}

type testServer struct {
	router *gin.Engine
	store  *memstore.Store
	mail   *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	kv := cache.NewMemoryKV()
	audit := service.NewAuditService(store.Audit())
	ledger := service.NewCoinLedger()
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:     "a",
		RefreshSecret:    "r",
		AccessTTL:        time.Hour,
		RefreshTTL:       24 * time.Hour,
		RefreshThreshold: 10 * time.Minute,
		GracePeriod:      30 * time.Second,
	}, kv)
	mail := &outbox{}

	h := handlers.NewHandler(
		service.NewAuthService(store.Read().Users(), tokens, kv, mail, audit, "https://app.example.com"),
		service.NewUserService(store, audit),
		service.NewIAPService(store, ledger, audit, iap.NewMockVerifier(domain.PlatformGoogle)),
		service.NewPurchaseService(store, ledger, audit),
		service.NewQueryService(store),
		audit,
	)

	r := gin.New()
	httpServer.RegisterRoutes(r, httpServer.Server{
		Handler: h,
		Health:  handlers.NewHealthHandler("test", map[string]handlers.Pinger{"database": handlers.PingFunc(func(context.Context) error { return nil })}),
		Tokens:  tokens,
		Limiter: middleware.NewRateLimiter(nil),
		Limits:  httpServer.Limits{API: 1000, APIWindow: time.Minute, Auth: 1000, AuthWindow: time.Minute},
	})

	require.NoError(t, store.Read().CoinPacks().Upsert(context.Background(), &domain.CoinPack{
		Platform: domain.PlatformGoogle, ProductID: "coins_100", Name: "100 coins",
		BaseAmount: 90, BonusAmount: 5, Price: decimal.RequireFromString("1.99"), Currency: "USD", IsActive: true,
	}))
	require.NoError(t, store.Read().Catalog().Upsert(context.Background(), &domain.StoreItem{
		StoryListID: 7, Title: "Night Train", PriceCoins: 40, IsActive: true,
	}))
	require.NoError(t, store.Read().Catalog().Upsert(context.Background(), &domain.StoreItem{
		StoryListID: 8, Title: "Long Saga", PriceCoins: 500, IsActive: true,
	}))

	return &testServer{router: r, store: store, mail: mail}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (int, gjson.Result) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Code, gjson.ParseBytes(w.Body.Bytes())
}

// login registers, verifies and logs in a reader, returning the access token.
func (s *testServer) login(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": email, "password": "password1", "name": "Reader"})
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "password1"})
	require.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, domain.ErrEmailNotVerified.Error(), body.Get("error").String())

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", gin.H{"token": s.mail.token(t)})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "password1"})
	require.Equal(t, http.StatusOK, code)
	return body.Get("accessToken").String(), body.Get("refreshToken").String()
}

// admin creates a verified admin account directly; roles are not writable
// over the API.
func (s *testServer) admin(t *testing.T, email string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.store.Read().Users().Create(context.Background(), &domain.User{
		Email: email, PasswordHash: string(hash), EmailVerified: true, RoleLevel: domain.RoleAdmin,
	}))
	code, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "password1"})
	require.Equal(t, http.StatusOK, code)
	return body.Get("accessToken").String()
}

func TestCoinFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "reader@example.com")

	code, body := s.do(t, http.MethodPost, "/api/v1/iap/verify", token, gin.H{"platform": "google", "productId": "coins_100", "purchaseToken": "tok-1"})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.False(t, body.Get("duplicate").Bool())
	assert.Equal(t, int64(95), body.Get("coinsGranted").Int())
	assert.Equal(t, int64(95), body.Get("balance").Int())

	code, body = s.do(t, http.MethodPost, "/api/v1/iap/verify", token, gin.H{"platform": "GOOGLE", "productId": "coins_100", "receipt": "tok-1"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("duplicate").Bool())
	assert.Equal(t, "duplicate", body.Get("outcome").String())
	assert.Equal(t, int64(95), body.Get("coinsGranted").Int())

	code, body = s.do(t, http.MethodPost, "/api/v1/orders/coin-purchase", token, gin.H{"storyListId": 7}, handlers.IdempotencyKeyHeader, "K1")
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "applied", body.Get("outcome").String())
	assert.Equal(t, int64(55), body.Get("balance").Int())
	orderID := body.Get("orderId").Int()

	code, body = s.do(t, http.MethodPost, "/api/v1/orders/coin-purchase", token, gin.H{"storyListId": 7, "idempotencyKey": "K1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "duplicate", body.Get("outcome").String())
	assert.Equal(t, orderID, body.Get("orderId").Int())

	code, body = s.do(t, http.MethodPost, "/api/v1/orders/coin-purchase", token, gin.H{"storyListId": 7}, handlers.IdempotencyKeyHeader, "K2")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already_owned", body.Get("outcome").String())

	code, body = s.do(t, http.MethodPost, "/api/v1/orders/coin-purchase", token, gin.H{"storyListId": 8}, handlers.IdempotencyKeyHeader, "K3")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, domain.ErrInsufficientBalance.Error(), body.Get("error").String())

	code, _ = s.do(t, http.MethodPost, "/api/v1/orders/coin-purchase", token, gin.H{"storyListId": 8})
	assert.Equal(t, http.StatusBadRequest, code, "missing idempotency key")

	code, _ = s.do(t, http.MethodPost, "/api/v1/orders/coin-purchase", token, gin.H{"storyListId": 99}, handlers.IdempotencyKeyHeader, "K4")
	assert.Equal(t, http.StatusBadRequest, code, "unknown item")

	code, body = s.do(t, http.MethodGet, "/api/v1/iap/my-balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(55), body.Get("balance").Int())

	code, body = s.do(t, http.MethodGet, "/api/v1/iap/my-ledger?limit=2", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), body.Get("total").Int())
	assert.Len(t, body.Get("items").Array(), 2)
	assert.Equal(t, "BOOK_PURCHASE", body.Get("items.0.type").String())

	code, body = s.do(t, http.MethodGet, "/api/v1/bookstore/my-entitlements", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(7), body.Get("items.0.storyListId").Int())

	code, body = s.do(t, http.MethodGet, "/api/v1/iap/my-receipts", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body.Get("items").Array(), 1)
}

func TestVerifyReceiptValidation(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "val@example.com")

	code, _ := s.do(t, http.MethodPost, "/api/v1/iap/verify", token, gin.H{"platform": "huawei", "productId": "coins_100", "receipt": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/iap/verify", token, gin.H{"platform": "apple", "productId": "coins_100", "receipt": "x"})
	assert.Equal(t, http.StatusBadRequest, code, "no verifier for apple")

	code, _ = s.do(t, http.MethodPost, "/api/v1/iap/verify", token, gin.H{"platform": "google", "productId": "coins_100"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/iap/verify", token, gin.H{"platform": "google", "productId": "missing", "receipt": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/iap/verify", "", gin.H{"platform": "google", "productId": "coins_100", "receipt": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.login(t, "logout@example.com")

	code, body := s.do(t, http.MethodPost, "/api/v1/auth/refresh", access, gin.H{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, code)
	assert.False(t, body.Get("refreshed").Bool())

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/logout", access, gin.H{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, domain.ErrTokenRevoked.Error(), body.Get("error").String())
}

func TestProfileAndAdmin(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	token, _ := s.login(t, "me@example.com")

	code, body := s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "me@example.com", body.Get("email").String())
	assert.False(t, body.Get("passwordHash").Exists())

	code, body = s.do(t, http.MethodPatch, "/api/v1/users/me", token, gin.H{"name": "Renamed", "birthDate": "1991-02-03"})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "Renamed", body.Get("name").String())

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/iap-receipts", token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	admin := s.admin(t, "admin@example.com")

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/iap-receipts", admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/coin-ledger", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code, "userId is required")

	me, err := s.store.Read().Users().GetByEmail(ctx, "me@example.com")
	require.NoError(t, err)
	myID := strconv.FormatInt(me.ID, 10)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs?userId="+myID, token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs?userId="+myID, admin, nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	actions := body.Get("items.#.action").Array()
	require.NotEmpty(t, actions)
	assert.Equal(t, domain.AuditActionProfileUpdate, actions[0].String())
	var seen []string
	for _, a := range actions {
		seen = append(seen, a.String())
	}
	assert.Contains(t, seen, domain.AuditActionRegister)
	assert.Contains(t, seen, domain.AuditActionLogin)

	code, body = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs?userId="+myID+"&limit=1", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body.Get("items").Array(), 1)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/admin/users/"+myID, admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Get("status").String())

	code, body = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body.Get("checks.database").String())
}
