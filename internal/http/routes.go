package http

import (
	"time"

	"storyshelf/internal/domain"
	"storyshelf/internal/http/handlers"
	"storyshelf/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// Limits configures the per-IP and per-user rate limits.
type Limits struct {
	API        int
	APIWindow  time.Duration
	Auth       int
	AuthWindow time.Duration
}

// Server bundles what the routes need.
type Server struct {
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	Tokens  middleware.AccessValidator
	Limiter *middleware.RateLimiter
	Limits  Limits
}

func RegisterRoutes(r *gin.Engine, s Server) {
	r.Use(middleware.RequestID(), middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", s.Health.Health)
	r.GET("/healthz", s.Health.Liveness)
	r.GET("/readyz", s.Health.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(s.Limiter.Limit("api", s.Limits.API, s.Limits.APIWindow, middleware.ByIP))
	registerAPIRoutes(v1, s)
}

func registerAPIRoutes(api *gin.RouterGroup, s Server) {
	h := s.Handler
	jwt := middleware.Auth(s.Tokens)
	authRL := s.Limiter.Limit("auth", s.Limits.Auth, s.Limits.AuthWindow, middleware.ByIP)
	// Coin-moving calls are limited per user as well as per IP.
	spendRL := s.Limiter.Limit("spend", s.Limits.Auth, s.Limits.AuthWindow, middleware.ByUser)

	auth := api.Group("/auth")
	auth.Use(authRL)
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/google-login", h.SocialLogin(domain.ProviderGoogle))
		auth.POST("/facebook-login", h.SocialLogin(domain.ProviderFacebook))
		auth.POST("/apple-login", h.SocialLogin(domain.ProviderApple))
		auth.POST("/wechat-login", h.SocialLogin(domain.ProviderWeChat))
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
	}

	users := api.Group("/users", jwt)
	{
		users.GET("/me", h.Me)
		users.PATCH("/me", h.UpdateMe)
		users.DELETE("/me", h.DeleteMe)
	}

	// IAP
	api.GET("/coin-packs", h.CoinPacks)
	iap := api.Group("/iap")
	{
		iap.POST("/verify", jwt, spendRL, h.VerifyReceipt)
		iap.POST("/webhook/google", handlers.StoreWebhook(domain.PlatformGoogle))
		iap.POST("/webhook/apple", handlers.StoreWebhook(domain.PlatformApple))
		iap.GET("/my-receipts", jwt, h.MyReceipts)
		iap.GET("/my-balance", jwt, h.MyBalance)
		iap.GET("/my-ledger", jwt, h.MyLedger)
	}

	api.POST("/orders/coin-purchase", jwt, spendRL, h.CoinPurchase)

	// Bookstore
	api.GET("/bookstorelist", h.Bookstore)
	api.GET("/bookstore/my-entitlements", jwt, h.MyEntitlements)

	admin := api.Group("/admin", jwt, middleware.RequireAdmin(h.Users))
	{
		admin.GET("/coin-ledger", h.AdminCoinLedger)
		admin.GET("/iap-receipts", h.AdminReceipts)
		admin.GET("/audit-logs", h.AdminAuditLogs)
		admin.DELETE("/users/:id", h.DeleteUser)
	}
}
