package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyshelf/internal/cache"
	"storyshelf/internal/config"
	"storyshelf/internal/db"
	"storyshelf/internal/domain"
	httpServer "storyshelf/internal/http"
	"storyshelf/internal/http/handlers"
	"storyshelf/internal/http/middleware"
	"storyshelf/internal/iap"
	"storyshelf/internal/logger"
	"storyshelf/internal/mail"
	"storyshelf/internal/migrations"
	"storyshelf/internal/repository"
	"storyshelf/internal/service"
	"storyshelf/internal/social"
	"storyshelf/internal/traces"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()

	shutdownTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, cfg.AppEnv, logger.Get())
	if err != nil {
		logger.Fatal("failed to init tracing", "error", err)
	}

	dbPool := db.MustConnect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	defer dbPool.Close()

	if err := migrations.Up(ctx, dbPool); err != nil {
		logger.Fatal("failed to apply migrations", "error", err)
	}

	// Redis is optional outside production; tokens then live in process memory.
	var (
		kv          service.KVStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		kv = cache.NewRedisKV(redisClient)
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		if cfg.IsProduction() {
			logger.Fatal("REDIS_ADDR is required in production")
		}
		logger.Warn("REDIS_ADDR not set, using in-memory token store")
		kv = cache.NewMemoryKV()
	}

	txm := repository.NewTxManager(dbPool, cfg.TxTimeout)
	audit := service.NewAuditService(repository.NewAuditRepository(dbPool))
	ledger := service.NewCoinLedger()

	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:     cfg.JWT.AccessSecret,
		RefreshSecret:    cfg.JWT.RefreshSecret,
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		RefreshThreshold: cfg.JWT.RefreshThreshold,
		GracePeriod:      cfg.JWT.GracePeriod,
	}, kv)

	var mailer service.Mailer = mail.LogMailer{}
	if cfg.Brevo.APIKey != "" {
		mailer = mail.NewBrevo(cfg.Brevo.APIKey, cfg.Brevo.SenderEmail, cfg.Brevo.SenderName)
	}

	authSvc := service.NewAuthService(txm.Read().Users(), tokens, kv, mailer, audit, cfg.FrontendURL, identityProviders(cfg)...)
	userSvc := service.NewUserService(txm, audit)
	iapSvc := service.NewIAPService(txm, ledger, audit, receiptVerifiers(cfg)...)
	purchaseSvc := service.NewPurchaseService(txm, ledger, audit)
	querySvc := service.NewQueryService(txm)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	deps := map[string]handlers.Pinger{"database": dbPool}
	if redisClient != nil {
		deps["redis"] = handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	httpServer.RegisterRoutes(r, httpServer.Server{
		Handler: handlers.NewHandler(authSvc, userSvc, iapSvc, purchaseSvc, querySvc, audit),
		Health:  handlers.NewHealthHandler(version, deps),
		Tokens:  tokens,
		Limiter: middleware.NewRateLimiter(redisClient),
		Limits: httpServer.Limits{
			API:        cfg.APIRateLimit,
			APIWindow:  cfg.APIRateWindow,
			Auth:       cfg.AuthRateLimit,
			AuthWindow: cfg.AuthRateWindow,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "env", cfg.AppEnv, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown", "error", err)
	}

	logger.Info("server exited")
}

func receiptVerifiers(cfg *config.Config) []service.ReceiptVerifier {
	if cfg.IAP.UseMock {
		logger.Warn("IAP mock verifier enabled, receipts are not checked with the stores")
		return []service.ReceiptVerifier{
			iap.NewMockVerifier(domain.PlatformGoogle),
			iap.NewMockVerifier(domain.PlatformApple),
		}
	}
	return []service.ReceiptVerifier{
		iap.NewGoogleVerifier(cfg.IAP.GooglePackageName, cfg.IAP.GoogleAccessToken),
		iap.NewAppleVerifier(cfg.IAP.AppleSharedSecret),
	}
}

// identityProviders enables each social login that has credentials configured.
func identityProviders(cfg *config.Config) []service.IdentityVerifier {
	var out []service.IdentityVerifier
	if len(cfg.OAuth.GoogleClientIDs) > 0 {
		out = append(out, social.NewGoogle(cfg.OAuth.GoogleClientIDs))
	}
	if cfg.OAuth.FacebookAppID != "" {
		out = append(out, social.NewFacebook(cfg.OAuth.FacebookAppID))
	}
	if cfg.OAuth.AppleClientID != "" {
		out = append(out, social.NewApple(cfg.OAuth.AppleClientID))
	}
	if cfg.OAuth.WeChatAppID != "" {
		out = append(out, social.NewWeChat(cfg.OAuth.WeChatAppID, cfg.OAuth.WeChatAppSecret))
	}
	return out
}
