package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storyshelf/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppEnv      string
	LogLevel    string
	LogJSON     bool
	DatabaseURL string
	DBMaxConns  int
	FrontendURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWT JWTConfig

	TxTimeout time.Duration

	Brevo BrevoConfig
	OAuth OAuthConfig
	IAP   IAPConfig

	// Rate limits
	APIRateLimit   int
	APIRateWindow  time.Duration
	AuthRateLimit  int
	AuthRateWindow time.Duration

	OTLPEndpoint string
}

type JWTConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	RefreshThreshold time.Duration
	GracePeriod      time.Duration
}

type BrevoConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

type OAuthConfig struct {
	GoogleClientIDs []string
	FacebookAppID   string
	AppleClientID   string
	WeChatAppID     string
	WeChatAppSecret string
}

type IAPConfig struct {
	GooglePackageName string
	// GoogleAccessToken is a bearer credential for the Android Publisher API.
	GoogleAccessToken string
	AppleSharedSecret string
	UseMock           bool
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromLookup(os.LookupEnv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromLookup builds the config from an env lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		AppPort:       get("APP_PORT", "8080"),
		AppEnv:        get("APP_ENV", "development"),
		LogLevel:      get("LOG_LEVEL", "info"),
		LogJSON:       get("LOG_FORMAT", "text") == "json",
		DatabaseURL:   get("DATABASE_URL", ""),
		FrontendURL:   strings.TrimRight(get("FRONTEND_URL", "http://localhost:3000"), "/"),
		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		OTLPEndpoint:  get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.JWT.AccessSecret = get("JWT_SECRET", "")
	if cfg.JWT.AccessSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	cfg.JWT.RefreshSecret = get("JWT_REFRESH_SECRET", "")
	if cfg.JWT.RefreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET is not set")
	}

	var err error
	if cfg.RedisDB, err = intVar(get, "REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.DBMaxConns, err = intVar(get, "DB_MAX_CONNS", 0); err != nil {
		return nil, err
	}
	if cfg.JWT.AccessTTL, err = durationVar(get, "JWT_ACCESS_EXPIRES_IN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWT.RefreshTTL, err = durationVar(get, "JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour); err != nil {
		return nil, err
	}

	thresholdMin, err := intVar(get, "TOKEN_REFRESH_THRESHOLD_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	cfg.JWT.RefreshThreshold = time.Duration(thresholdMin) * time.Minute

	graceSec, err := intVar(get, "TOKEN_GRACE_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.JWT.GracePeriod = time.Duration(graceSec) * time.Second

	txSec, err := intVar(get, "TX_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.TxTimeout = time.Duration(txSec) * time.Second

	cfg.Brevo = BrevoConfig{
		APIKey:      get("BREVO_API_KEY", ""),
		SenderEmail: get("BREVO_SENDER_EMAIL", "no-reply@storyshelf.local"),
		SenderName:  get("BREVO_SENDER_NAME", "Storyshelf"),
	}

	for _, key := range []string{"GOOGLE_WEB_CLIENT_ID", "GOOGLE_ANDROID_CLIENT_ID", "GOOGLE_IOS_CLIENT_ID"} {
		if id := get(key, ""); id != "" {
			cfg.OAuth.GoogleClientIDs = append(cfg.OAuth.GoogleClientIDs, id)
		}
	}
	cfg.OAuth.FacebookAppID = get("FACEBOOK_APP_ID", "")
	cfg.OAuth.AppleClientID = get("APPLE_CLIENT_ID", "")
	cfg.OAuth.WeChatAppID = get("WECHAT_APP_ID", "")
	cfg.OAuth.WeChatAppSecret = get("WECHAT_APP_SECRET", "")

	cfg.IAP = IAPConfig{
		GooglePackageName: get("GOOGLE_PACKAGE_NAME", ""),
		GoogleAccessToken: get("GOOGLE_SERVICE_ACCOUNT_KEY", ""),
		AppleSharedSecret: get("APPLE_SHARED_SECRET", ""),
		// mock verifier is always on outside production
		UseMock: get("IAP_USE_MOCK", "") == "true" || cfg.AppEnv != "production",
	}

	if cfg.APIRateLimit, err = intVar(get, "API_RATE_LIMIT", 120); err != nil {
		return nil, err
	}
	apiWindow, err := intVar(get, "API_RATE_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.APIRateWindow = time.Duration(apiWindow) * time.Second

	if cfg.AuthRateLimit, err = intVar(get, "AUTH_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	authWindow, err := intVar(get, "AUTH_RATE_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.AuthRateWindow = time.Duration(authWindow) * time.Second

	return cfg, nil
}

func intVar(get func(string, string) string, key string, def int) (int, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

// durationVar accepts Go durations plus a "d" suffix for days ("7d").
func durationVar(get func(string, string) string, key string, def time.Duration) (time.Duration, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// ParseDuration parses "15m", "1h", "7d" or a bare number of seconds.
func ParseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	if strings.HasSuffix(v, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(v, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}
