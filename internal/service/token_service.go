package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storyshelf/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenConfig holds signing secrets and lifetimes.
type TokenConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	RefreshThreshold time.Duration
	GracePeriod      time.Duration
}

// TokenPair is issued on login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// RefreshResult reports whether the access token was rotated.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	Refreshed   bool   `json:"refreshed"`
}

// TokenClaims is the validated content of a token.
type TokenClaims struct {
	UserID    int64
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

const (
	accessPrefix  = "bl:access:"
	refreshPrefix = "bl:refresh:"
	graceSuffix   = ":grace"
)

// TokenService issues HS256 tokens and tracks revocation in a KV store.
// A revoked access token stays valid for the grace period; a revoked
// refresh token is rejected at once.
type TokenService struct {
	cfg TokenConfig
	kv  KVStore
	now func() time.Time
}

func NewTokenService(cfg TokenConfig, kv KVStore) *TokenService {
	return &TokenService{cfg: cfg, kv: kv, now: time.Now}
}

// WithClock replaces the time source used for signing and validation.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue mints an access and refresh token sharing one jti.
func (s *TokenService) Issue(userID int64) (*TokenPair, error) {
	jti := uuid.NewString()
	access, err := s.sign(userID, jti, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, jti, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

func (s *TokenService) sign(userID int64, jti, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccess checks signature, expiry and the blacklist.
func (s *TokenService) ValidateAccess(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.parse(token, s.cfg.AccessSecret, true)
	if err != nil {
		return nil, err
	}

	key := accessKey(claims)
	revoked, err := s.exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if revoked {
		inGrace, err := s.exists(ctx, key+graceSuffix)
		if err != nil {
			return nil, err
		}
		if !inGrace {
			return nil, domain.ErrTokenRevoked
		}
	}
	return claims, nil
}

// ValidateRefresh checks signature, expiry and the blacklist. There is no grace.
func (s *TokenService) ValidateRefresh(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.parse(token, s.cfg.RefreshSecret, true)
	if err != nil {
		return nil, err
	}
	revoked, err := s.exists(ctx, refreshKey(claims))
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}
	return claims, nil
}

// Rotate returns an access token for userID. An old token with more than
// the threshold left is returned unchanged; otherwise it is blacklisted and
// replaced. Without an old token a new one is minted.
func (s *TokenService) Rotate(ctx context.Context, userID int64, oldAccess string) (*RefreshResult, error) {
	if oldAccess != "" {
		old, err := s.parse(oldAccess, s.cfg.AccessSecret, false)
		if err == nil && old.UserID == userID {
			remaining := old.ExpiresAt.Sub(s.now())
			if remaining > s.cfg.RefreshThreshold {
				return &RefreshResult{AccessToken: oldAccess, ExpiresIn: int64(remaining.Seconds())}, nil
			}
			if err := s.revokeAccess(ctx, old); err != nil {
				return nil, err
			}
		}
	}

	access, err := s.sign(userID, uuid.NewString(), s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: access, ExpiresIn: int64(s.cfg.AccessTTL.Seconds()), Refreshed: true}, nil
}

// Revoke blacklists the refresh token and, when given, the access token.
// It returns the token owner.
func (s *TokenService) Revoke(ctx context.Context, refreshToken, accessToken string) (int64, error) {
	refresh, err := s.parse(refreshToken, s.cfg.RefreshSecret, false)
	if err != nil {
		return 0, err
	}
	if ttl := refresh.ExpiresAt.Sub(s.now()); ttl > 0 {
		if err := s.kv.Set(ctx, refreshKey(refresh), "blacklisted", ttl); err != nil {
			return 0, fmt.Errorf("blacklist refresh token: %w", err)
		}
	}

	if accessToken == "" {
		return refresh.UserID, nil
	}
	access, err := s.parse(accessToken, s.cfg.AccessSecret, false)
	if err != nil {
		return 0, err
	}
	return refresh.UserID, s.revokeAccess(ctx, access)
}

// revokeAccess writes the blacklist entry for the remaining lifetime and a
// grace marker. Already expired tokens need no entry.
func (s *TokenService) revokeAccess(ctx context.Context, claims *TokenClaims) error {
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	key := accessKey(claims)
	if err := s.kv.Set(ctx, key, "blacklisted", ttl); err != nil {
		return fmt.Errorf("blacklist access token: %w", err)
	}
	if s.cfg.GracePeriod > 0 {
		if err := s.kv.Set(ctx, key+graceSuffix, "1", s.cfg.GracePeriod); err != nil {
			return fmt.Errorf("set grace marker: %w", err)
		}
	}
	return nil
}

func (s *TokenService) exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return ok, nil
}

// parse verifies the signature. With validate=false expiry is not enforced,
// so logout and rotation work on tokens that just ran out.
func (s *TokenService) parse(token, secret string, validate bool) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if validate {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(rc.Subject, 10, 64)
	if err != nil || userID <= 0 || rc.ExpiresAt == nil {
		return nil, domain.ErrTokenInvalid
	}

	claims := &TokenClaims{UserID: userID, ID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	return claims, nil
}

// accessKey is keyed by jti, or by subject and issue time for tokens without one.
func accessKey(c *TokenClaims) string {
	return accessPrefix + tokenKey(c)
}

func refreshKey(c *TokenClaims) string {
	return refreshPrefix + tokenKey(c)
}

func tokenKey(c *TokenClaims) string {
	if c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("%d:%d", c.UserID, c.IssuedAt.Unix())
}
