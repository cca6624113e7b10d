package service_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssueAndValidate(t *testing.T) {
	c := newClock()
	tokens, _ := newTokens(c)
	ctx := context.Background()

	pair, err := tokens.Issue(42)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	access, err := tokens.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), access.UserID)

	refresh, err := tokens.ValidateRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, access.ID, refresh.ID, "both tokens share the jti")

	_, err = tokens.ValidateAccess(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid, "refresh secret does not sign access tokens")

	_, err = tokens.ValidateAccess(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	c.Advance(time.Hour + time.Second)
	_, err = tokens.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestRevokedAccessTokenGrace(t *testing.T) {
	c := newClock()
	tokens, _ := newTokens(c)
	ctx := context.Background()

	pair, err := tokens.Issue(7)
	require.NoError(t, err)

	userID, err := tokens.Revoke(ctx, pair.RefreshToken, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)

	_, err = tokens.ValidateAccess(ctx, pair.AccessToken)
	assert.NoError(t, err, "still inside the grace period")

	_, err = tokens.ValidateRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked, "refresh tokens get no grace")

	c.Advance(31 * time.Second)
	_, err = tokens.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestRotateKeepsFreshToken(t *testing.T) {
	c := newClock()
	tokens, _ := newTokens(c)
	ctx := context.Background()

	pair, err := tokens.Issue(3)
	require.NoError(t, err)

	res, err := tokens.Rotate(ctx, 3, pair.AccessToken)
	require.NoError(t, err)
	assert.False(t, res.Refreshed)
	assert.Equal(t, pair.AccessToken, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
}

func TestRotateNearExpiry(t *testing.T) {
	c := newClock()
	tokens, _ := newTokens(c)
	ctx := context.Background()

	pair, err := tokens.Issue(3)
	require.NoError(t, err)

	c.Advance(55 * time.Minute)
	res, err := tokens.Rotate(ctx, 3, pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)
	assert.NotEqual(t, pair.AccessToken, res.AccessToken)

	claims, err := tokens.ValidateAccess(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.UserID)

	c.Advance(31 * time.Second)
	_, err = tokens.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked, "the replaced token is blacklisted")
}

func TestRotateIgnoresForeignToken(t *testing.T) {
	c := newClock()
	tokens, _ := newTokens(c)
	ctx := context.Background()

	other, err := tokens.Issue(99)
	require.NoError(t, err)

	res, err := tokens.Rotate(ctx, 3, other.AccessToken)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)

	_, err = tokens.ValidateAccess(ctx, other.AccessToken)
	assert.NoError(t, err, "another user's token is left alone")
}

func TestRevokeTokenWithoutJTI(t *testing.T) {
	c := newClock()
	tokens, kv := newTokens(c)
	ctx := context.Background()
	cfg := testTokenConfig()

	sign := func(secret string, ttl time.Duration) string {
		claims := jwt.RegisteredClaims{
			Subject:   "5",
			IssuedAt:  jwt.NewNumericDate(c.Now()),
			ExpiresAt: jwt.NewNumericDate(c.Now().Add(ttl)),
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	access := sign(cfg.AccessSecret, cfg.AccessTTL)
	refresh := sign(cfg.RefreshSecret, cfg.RefreshTTL)

	_, err := tokens.Revoke(ctx, refresh, access)
	require.NoError(t, err)

	key := fmt.Sprintf("bl:access:5:%s", strconv.FormatInt(c.Now().Unix(), 10))
	v, ok, err := kv.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "blacklisted", v)

	_, ok, _ = kv.Get(ctx, key+":grace")
	assert.True(t, ok)

	_, ok, _ = kv.Get(ctx, fmt.Sprintf("bl:refresh:5:%d", c.Now().Unix()))
	assert.True(t, ok)
}

func TestRevokeExpiredAccessToken(t *testing.T) {
	c := newClock()
	tokens, _ := newTokens(c)
	ctx := context.Background()

	pair, err := tokens.Issue(8)
	require.NoError(t, err)
	c.Advance(2 * time.Hour)

	_, err = tokens.Revoke(ctx, pair.RefreshToken, pair.AccessToken)
	require.NoError(t, err, "logout works after the access token ran out")

	_, err = tokens.ValidateRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestTokenServiceUsesConfiguredSecrets(t *testing.T) {
	c := newClock()
	tokens, kv := newTokens(c)
	cfg := testTokenConfig()
	cfg.AccessSecret = "different"
	other := service.NewTokenService(cfg, kv).WithClock(c.Now)

	pair, err := tokens.Issue(1)
	require.NoError(t, err)
	_, err = other.ValidateAccess(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
