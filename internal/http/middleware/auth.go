package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"
	"storyshelf/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey      = "user_id"
	accessTokenKey = "access_token"
)

// AccessValidator validates bearer access tokens.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*service.TokenClaims, error)
}

// Auth requires a valid bearer access token and stores the caller's id.
func Auth(tokens AccessValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.ValidateAccess(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrTokenRevoked), errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			default:
				logger.L(c.Request.Context()).Error("validate access token", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(accessTokenKey, raw)
		c.Request = c.Request.WithContext(logger.WithUser(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// BearerToken returns the token from the Authorization header, or "".
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// UserID returns the id stored by Auth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// ProfileReader loads the caller's account.
type ProfileReader interface {
	Profile(ctx context.Context, userID int64) (*domain.User, error)
}

// RequireAdmin allows role level 9 and above. Requires Auth to run first.
func RequireAdmin(users ProfileReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		u, err := users.Profile(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			logger.L(c.Request.Context()).Error("load admin profile", "user_id", userID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !u.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
