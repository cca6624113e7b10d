package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator map[string]error

func (f fakeValidator) ValidateAccess(ctx context.Context, token string) (*service.TokenClaims, error) {
	if err, ok := f[token]; ok {
		return nil, err
	}
	return &service.TokenClaims{UserID: 42}, nil
}

type fakeProfiles map[int64]*domain.User

func (f fakeProfiles) Profile(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func TestAuth(t *testing.T) {
	validator := fakeValidator{
		"revoked": domain.ErrTokenRevoked,
		"expired": domain.ErrTokenExpired,
		"broken":  errors.New("redis down"),
	}
	r := gin.New()
	r.GET("/me", Auth(validator), func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"revoked", "Bearer revoked", http.StatusUnauthorized},
		{"expired", "bearer expired", http.StatusUnauthorized},
		{"store error", "Bearer broken", http.StatusInternalServerError},
		{"ok", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	profiles := fakeProfiles{
		1: {ID: 1, RoleLevel: domain.RoleAdmin},
		2: {ID: 2, RoleLevel: domain.RoleEditor},
	}
	handler := func(userID int64) int {
		r := gin.New()
		r.GET("/admin", func(c *gin.Context) {
			c.Set(userIDKey, userID)
		}, RequireAdmin(profiles), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, handler(1))
	assert.Equal(t, http.StatusForbidden, handler(2))
	assert.Equal(t, http.StatusForbidden, handler(3), "deleted accounts are not admins")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}
