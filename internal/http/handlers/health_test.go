package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func healthRouter(deps map[string]Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler("v1", deps)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/readyz", h.Readiness)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadinessReportsEachDependency(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := get(healthRouter(map[string]Pinger{"database": ok, "redis": down}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := w.Body.String()
	assert.Equal(t, "unhealthy", gjson.Get(body, "status").String())
	assert.Equal(t, "healthy", gjson.Get(body, "checks.database").String())
	assert.Equal(t, "unhealthy: connection refused", gjson.Get(body, "checks.redis").String())
	assert.Equal(t, "v1", gjson.Get(body, "version").String())
}

func TestHealthOnlyGatedByDatabase(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("down") })

	w := get(healthRouter(map[string]Pinger{"database": ok, "redis": down}), "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(healthRouter(map[string]Pinger{"database": down}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "database unavailable", gjson.Get(w.Body.String(), "error").String())
}
