package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	readinessTimeout = 5 * time.Second
	healthTimeout    = 3 * time.Second
)

// Pinger is a backing service the probes check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves /health, /healthz and /readyz. Every dependency is
// checked by /readyz; only "database" gates /health.
type HealthHandler struct {
	deps    map[string]Pinger
	started time.Time
	version string
}

func NewHealthHandler(version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps, started: time.Now(), version: version}
}

// ReadinessReport is the /readyz body.
type ReadinessReport struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	HeapMB    float64           `json:"heapMb"`
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings all dependencies in parallel and reports each one.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks, healthy := h.pingAll(ctx)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := ReadinessReport{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		HeapMB:    float64(mem.HeapAlloc) / (1 << 20),
	}
	code := http.StatusOK
	if !healthy {
		report.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// Health is the load balancer probe: ok while the database answers.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if db, ok := h.deps["database"]; ok {
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func (h *HealthHandler) pingAll(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, dep Pinger) {
			defer wg.Done()
			results[i] = dep.Ping(ctx)
		}(i, h.deps[name])
	}
	wg.Wait()

	checks := make(map[string]string, len(names))
	healthy := true
	for i, name := range names {
		if results[i] != nil {
			checks[name] = "unhealthy: " + results[i].Error()
			healthy = false
			continue
		}
		checks[name] = "healthy"
	}
	return checks, healthy
}
