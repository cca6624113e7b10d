package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storyshelf/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter backed by Redis INCR/EXPIRE. With no
// Redis client, or when Redis errors, it falls back to an in-process token
// bucket so a single instance stays protected.
type RateLimiter struct {
	client *redis.Client
	local  *localLimiter
}

// NewRateLimiter accepts a nil client.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, local: newLocalLimiter()}
}

// Identifier picks the bucket a request counts against.
type Identifier func(c *gin.Context) (string, bool)

// ByIP buckets requests by client address.
func ByIP(c *gin.Context) (string, bool) {
	return "ip:" + c.ClientIP(), true
}

// Limit returns a middleware allowing maxRequests per window per identifier.
// key format: rl:<name>:<window_seconds>:<identifier>
func (l *RateLimiter) Limit(name string, maxRequests int, window time.Duration, ident Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ident(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		key := "rl:" + name + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + id

		count, err := l.incr(c.Request.Context(), key, window)
		var allowed bool
		if err != nil {
			if l.client != nil {
				logger.L(c.Request.Context()).Warn("rate limiter redis error, using local limiter", "error", err)
				c.Header("X-RateLimit-Error", "redis-error")
			}
			allowed = l.local.allow(key, maxRequests, window)
		} else {
			allowed = count <= int64(maxRequests)
			c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-count), 10))
		}

		endpoint := name + ":" + c.FullPath()
		if !allowed {
			RLBlocked.WithLabelValues(endpoint).Inc()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}

var errNoRedis = errors.New("redis not configured")

func (l *RateLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if l.client == nil {
		return 0, errNoRedis
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		// first increment, set expiry
		l.client.Expire(ctx, key, window)
	}
	return val, nil
}
