package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localIdleTTL = 10 * time.Minute

type localEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// localLimiter keeps one token bucket per key. Buckets refill at
// maxRequests per window with a burst of maxRequests.
type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localEntry
	swept   time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{buckets: make(map[string]*localEntry), swept: time.Now()}
}

func (l *localLimiter) allow(key string, maxRequests int, window time.Duration) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > localIdleTTL {
		for k, e := range l.buckets {
			if now.Sub(e.seen) > localIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	e, ok := l.buckets[key]
	if !ok {
		every := window / time.Duration(max(1, maxRequests))
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(every), maxRequests)}
		l.buckets[key] = e
	}
	e.seen = now
	return e.limiter.AllowN(now, 1)
}
