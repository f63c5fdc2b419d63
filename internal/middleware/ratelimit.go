package middleware

import (
	"net/http"
	"sync"
	"time"

	"cached-task-api/internal/cache"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client. Buckets live in a cache.Store,
// so idle clients age out with the store TTL and the client table is bounded by its capacity.
type RateLimiter struct {
	mu       sync.Mutex // serializes get-or-create of a client bucket
	limiters *cache.Store[*rate.Limiter]
	rps      rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second with the given burst per client.
// Buckets idle for longer than idle are forgotten; at most maxClients are tracked.
func NewRateLimiter(rps float64, burst int, idle time.Duration, maxClients int) *RateLimiter {
	return &RateLimiter{
		limiters: cache.NewStore[*rate.Limiter](cache.Options{TTL: idle, MaxSize: maxClients}),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether the client identified by key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// bucket returns the client's limiter, creating it on first use.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
	}
	// Refresh on every request so the entry expires only after a quiet period.
	rl.limiters.Set(key, lim, 0)
	return lim
}

// Prune drops expired client buckets. It lets the housekeeper sweep the limiter table.
func (rl *RateLimiter) Prune() int {
	return rl.limiters.Prune()
}

// Stats reports the client table statistics.
func (rl *RateLimiter) Stats() cache.Stats {
	return rl.limiters.Stats()
}

// RateLimit rejects requests over the per-client budget with 429.
// Authenticated requests are keyed by user, everything else by client IP.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
