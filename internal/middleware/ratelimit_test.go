package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, time.Minute, 10)

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"), "burst exhausted")
	require.True(t, rl.Allow("b"), "other clients have their own bucket")
	require.Equal(t, 2, rl.Stats().Size)
}

func TestRateLimiter_ConcurrentFirstRequestsShareBucket(t *testing.T) {
	rl := NewRateLimiter(0.001, 3, time.Minute, 10)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if rl.Allow("a") {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(3), allowed.Load(), "one bucket per client, so exactly burst requests pass")
	require.Equal(t, 1, rl.Stats().Size)
}

func TestRateLimiter_IdleClientsExpire(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, 20*time.Millisecond, 10)
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))

	time.Sleep(40 * time.Millisecond)
	require.Equal(t, 1, rl.Prune())
	require.True(t, rl.Allow("a"), "a forgotten client starts with a full bucket")
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(0.001, 1, time.Minute, 10)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
}
