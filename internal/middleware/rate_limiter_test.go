package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func rateLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})
	return r
}

func pingFrom(r *gin.Engine, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2})
	r := rateLimitedRouter(rl)

	// First client burns through its burst.
	assert.Equal(t, http.StatusOK, pingFrom(r, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, pingFrom(r, "10.0.0.1:1234").Code)

	w := pingFrom(r, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	// A different client has its own bucket and is unaffected.
	assert.Equal(t, http.StatusOK, pingFrom(r, "10.0.0.2:1234").Code)
}

func TestRateLimitPrunesIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, IdleTTL: 10 * time.Millisecond})

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))

	time.Sleep(20 * time.Millisecond)

	// The next request triggers the prune pass and re-creates its bucket.
	assert.True(t, rl.allow("10.0.0.1"))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "10.0.0.2")
}

func TestRateLimiterDefaultsIdleTTL(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1})
	assert.Equal(t, defaultIdleTTL, rl.config.IdleTTL)
}
