package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// IdleTTL bounds how long an inactive client keeps its bucket.
	IdleTTL time.Duration
}

const defaultIdleTTL = 3 * time.Minute

// RateLimiter applies a token bucket per client IP, so one impatient
// payment poller cannot starve other patients of the request budget.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	config    RateLimiterConfig
	lastPrune time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaultIdleTTL
	}
	return &RateLimiter{
		clients:   make(map[string]*clientBucket),
		config:    config,
		lastPrune: time.Now(),
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastPrune) > rl.config.IdleTTL {
		for k, b := range rl.clients {
			if now.Sub(b.lastSeen) > rl.config.IdleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastPrune = now
	}

	bucket, ok := rl.clients[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.clients[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}
