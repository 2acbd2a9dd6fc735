package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimitClients = 10_000
	defaultRateLimitIdle    = 15 * time.Minute
)

// RateLimitConfig bounds requests per client. A client is a signed-in user
// or, for anonymous calls, a remote IP.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// MaxClients caps how many token buckets are kept; the least recently
	// seen client is forgotten first.
	MaxClients int
	// IdleTTL drops a bucket after the client has been quiet this long.
	IdleTTL time.Duration
}

func (c RateLimitConfig) enabled() bool {
	return c.RequestsPerMinute > 0 && c.Burst > 0
}

// retryAfter is the time until one more token is available, in whole seconds.
func (c RateLimitConfig) retryAfter() string {
	return strconv.Itoa(int(time.Minute/time.Duration(c.RequestsPerMinute)/time.Second) + 1)
}

type rateLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	size := cfg.MaxClients
	if size <= 0 {
		size = defaultRateLimitClients
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultRateLimitIdle
	}
	return &rateLimiter{
		every:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:   cfg.Burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
	}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(r.every, r.burst)
	}
	// Re-adding refreshes the idle TTL.
	r.buckets.Add(key, bucket)
	return bucket.Allow()
}

// rateLimitMiddleware must be installed after authenticate so signed-in
// users get their own bucket instead of sharing one per IP.
func rateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	if !cfg.enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newRateLimiter(cfg)
	return func(c *gin.Context) {
		if limiter.allow(rateLimitKey(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", cfg.retryAfter())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Kind: "rate_limited"})
	}
}

func rateLimitKey(c *gin.Context) string {
	if userID, ok := currentUserID(c); ok {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}
