package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBucketsPerClient(t *testing.T) {
	limiter := newRateLimiter(RateLimitConfig{RequestsPerMinute: 1, Burst: 2})

	assert.True(t, limiter.allow("user:1"))
	assert.True(t, limiter.allow("user:1"))
	assert.False(t, limiter.allow("user:1"))
	assert.True(t, limiter.allow("ip:10.0.0.1"))
}

func TestRateLimiterForgetsLeastRecentClient(t *testing.T) {
	limiter := newRateLimiter(RateLimitConfig{RequestsPerMinute: 1, Burst: 1, MaxClients: 1, IdleTTL: time.Hour})

	assert.True(t, limiter.allow("a"))
	assert.False(t, limiter.allow("a"))
	assert.True(t, limiter.allow("b"))
	// "a" was evicted, so it starts with a full bucket again.
	assert.True(t, limiter.allow("a"))
}

func TestRateLimitConfig(t *testing.T) {
	assert.False(t, RateLimitConfig{RequestsPerMinute: 10}.enabled())
	assert.True(t, RateLimitConfig{RequestsPerMinute: 10, Burst: 1}.enabled())
	assert.Equal(t, "7", RateLimitConfig{RequestsPerMinute: 10}.retryAfter())
	assert.Equal(t, "2", RateLimitConfig{RequestsPerMinute: 60}.retryAfter())
}
