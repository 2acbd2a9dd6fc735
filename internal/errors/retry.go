package errors

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/darrellrafa/Nutribot/internal/logging"
)

// RetryConfig bounds how often a model call is repeated.
type RetryConfig struct {
	// MaxAttempts counts retries, so the call runs at most MaxAttempts+1 times.
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig suits a local Ollama daemon that may still be loading
// a model into memory.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.25,
	}
}

// backoff doubles BaseDelay per attempt, clamps it to MaxDelay and then
// spreads it by ±JitterFactor.
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := c.BaseDelay << attempt
	if delay <= 0 || (c.MaxDelay > 0 && delay > c.MaxDelay) {
		delay = c.MaxDelay
	}
	if c.JitterFactor <= 0 {
		return delay
	}
	spread := (rand.Float64()*2 - 1) * c.JitterFactor * float64(delay)
	jittered := delay + time.Duration(spread)
	switch {
	case jittered <= 0:
		return c.BaseDelay
	case c.MaxDelay > 0 && jittered > c.MaxDelay:
		return c.MaxDelay
	}
	return jittered
}

// Retry is RetryWithResult for calls without a result.
func Retry(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error, logger logging.Logger) error {
	_, err := RetryWithResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, logger)
	return err
}

// RetryWithResult repeats fn while it fails with a transient error. The
// final error is returned as-is so KindOf still classifies it.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("call succeeded on attempt %d", attempt+1)
			}
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		if attempt >= config.MaxAttempts {
			logger.Warn("giving up after %d attempts: %v", attempt+1, err)
			return zero, err
		}

		delay := config.backoff(attempt)
		logger.Debug("attempt %d failed (%v), retrying in %v", attempt+1, err, delay)
		if !sleep(ctx, delay) {
			return zero, err
		}
	}
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
