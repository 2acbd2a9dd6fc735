package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelErrorMatchesKind(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("chat: %w", NewModelUnavailable("llama3.2:3b", 0, true, cause))

	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, KindModelUnavailable, KindOf(err))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "llama3.2:3b")
}

func TestGenerationFailedIsPermanent(t *testing.T) {
	err := NewGenerationFailed("m", 500, "empty content", nil)
	assert.Equal(t, KindGenerationFailed, KindOf(err))
	assert.False(t, IsTransient(err))
	assert.True(t, IsPermanent(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(Validationf("age %d out of range", -1)))
	assert.Equal(t, KindNotFound, KindOf(NotFoundf("food %d", 7)))
	assert.Equal(t, KindStoreUnavailable, KindOf(StoreUnavailable(errors.New("no such table"))))
	assert.Equal(t, KindModelUnavailable, KindOf(fmt.Errorf("%w for x", ErrCircuitOpen)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestIsTransientNetworkErrors(t *testing.T) {
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, IsTransient(&TransientError{Err: errors.New("x")}))
	assert.False(t, IsTransient(&PermanentError{Err: errors.New("x")}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	_, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) (string, error) {
		calls.Add(1)
		return "", NewGenerationFailed("m", 400, "bad", nil)
	}, nil)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	var calls atomic.Int32
	out, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", NewModelUnavailable("m", 503, true, nil)
		}
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryReturnsLastErrorWhenExhausted(t *testing.T) {
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond}, func(context.Context) error {
		return NewModelUnavailable("m", 503, true, nil)
	}, nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestCalculateBackoffCapsAtMax(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, time.Second, cfg.backoff(0))
	assert.Equal(t, 2*time.Second, cfg.backoff(1))
	assert.Equal(t, 3*time.Second, cfg.backoff(5))
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("ollama", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: 10 * time.Second}, nil)
	cb.now = func() time.Time { return now }

	transient := NewModelUnavailable("m", 503, true, nil)
	fail := func(context.Context) (int, error) { return 0, transient }
	ok := func(context.Context) (int, error) { return 1, nil }

	_, _ = ExecuteFunc(cb, context.Background(), fail)
	assert.Equal(t, StateClosed, cb.State())
	_, _ = ExecuteFunc(cb, context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())

	_, err := ExecuteFunc(cb, context.Background(), ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, KindModelUnavailable, KindOf(err))

	now = now.Add(11 * time.Second)
	v, err := ExecuteFunc(cb, context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresPermanentFailures(t *testing.T) {
	cb := NewCircuitBreaker("ollama", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute}, nil)
	_, err := ExecuteFunc(cb, context.Background(), func(context.Context) (int, error) {
		return 0, NewGenerationFailed("m", 400, "bad request", nil)
	})
	require.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())
}
