package errors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/darrellrafa/Nutribot/internal/logging"
)

// CircuitState is the position of a CircuitBreaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

var circuitStateNames = [...]string{"closed", "open", "half-open"}

func (s CircuitState) String() string {
	if int(s) < len(circuitStateNames) && s >= 0 {
		return circuitStateNames[s]
	}
	return "unknown"
}

// CircuitBreakerConfig tunes when a breaker trips and recovers.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a probe is let through.
	Timeout time.Duration
	// OnStateChange runs synchronously with the breaker unlocked.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig trips after five consecutive transient
// failures and probes again after thirty seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker stops calling a model backend that keeps failing so chat
// requests fail fast with KindModelUnavailable instead of queueing.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger logging.Logger) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// ExecuteFunc calls fn unless the circuit is open. Permanent failures such
// as a bad request count as successes: the backend answered.
func ExecuteFunc[T any](cb *CircuitBreaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := cb.Allow(); err != nil {
		var zero T
		return zero, err
	}
	result, err := fn(ctx)
	if err != nil && IsTransient(err) {
		cb.Mark(err)
	} else {
		cb.Mark(nil)
	}
	return result, err
}

// Allow returns an error wrapping ErrCircuitOpen while the circuit is open.
// Once Timeout has passed the breaker moves to half-open and admits calls.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	wait := cb.config.Timeout - cb.now().Sub(cb.openedAt)
	if wait > 0 {
		cb.mu.Unlock()
		return fmt.Errorf("%w for %s, retry in %v", ErrCircuitOpen, cb.name, wait.Round(time.Second))
	}
	cb.successes = 0
	notify := cb.transition(StateHalfOpen)
	cb.mu.Unlock()
	notify()
	return nil
}

// Mark records the outcome of an admitted call; nil means success.
func (cb *CircuitBreaker) Mark(err error) {
	cb.mu.Lock()
	notify := cb.record(err)
	cb.mu.Unlock()
	notify()
}

func (cb *CircuitBreaker) record(err error) func() {
	if err != nil {
		switch cb.state {
		case StateClosed:
			cb.failures++
			if cb.failures < cb.config.FailureThreshold {
				return func() {}
			}
		case StateOpen:
			return func() {}
		}
		cb.openedAt = cb.now()
		cb.successes = 0
		return cb.transition(StateOpen)
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.failures = 0
			cb.successes = 0
			return cb.transition(StateClosed)
		}
	}
	return func() {}
}

// transition must be called with mu held. The returned func fires the
// callback and must run after mu is released.
func (cb *CircuitBreaker) transition(to CircuitState) func() {
	from := cb.state
	cb.state = to
	switch to {
	case StateOpen:
		cb.logger.Warn("[%s] circuit open after %d failures", cb.name, cb.failures)
	case StateHalfOpen:
		cb.logger.Info("[%s] circuit half-open, probing backend", cb.name)
	case StateClosed:
		cb.logger.Info("[%s] circuit closed, backend recovered", cb.name)
	}
	hook := cb.config.OnStateChange
	if hook == nil || from == to {
		return func() {}
	}
	return func() { hook(cb.name, from, to) }
}

// State reports the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
