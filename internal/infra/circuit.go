// Package infra holds process-wide reliability primitives for the
// provider layer. The circuit breaker here is the three-state
// (closed/open/half-open) variant used to skip LLM provider/model
// candidates that are failing hard; per-tool breaking inside the engine
// uses a simpler two-state predicate and lives there.
package infra

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is refused because the breaker
// is open and its probe window has not arrived yet.
var ErrCircuitOpen = errors.New("circuit open")

// State is the breaker's position in the closed/open/half-open cycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig tunes one breaker. Zero values take defaults:
// 5 consecutive failures to open, 2 half-open successes to close, 30s
// open before probing.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// CircuitBreaker refuses calls after repeated failures, letting a
// struggling upstream recover instead of being hammered. After Timeout
// it admits probe calls; SuccessThreshold consecutive probe successes
// close it again, any probe failure re-opens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	changedAt time.Time
}

// NewCircuitBreaker builds a closed breaker with defaults applied.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), changedAt: time.Now()}
}

// State reports the breaker's current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow admits or refuses the next call, moving open → half-open once
// the probe window arrives.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.changedAt) < cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.shift(StateHalfOpen)
	}
	return nil
}

// observe folds one call outcome into the state machine.
func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold) {
			cb.shift(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.shift(StateClosed)
		}
	}
}

// shift transitions the state and resets both counters. Caller holds mu.
func (cb *CircuitBreaker) shift(to State) {
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.changedAt = time.Now()
}

// ExecuteWithResult runs fn under the breaker: refused outright with
// ErrCircuitOpen while open, otherwise executed with its outcome
// recorded.
func ExecuteWithResult[T any](cb *CircuitBreaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	result, err := fn(ctx)
	cb.observe(err)
	return result, err
}

// CircuitBreakerRegistry lazily creates one breaker per name, all
// sharing the same defaults.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	byName   map[string]*CircuitBreaker
	defaults CircuitBreakerConfig
}

// NewCircuitBreakerRegistry builds an empty registry.
func NewCircuitBreakerRegistry(defaults CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		byName:   make(map[string]*CircuitBreaker),
		defaults: defaults.withDefaults(),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.byName[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(r.defaults)
	r.byName[name] = cb
	return cb
}
