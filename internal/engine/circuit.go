package engine

import (
	"sync"
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/observability"
)

// CircuitBreakerConfig tunes the per-tool breaker.
type CircuitBreakerConfig struct {
	OpenAfterFailures int           // default 3
	OpenForMs         time.Duration // default 3s
}

// circuitState is the mutable per-tool state backing the derived
// "open" predicate: open = failure_count >= threshold AND
// (now - last_failure) < cooldown. There is no explicit half-open
// state; the breaker auto-resets to closed on the next attempt once
// the cooldown elapses.
type circuitState struct {
	failureCount  int
	lastFailureAt time.Time
}

// CircuitBreaker implements C3: per-tool failure counting with a
// derived open/closed predicate and a cooldown-based auto-reset.
type CircuitBreaker struct {
	mu      sync.Mutex
	states  map[string]*circuitState
	cfg     CircuitBreakerConfig
	metrics *observability.Metrics
}

// NewCircuitBreaker creates a breaker with the given config, applying
// sensible defaults (threshold 3, cooldown 3s) for zero values. metrics
// is optional; a nil value disables the circuit_state/circuit_failures
// instrumentation.
func NewCircuitBreaker(cfg CircuitBreakerConfig, metrics *observability.Metrics) *CircuitBreaker {
	if cfg.OpenAfterFailures <= 0 {
		cfg.OpenAfterFailures = 3
	}
	if cfg.OpenForMs <= 0 {
		cfg.OpenForMs = 3 * time.Second
	}
	return &CircuitBreaker{
		states:  make(map[string]*circuitState),
		cfg:     cfg,
		metrics: metrics,
	}
}

// IsOpen evaluates the derived predicate for toolName.
func (b *CircuitBreaker) IsOpen(toolName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpenLocked(toolName)
}

func (b *CircuitBreaker) isOpenLocked(toolName string) bool {
	st, ok := b.states[toolName]
	if !ok {
		return false
	}
	if st.failureCount < b.cfg.OpenAfterFailures {
		return false
	}
	return time.Since(st.lastFailureAt) < b.cfg.OpenForMs
}

// RecordSuccess resets the breaker for toolName immediately.
func (b *CircuitBreaker) RecordSuccess(toolName string) {
	b.mu.Lock()
	_, wasTracked := b.states[toolName]
	delete(b.states, toolName)
	b.mu.Unlock()

	if b.metrics != nil && wasTracked {
		b.metrics.SetCircuitState(toolName, false)
	}
}

// RecordFailure increments the failure counter for toolName and marks
// the failure time used by the cooldown predicate. Callers should only
// invoke this for error kinds where CountsTowardBreaker() is true
// (timeout, non_retryable, rate_limited, retryable) — invalid_json and
// circuit_open never reach here.
func (b *CircuitBreaker) RecordFailure(toolName string) {
	b.mu.Lock()

	st, ok := b.states[toolName]
	if !ok {
		st = &circuitState{}
		b.states[toolName] = st
	}

	// A cooldown that has already elapsed implicitly resets the streak:
	// this failure starts a fresh count rather than compounding against
	// a failure_count that auto-reset on the read side.
	if st.failureCount >= b.cfg.OpenAfterFailures && time.Since(st.lastFailureAt) >= b.cfg.OpenForMs {
		st.failureCount = 0
	}

	st.failureCount++
	st.lastFailureAt = time.Now()
	nowOpen := st.failureCount >= b.cfg.OpenAfterFailures
	b.mu.Unlock()

	if b.metrics == nil {
		return
	}
	b.metrics.RecordCircuitFailure(toolName)
	if nowOpen {
		b.metrics.SetCircuitState(toolName, true)
	}
}

// FailureCount returns the current failure streak for toolName (for
// tests and metrics).
func (b *CircuitBreaker) FailureCount(toolName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[toolName]
	if !ok {
		return 0
	}
	return st.failureCount
}
