package providers

import (
	"context"
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/backoff"
)

// BaseProvider holds shared retry configuration for LLM providers.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
	policy     backoff.BackoffPolicy
}

// NewBaseProvider creates a base provider with sane defaults. retryDelay
// seeds the retry backoff policy as its initial delay (factor 2, 10%
// jitter, capped at 30x the initial delay).
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	initialMs := float64(retryDelay.Milliseconds())
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		policy: backoff.BackoffPolicy{
			InitialMs: initialMs,
			MaxMs:     initialMs * 30,
			Factor:    2,
			Jitter:    0.1,
		},
	}
}

// Retry executes op with exponential backoff-with-jitter if isRetryable
// returns true.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
			if isRetryable == nil || !isRetryable(err) {
				return err
			}
			if attempt >= b.maxRetries {
				break
			}
			if err := backoff.SleepWithContext(ctx, backoff.ComputeBackoff(b.policy, attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}
