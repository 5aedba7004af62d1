package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/backoff"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/observability"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// Executor is C4: runs one tool invocation with timeout,
// retry-with-backoff-jitter, optional hedging, and error
// classification, consulting the dedup/cache and circuit breaker.
type Executor struct {
	registry *Registry
	cache    *ResultCache
	breaker  *CircuitBreaker
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// NewExecutor wires C4 to its collaborators. metrics and tracer are
// optional; a nil value disables the corresponding instrumentation.
func NewExecutor(registry *Registry, cache *ResultCache, breaker *CircuitBreaker, logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, cache: cache, breaker: breaker, logger: logger, metrics: metrics, tracer: tracer}
}

// Execute runs call under tuning, consulting dedup via the run's
// DedupMap and the cross-run cache, then following the retry/hedge
// execution algorithm below. It spans and records metrics for the
// whole invocation, then delegates to executeTool for the algorithm
// itself.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall, tuning ToolTuning, dedup *DedupMap) models.ToolResult {
	start := time.Now()

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceToolExecution(ctx, call.ToolName)
		defer span.End()
	}

	result := e.executeTool(ctx, call, tuning, dedup, start)

	if e.metrics != nil {
		status := "success"
		if result.Outcome == models.OutcomeError {
			status = "error"
		}
		attempts := result.Attempts
		if attempts < 1 {
			attempts = 1
		}
		e.metrics.RecordToolCall(call.ToolName, status, time.Since(start).Seconds(), attempts)
	}

	return result
}

// executeTool implements C4's dedup/cache/breaker/retry algorithm.
func (e *Executor) executeTool(ctx context.Context, call models.ToolCall, tuning ToolTuning, dedup *DedupMap, start time.Time) models.ToolResult {

	tool := e.registry.Get(call.ToolName)
	if tool == nil {
		return models.ToolResult{
			CallID:     call.CallID,
			ToolName:   call.ToolName,
			Outcome:    models.OutcomeError,
			Error:      &models.ToolResultError{Kind: models.ErrorKindNonRetryable, Message: "tool not found in registry"},
			Attempts:   0,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	// Step 1: parse arguments.
	args, err := parseArguments(call.Arguments)
	if err != nil {
		return models.ToolResult{
			CallID:     call.CallID,
			ToolName:   call.ToolName,
			Outcome:    models.OutcomeError,
			Error:      &models.ToolResultError{Kind: models.ErrorKindInvalidJSON, Message: err.Error()},
			Attempts:   0,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if err := e.registry.Validate(call.ToolName, args); err != nil {
		return models.ToolResult{
			CallID:     call.CallID,
			ToolName:   call.ToolName,
			Outcome:    models.OutcomeError,
			Error:      &models.ToolResultError{Kind: models.ErrorKindInvalidJSON, Message: "schema validation: " + err.Error()},
			Attempts:   0,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	family := e.registry.ClassifyFamily(call.ToolName)
	writeStyle := IsWriteStyleTool(call.ToolName)
	dedupKey := CanonicalizeArgs(call.ToolName, args)

	// Step 2: in-run dedup check.
	if cached, hit := dedup.Get(dedupKey); hit {
		refID := e.cache.StoreRefOnly(cached)
		return models.ToolResult{
			CallID:     call.CallID,
			ToolName:   call.ToolName,
			Outcome:    models.OutcomeOK,
			Value:      cached,
			Attempts:   0,
			CacheHit:   true,
			DurationMs: time.Since(start).Milliseconds(),
			RefID:      refID,
		}
	}

	// Cross-run cache (reads only; writes are never cached).
	if !writeStyle {
		cachedVal, refID, hit := e.cache.Lookup(dedupKey)
		if e.metrics != nil {
			if hit {
				e.metrics.RecordCacheHit()
			} else {
				e.metrics.RecordCacheMiss()
			}
		}
		if hit {
			dedup.Put(dedupKey, cachedVal)
			return models.ToolResult{
				CallID:     call.CallID,
				ToolName:   call.ToolName,
				Outcome:    models.OutcomeOK,
				Value:      cachedVal,
				Attempts:   0,
				CacheHit:   true,
				DurationMs: time.Since(start).Milliseconds(),
				RefID:      refID,
			}
		}
	}

	// Step 3: breaker check.
	if e.breaker.IsOpen(call.ToolName) {
		return models.ToolResult{
			CallID:     call.CallID,
			ToolName:   call.ToolName,
			Outcome:    models.OutcomeError,
			Error:      &models.ToolResultError{Kind: models.ErrorKindCircuitOpen, Message: "circuit open for " + call.ToolName},
			Attempts:   0,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	hedgeEligible := !writeStyle && family == FamilyTMDb && tuning.HedgeDelayMs > 0

	value, attempts, classifyKind, runErr := e.retryLoop(ctx, tool, args, tuning, hedgeEligible)

	result := models.ToolResult{
		CallID:     call.CallID,
		ToolName:   call.ToolName,
		Attempts:   attempts,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if runErr == nil {
		e.breaker.RecordSuccess(call.ToolName)
		dedup.Put(dedupKey, value)
		refID := e.cache.Store(dedupKey, family, writeStyle, value)
		result.Outcome = models.OutcomeOK
		result.Value = value
		result.RefID = refID
		return result
	}

	// Step 5: record final outcome on the breaker.
	if classifyKind.CountsTowardBreaker() {
		e.breaker.RecordFailure(call.ToolName)
	}

	result.Outcome = models.OutcomeError
	result.Error = &models.ToolResultError{Kind: classifyKind, Message: runErr.Error()}
	return result
}

// retryLoop implements steps 4a-4d: up to retry_max+1 attempts, each
// with a hard per-attempt deadline, optional hedging for eligible
// reads, and jittered backoff between attempts.
func (e *Executor) retryLoop(ctx context.Context, tool Tool, args map[string]any, tuning ToolTuning, hedgeEligible bool) (map[string]any, int, models.ErrorKind, error) {
	maxAttempts := tuning.RetryMax + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var lastKind models.ErrorKind = models.ErrorKindRetryable

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var value map[string]any
		var err error

		if hedgeEligible && tuning.HedgeDelayMs >= 0 {
			value, err = e.runHedged(ctx, tool, args, tuning)
		} else {
			value, err = e.runWithDeadline(ctx, tool, args, tuning.TimeoutMs)
		}

		if err == nil {
			return value, attempt, "", nil
		}

		lastErr = err
		lastKind = ClassifyError(err)

		// non_retryable and circuit_open stop the loop immediately.
		if lastKind == models.ErrorKindNonRetryable || lastKind == models.ErrorKindCircuitOpen {
			return nil, attempt, lastKind, lastErr
		}

		if attempt == maxAttempts {
			break
		}

		if err := backoff.SleepWithContext(ctx, backoffWithJitter(tuning.BackoffBaseMs, attempt)); err != nil {
			return nil, attempt, models.ErrorKindTimeout, err
		}
	}

	return nil, maxAttempts, lastKind, lastErr
}

// backoffWithJitter computes backoff_base_ms * 2^attempt + jitter,
// jitter = (attempt+1)*100ms, capped at a sensible ceiling so runaway
// retry budgets cannot stall a turn indefinitely.
func backoffWithJitter(backoffBaseMs, attempt int) time.Duration {
	const backoffCap = 30 * time.Second

	base := float64(backoffBaseMs) * math.Pow(2, float64(attempt))
	jitter := float64(attempt+1) * 100.0
	total := time.Duration(base+jitter) * time.Millisecond

	if total > backoffCap {
		return backoffCap
	}
	if total < 0 {
		return 0
	}
	return total
}

// runWithDeadline runs one attempt with a hard timeout. A zero-ms
// timeout is deliberately honored as an immediate deadline so that
// Timeout(0) returns a timeout result on the first attempt.
func (e *Executor) runWithDeadline(parent context.Context, tool Tool, args map[string]any, timeoutMs int) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(parent, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	type outcome struct {
		value map[string]any
		err   error
	}
	ch := make(chan outcome, 1)

	go func() {
		v, err := tool.Execute(ctx, args)
		select {
		case ch <- outcome{v, err}:
		default:
		}
	}()

	select {
	case <-ctx.Done():
		return nil, &ToolError{Kind: models.ErrorKindTimeout, Message: "tool deadline exceeded"}
	case o := <-ch:
		return o.value, o.err
	}
}

// runHedged implements hedged requests: start a primary attempt; if it
// has not completed within hedge_delay_ms, start a secondary attempt
// concurrently; take whichever completes first, cancel the loser.
// hedge_delay_ms=0 starts both attempts concurrently. The hedged pair
// counts as a single logical attempt.
func (e *Executor) runHedged(parent context.Context, tool Tool, args map[string]any, tuning ToolTuning) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(parent, time.Duration(tuning.TimeoutMs)*time.Millisecond)
	defer cancel()

	type outcome struct {
		value map[string]any
		err   error
	}

	resultCh := make(chan outcome, 2)
	primaryDone := make(chan struct{})

	run := func() {
		v, err := tool.Execute(ctx, args)
		select {
		case resultCh <- outcome{v, err}:
		default:
		}
	}

	go func() {
		run()
		close(primaryDone)
	}()

	hedgeTimer := time.NewTimer(time.Duration(tuning.HedgeDelayMs) * time.Millisecond)
	defer hedgeTimer.Stop()

	select {
	case <-primaryDone:
	case <-hedgeTimer.C:
		go run()
	case <-ctx.Done():
		return nil, &ToolError{Kind: models.ErrorKindTimeout, Message: "tool deadline exceeded"}
	}

	select {
	case o := <-resultCh:
		return o.value, o.err
	case <-ctx.Done():
		return nil, &ToolError{Kind: models.ErrorKindTimeout, Message: "tool deadline exceeded"}
	}
}

// parseArguments decodes the LLM-supplied JSON argument payload into a
// free-form structured value: accept as a tagged JSON tree and validate
// per-tool via schema, not per-tool structs.
func parseArguments(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	m, err := decodeJSONObject(string(raw))
	if err != nil {
		return nil, err
	}
	return m, nil
}
