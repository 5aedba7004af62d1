package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

func newExecutorWithTool(t *testing.T, name string, exec func(ctx context.Context, args map[string]any) (map[string]any, error)) (*Executor, *CircuitBreaker) {
	t.Helper()
	registry := NewRegistry()
	if err := registry.Register(&fakeTool{name: name, exec: exec}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	cache := NewResultCache(ResultCacheConfig{})
	breaker := NewCircuitBreaker(CircuitBreakerConfig{OpenAfterFailures: 2, OpenForMs: time.Hour}, nil)
	return NewExecutor(registry, cache, breaker, nil, nil, nil), breaker
}

func toolCall(name string, args map[string]any) models.ToolCall {
	b, _ := json.Marshal(args)
	return models.ToolCall{CallID: "c1", ToolName: name, Arguments: b}
}

func TestExecutor_InvalidJSONNoRetryNoBreakerEffect(t *testing.T) {
	exec, breaker := newExecutorWithTool(t, "tmdb_search", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		t.Fatal("tool must not be invoked when argument parsing fails")
		return nil, nil
	})
	call := models.ToolCall{CallID: "c1", ToolName: "tmdb_search", Arguments: json.RawMessage("{not json")}
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000}, NewDedupMap())

	if result.Outcome != models.OutcomeError || result.Error.Kind != models.ErrorKindInvalidJSON {
		t.Fatalf("expected invalid_json error, got %+v", result)
	}
	if result.Attempts != 0 {
		t.Fatalf("invalid_json must not retry, attempts=%d", result.Attempts)
	}
	if breaker.FailureCount("tmdb_search") != 0 {
		t.Fatal("invalid_json must not affect the circuit breaker")
	}
}

func TestExecutor_DedupHitSkipsInvocation(t *testing.T) {
	var invocations int32
	exec, _ := newExecutorWithTool(t, "tmdb_search", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		atomic.AddInt32(&invocations, 1)
		return map[string]any{"results": []any{map[string]any{"id": float64(1)}}}, nil
	})
	dedup := NewDedupMap()
	call := toolCall("tmdb_search", map[string]any{"query": "x"})

	first := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000}, dedup)
	second := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000}, dedup)

	if first.CacheHit {
		t.Fatal("first call should not be a cache hit")
	}
	if !second.CacheHit || second.Attempts != 0 {
		t.Fatalf("second identical call should be a dedup hit with attempts=0, got %+v", second)
	}
	if invocations != 1 {
		t.Fatalf("tool should be invoked exactly once for duplicate calls in one run, got %d", invocations)
	}
	if second.Value["results"] == nil {
		t.Fatal("dedup hit should carry the identical value")
	}
}

func TestExecutor_CircuitOpenShortCircuits(t *testing.T) {
	exec, breaker := newExecutorWithTool(t, "radarr_add_movie", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		t.Fatal("tool must not be invoked while the circuit is open")
		return nil, nil
	})
	breaker.RecordFailure("radarr_add_movie")
	breaker.RecordFailure("radarr_add_movie") // crosses threshold of 2

	call := toolCall("radarr_add_movie", map[string]any{"tmdb_id": 1})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000}, NewDedupMap())

	if result.Outcome != models.OutcomeError || result.Error.Kind != models.ErrorKindCircuitOpen {
		t.Fatalf("expected circuit_open, got %+v", result)
	}
	if result.Attempts != 0 {
		t.Fatalf("circuit_open results must not count as an attempt, got %d", result.Attempts)
	}
}

func TestExecutor_RetriesRetryableThenSucceeds(t *testing.T) {
	var attempts int32
	exec, breaker := newExecutorWithTool(t, "tmdb_search", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, errors.New("500 internal server error")
		}
		return map[string]any{"results": []any{}}, nil
	})
	call := toolCall("tmdb_search", map[string]any{"query": "x"})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000, RetryMax: 3, BackoffBaseMs: 1}, NewDedupMap())

	if result.Outcome != models.OutcomeOK {
		t.Fatalf("expected eventual success, got %+v", result)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}
	if breaker.FailureCount("tmdb_search") != 0 {
		t.Fatal("a successful final attempt should reset the breaker")
	}
}

func TestExecutor_NonRetryableStopsImmediately(t *testing.T) {
	var attempts int32
	exec, breaker := newExecutorWithTool(t, "radarr_add_movie", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("401 Unauthorized")
	})
	call := toolCall("radarr_add_movie", map[string]any{"tmdb_id": 1})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000, RetryMax: 5, BackoffBaseMs: 1}, NewDedupMap())

	if result.Outcome != models.OutcomeError || result.Error.Kind != models.ErrorKindNonRetryable {
		t.Fatalf("expected non_retryable, got %+v", result)
	}
	if attempts != 1 {
		t.Fatalf("non_retryable must stop after a single attempt, got %d", attempts)
	}
	if breaker.FailureCount("radarr_add_movie") != 1 {
		t.Fatalf("non_retryable must still count toward the breaker, got %d", breaker.FailureCount("radarr_add_movie"))
	}
}

func TestExecutor_RetryMaxZeroAllowsOnlyOneAttempt(t *testing.T) {
	var attempts int32
	exec, _ := newExecutorWithTool(t, "tmdb_search", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("connection reset")
	})
	call := toolCall("tmdb_search", map[string]any{"query": "x"})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000, RetryMax: 0, BackoffBaseMs: 1}, NewDedupMap())

	if result.Attempts != 1 {
		t.Fatalf("retry_max=0 must allow at most one attempt, got %d", result.Attempts)
	}
	if result.Outcome != models.OutcomeError {
		t.Fatal("expected error outcome")
	}
}

func TestExecutor_TimeoutZeroReturnsImmediateTimeout(t *testing.T) {
	exec, _ := newExecutorWithTool(t, "tmdb_search", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	call := toolCall("tmdb_search", map[string]any{"query": "x"})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 0, RetryMax: 0, BackoffBaseMs: 1}, NewDedupMap())

	if result.Outcome != models.OutcomeError || result.Error.Kind != models.ErrorKindTimeout {
		t.Fatalf("expected timeout with a 0ms deadline, got %+v", result)
	}
}

func TestExecutor_WriteStyleToolNeverHedgesOrCaches(t *testing.T) {
	var attempts int32
	exec, _ := newExecutorWithTool(t, "radarr_add_movie", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		atomic.AddInt32(&attempts, 1)
		time.Sleep(5 * time.Millisecond)
		return map[string]any{"id": float64(1), "title": "The Matrix"}, nil
	})
	call := toolCall("radarr_add_movie", map[string]any{"tmdb_id": 603})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000, HedgeDelayMs: 1}, NewDedupMap())

	if result.Outcome != models.OutcomeOK {
		t.Fatalf("expected success, got %+v", result)
	}
	// Give any erroneous hedge goroutine a chance to fire before asserting.
	time.Sleep(20 * time.Millisecond)
	if attempts != 1 {
		t.Fatalf("write-style tools must never hedge, observed %d invocations", attempts)
	}
}

func TestExecutor_HedgingRacesAndCancelsLoser(t *testing.T) {
	var primaryCalls, secondaryCalls int32
	first := true
	exec, _ := newExecutorWithTool(t, "tmdb_search", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		if first {
			first = false
			atomic.AddInt32(&primaryCalls, 1)
			select {
			case <-time.After(200 * time.Millisecond):
				return map[string]any{"source": "primary"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		atomic.AddInt32(&secondaryCalls, 1)
		return map[string]any{"source": "secondary"}, nil
	})
	call := toolCall("tmdb_search", map[string]any{"query": "x"})
	start := time.Now()
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 2000, HedgeDelayMs: 20}, NewDedupMap())
	elapsed := time.Since(start)

	if result.Outcome != models.OutcomeOK {
		t.Fatalf("expected success from the hedged secondary attempt, got %+v", result)
	}
	if result.Value["source"] != "secondary" {
		t.Fatalf("expected the faster secondary attempt to win, got %v", result.Value)
	}
	if result.Attempts != 1 {
		t.Fatalf("a hedged pair counts as a single logical attempt, got %d", result.Attempts)
	}
	if elapsed > 150*time.Millisecond {
		t.Fatalf("hedged result should return quickly once the secondary completes, took %v", elapsed)
	}
}

func TestExecutor_SchemaValidationRejectsMissingRequiredField(t *testing.T) {
	registry := NewRegistry()
	tool := &fakeTool{
		name:   "tmdb_search",
		schema: `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`,
		exec: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			t.Fatal("tool must not run when schema validation fails")
			return nil, nil
		},
	}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	cache := NewResultCache(ResultCacheConfig{})
	breaker := NewCircuitBreaker(CircuitBreakerConfig{}, nil)
	exec := NewExecutor(registry, cache, breaker, nil, nil, nil)

	call := toolCall("tmdb_search", map[string]any{})
	result := exec.Execute(context.Background(), call, ToolTuning{TimeoutMs: 1000}, NewDedupMap())
	if result.Outcome != models.OutcomeError {
		t.Fatalf("expected schema validation failure to surface as an error, got %+v", result)
	}
}

func TestBackoffWithJitter_MonotonicAndCapped(t *testing.T) {
	prev := backoffWithJitter(100, 1)
	for attempt := 2; attempt < 6; attempt++ {
		next := backoffWithJitter(100, attempt)
		if next < prev {
			t.Fatalf("expected backoff to grow with attempt number, attempt=%d: prev=%v next=%v", attempt, prev, next)
		}
		prev = next
	}
	if got := backoffWithJitter(1_000_000, 10); got != 30*time.Second {
		t.Fatalf("expected backoff to clamp to the cap, got %v", got)
	}
}
