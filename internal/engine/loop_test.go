package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	contextpkg "github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/context"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// recordingEmitter captures every event type the loop emits, for
// assertions on progress plumbing that newTestLoop's default nil
// ProgressEmitter can't observe.
type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) Emit(eventType string, data map[string]any) {
	r.events = append(r.events, eventType)
}

func (r *recordingEmitter) saw(eventType string) bool {
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// scriptedStep is one programmed LLM turn.
type scriptedStep struct {
	content   string
	toolCalls []models.ToolCall
}

// scriptedLLM replays a fixed sequence of responses, one per Complete
// call, and records the requests it was given for assertions.
type scriptedLLM struct {
	steps    []scriptedStep
	i        int
	requests []Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req Request) (*Response, error) {
	s.requests = append(s.requests, req)
	if s.i >= len(s.steps) {
		return &Response{Content: "done"}, nil
	}
	step := s.steps[s.i]
	s.i++
	return &Response{Content: step.content, ToolCalls: step.toolCalls}, nil
}

func (s *scriptedLLM) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func rawArgsJSON(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return b
}

func newTestLoop(t *testing.T, llm LLMClient, tools map[string]func(ctx context.Context, args map[string]any) (map[string]any, error)) *AgentLoop {
	t.Helper()
	registry := NewRegistry()
	for name, fn := range tools {
		if err := registry.Register(&fakeTool{name: name, exec: fn}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := registry.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	cache := NewResultCache(ResultCacheConfig{})
	breaker := NewCircuitBreaker(CircuitBreakerConfig{}, nil)
	executor := NewExecutor(registry, cache, breaker, nil, nil, nil)
	scheduler := NewBatchScheduler(executor, registry, BatchSchedulerConfig{
		DefaultTuning: ToolTuning{TimeoutMs: 1000, RetryMax: 0, BackoffBaseMs: 1},
	}, nil)
	summarizer := NewSummarizer(SummarizerConfig{})
	phase := NewPhaseController()
	gate := NewFinalizationGate()

	return NewAgentLoop(registry, cache, breaker, scheduler, summarizer, phase, gate, llm, nil, nil, LoopConfig{MaxIterations: 6}, nil, nil)
}

// TestAgentLoop_TokenBudgetWarningEmitsContextWindowEvent exercises the
// internal/context-backed token-budget tracking added on top of the
// count-based prune: once a tiny registered model window is nearly
// exhausted, the loop emits a context.window event
// in addition to the normal turn events.
func TestAgentLoop_TokenBudgetWarningEmitsContextWindowEvent(t *testing.T) {
	contextpkg.RegisterModelContextWindow("tiny-budget-model", 120)

	hugeResult := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	llm := &scriptedLLM{steps: []scriptedStep{
		{toolCalls: []models.ToolCall{{CallID: "c1", ToolName: "tmdb_search", Arguments: rawArgsJSON(t, map[string]any{"query": "x"})}}},
		{content: "done"},
	}}

	registry := NewRegistry()
	if err := registry.Register(&fakeTool{name: "tmdb_search", exec: func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"results": []any{map[string]any{"id": float64(1), "title": hugeResult}}}, nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	cache := NewResultCache(ResultCacheConfig{})
	breaker := NewCircuitBreaker(CircuitBreakerConfig{}, nil)
	executor := NewExecutor(registry, cache, breaker, nil, nil, nil)
	scheduler := NewBatchScheduler(executor, registry, BatchSchedulerConfig{
		DefaultTuning: ToolTuning{TimeoutMs: 1000, RetryMax: 0, BackoffBaseMs: 1},
	}, nil)
	summarizer := NewSummarizer(SummarizerConfig{})
	phase := NewPhaseController()
	gate := NewFinalizationGate()

	emitter := &recordingEmitter{}
	loop := NewAgentLoop(registry, cache, breaker, scheduler, summarizer, phase, gate, llm, emitter, nil, LoopConfig{MaxIterations: 6}, nil, nil)

	if _, err := loop.Run(context.Background(), "tell me about x", nil, "tiny-budget-model"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !emitter.saw("context.window") {
		t.Fatalf("expected a context.window warning once the tiny model window filled up, got events: %v", emitter.events)
	}
}

// S1: a pure read-only turn. The LLM asks for a search, gets results,
// then finalizes with text and no further tool calls.
func TestAgentLoop_ReadOnlyTurnFinalizes(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptedStep{
		{toolCalls: []models.ToolCall{{CallID: "c1", ToolName: "tmdb_search", Arguments: rawArgsJSON(t, map[string]any{"query": "the matrix"})}}},
		{content: "The Matrix (1999) is a sci-fi classic."},
	}}
	loop := newTestLoop(t, llm, map[string]func(ctx context.Context, args map[string]any) (map[string]any, error){
		"tmdb_search": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"results": []any{map[string]any{"id": float64(603), "title": "The Matrix"}}}, nil
		},
	})

	final, err := loop.Run(context.Background(), "what is the matrix about", nil, "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final != "The Matrix (1999) is a sci-fi classic." {
		t.Fatalf("unexpected final text: %q", final)
	}
	if llm.requests[1].ToolChoice != ToolChoiceNone {
		t.Fatalf("expected finalize turn to request tool_choice=none, got %q", llm.requests[1].ToolChoice)
	}
	if llm.requests[1].Tools != nil {
		t.Fatal("tool_choice=none must never be sent together with a tools list")
	}
}

// S2/S4: must_write scenario. The user's phrasing implies a write; the
// loop must keep the write phase open, run a validation read once the
// write succeeds, and only then finalize.
func TestAgentLoop_MustWriteRequiresWriteThenValidationBeforeFinalize(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptedStep{
		{toolCalls: []models.ToolCall{{CallID: "c1", ToolName: "tmdb_search", Arguments: rawArgsJSON(t, map[string]any{"query": "the matrix"})}}},
		{toolCalls: []models.ToolCall{{CallID: "c2", ToolName: "radarr_add_movie", Arguments: rawArgsJSON(t, map[string]any{"tmdb_id": float64(603)})}}},
		{toolCalls: []models.ToolCall{{CallID: "c3", ToolName: "radarr_get_movies", Arguments: rawArgsJSON(t, map[string]any{})}}},
		{content: "Added The Matrix to Radarr and confirmed it's in your library."},
	}}
	loop := newTestLoop(t, llm, map[string]func(ctx context.Context, args map[string]any) (map[string]any, error){
		"tmdb_search": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"results": []any{map[string]any{"id": float64(603), "title": "The Matrix"}}}, nil
		},
		"radarr_add_movie": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"id": float64(1), "title": "The Matrix", "tmdbId": float64(603)}, nil
		},
		"radarr_get_movies": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"movies": []any{map[string]any{"id": float64(1), "title": "The Matrix", "tmdbId": float64(603)}}}, nil
		},
	})

	final, err := loop.Run(context.Background(), "add the matrix to my radarr", nil, "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final == "" {
		t.Fatal("expected a non-empty final assistant message")
	}
	if len(llm.requests) != 4 {
		t.Fatalf("expected exactly 4 LLM turns (search, write, validate, finalize), got %d", len(llm.requests))
	}
}

// Verifies the assistant/tool message ordering invariant: every
// assistant message with ToolCalls is immediately followed by one
// tool-role message per call, in the same order, before any further
// assistant turn.
func TestAgentLoop_MessageOrderingInvariant(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptedStep{
		{toolCalls: []models.ToolCall{
			{CallID: "c1", ToolName: "tmdb_search", Arguments: rawArgsJSON(t, map[string]any{"query": "a"})},
			{CallID: "c2", ToolName: "tmdb_search", Arguments: rawArgsJSON(t, map[string]any{"query": "b"})},
		}},
		{content: "here you go"},
	}}
	loop := newTestLoop(t, llm, map[string]func(ctx context.Context, args map[string]any) (map[string]any, error){
		"tmdb_search": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"results": []any{map[string]any{"id": float64(1)}}}, nil
		},
	})

	if _, err := loop.Run(context.Background(), "search for a and b", nil, "test-model"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second Complete call's Messages must show: ..., assistant
	// (with 2 ToolCalls), tool(c1), tool(c2).
	messages := llm.requests[1].Messages
	var assistantIdx = -1
	for i, m := range messages {
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			assistantIdx = i
		}
	}
	if assistantIdx == -1 || assistantIdx+2 >= len(messages) {
		t.Fatalf("expected an assistant tool-call message followed by 2 tool messages, got %+v", messages)
	}
	if messages[assistantIdx+1].Role != models.RoleTool || messages[assistantIdx+1].ToolCallID != "c1" {
		t.Fatalf("expected tool message for c1 immediately after assistant turn, got %+v", messages[assistantIdx+1])
	}
	if messages[assistantIdx+2].Role != models.RoleTool || messages[assistantIdx+2].ToolCallID != "c2" {
		t.Fatalf("expected tool message for c2 second, got %+v", messages[assistantIdx+2])
	}
}

// Exhausting the iteration budget without ever completing a required
// write must return the must_write fallback text, not a silent empty
// finalize.
func TestAgentLoop_ExhaustedBudgetWithUnmetMustWriteFallsBack(t *testing.T) {
	steps := make([]scriptedStep, 0, 8)
	for i := 0; i < 8; i++ {
		steps = append(steps, scriptedStep{toolCalls: []models.ToolCall{
			{CallID: "c1", ToolName: "tmdb_search", Arguments: rawArgsJSON(t, map[string]any{"query": "x"})},
		}})
	}
	llm := &scriptedLLM{steps: steps}
	loop := newTestLoop(t, llm, map[string]func(ctx context.Context, args map[string]any) (map[string]any, error){
		"tmdb_search": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"results": []any{map[string]any{"id": float64(1)}}}, nil
		},
	})

	final, err := loop.Run(context.Background(), "add some show to my radarr", nil, "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final == "" {
		t.Fatal("expected a non-empty fallback message")
	}
}

// A failed LLM call must surface as a LoopError, not be swallowed.
func TestAgentLoop_LLMFailurePropagates(t *testing.T) {
	llm := &failingLLM{}
	loop := newTestLoop(t, llm, nil)

	_, err := loop.Run(context.Background(), "hello", nil, "test-model")
	if err == nil {
		t.Fatal("expected an error when the LLM transport fails")
	}
	var loopErr *LoopError
	if !asLoopError(err, &loopErr) {
		t.Fatalf("expected a *LoopError, got %T: %v", err, err)
	}
}

type failingLLM struct{}

func (f *failingLLM) Complete(ctx context.Context, req Request) (*Response, error) {
	return nil, context.DeadlineExceeded
}
func (f *failingLLM) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func asLoopError(err error, target **LoopError) bool {
	le, ok := err.(*LoopError)
	if !ok {
		return false
	}
	*target = le
	return true
}
