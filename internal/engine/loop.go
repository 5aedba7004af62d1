package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	contextpkg "github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/context"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/observability"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// ProgressEmitter is the minimal surface C9 needs from C10, kept local
// to engine so internal/progress can depend on engine without a
// cycle. internal/progress.Broadcaster implements this.
type ProgressEmitter interface {
	Emit(eventType string, data map[string]any)
}

// LoopConfig tunes C9's per-role iteration budget and context pruning.
type LoopConfig struct {
	MaxIterations       int // typical 4-8
	KeepLastToolMessages int // default 12
	PreferencesContext  string // optional compact household-preferences blurb
}

// AgentLoop is C9: orchestrates turns end to end.
type AgentLoop struct {
	registry   *Registry
	cache      *ResultCache
	breaker    *CircuitBreaker
	scheduler  *BatchScheduler
	summarizer *Summarizer
	phase      *PhaseController
	gate       *FinalizationGate
	llm        LLMClient
	progress   ProgressEmitter
	logger     *slog.Logger
	cfg        LoopConfig
	metrics    *observability.Metrics
	tracer     *observability.Tracer
}

// NewAgentLoop wires C9 to C1-C8 and C10. metrics and tracer are
// optional; a nil value disables the corresponding instrumentation.
func NewAgentLoop(registry *Registry, cache *ResultCache, breaker *CircuitBreaker, scheduler *BatchScheduler, summarizer *Summarizer, phase *PhaseController, gate *FinalizationGate, llm LLMClient, progress ProgressEmitter, logger *slog.Logger, cfg LoopConfig, metrics *observability.Metrics, tracer *observability.Tracer) *AgentLoop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 6
	}
	if cfg.KeepLastToolMessages <= 0 {
		cfg.KeepLastToolMessages = 12
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentLoop{
		registry: registry, cache: cache, breaker: breaker, scheduler: scheduler,
		summarizer: summarizer, phase: phase, gate: gate, llm: llm, progress: progress,
		logger: logger, cfg: cfg, metrics: metrics, tracer: tracer,
	}
}

func (a *AgentLoop) emit(eventType string, data map[string]any) {
	if a.progress == nil {
		return
	}
	a.progress.Emit(eventType, data)
}

// Run drives turns 0..MaxIterations, returning the final assistant text.
func (a *AgentLoop) Run(ctx context.Context, userText string, history []models.Message, model string) (string, error) {
	rs := NewRunState(InferMustWrite(userText))
	messages := append([]models.Message{}, history...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: userText, CreatedAt: time.Now()})

	a.emit("agent.start", map[string]any{"must_write": rs.MustWrite})
	a.emitPhase(rs.Phase)

	defer func() {
		a.emit("agent.finish", map[string]any{})
		a.emit("agent.metrics", map[string]any{
			"llm_calls":  rs.LLMCallCount,
			"tool_calls": rs.ToolCallCount,
			"elapsed_ms": rs.Elapsed().Milliseconds(),
		})
	}()

	for rs.IterIndex = 0; rs.IterIndex < a.cfg.MaxIterations; rs.IterIndex++ {
		final, done, err := a.step(ctx, rs, &messages, model)
		if err != nil {
			return "", err
		}
		if done {
			return final, nil
		}
	}

	return a.exhaustedFallback(rs), nil
}

// step runs one full turn (request, tool calls, summarize, prune,
// phase advance, finalization check). Returns (finalText,
// done, err).
func (a *AgentLoop) step(ctx context.Context, rs *RunState, messages *[]models.Message, model string) (string, bool, error) {
	// Step 1-2: system prompt, optional must_write directive.
	system := a.buildSystemPrompt(rs)

	toolChoice := rs.ConsumeToolChoiceOverride()

	req := Request{
		Model:      model,
		Messages:   *messages,
		Tools:      a.registry.Schemas(),
		ToolChoice: toolChoice,
		System:     system,
	}
	// Never send tool_choice=none without also omitting the tools list.
	if toolChoice == ToolChoiceNone {
		req.Tools = nil
	}

	a.emit("llm.start", map[string]any{"iteration": rs.IterIndex})

	var llmSpan trace.Span
	if a.tracer != nil {
		ctx, llmSpan = a.tracer.TraceLLMRequest(ctx, "", model)
	}
	llmStart := time.Now()
	resp, err := a.llm.Complete(ctx, req)
	rs.LLMCallCount++
	if a.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordLLMCall(model, status, time.Since(llmStart).Seconds())
	}
	if llmSpan != nil {
		if err != nil {
			a.tracer.RecordError(llmSpan, err)
		}
		llmSpan.End()
	}
	a.emit("llm.finish", map[string]any{"iteration": rs.IterIndex})
	if err != nil {
		return "", false, &LoopError{Phase: rs.Phase, Iteration: rs.IterIndex, Message: "llm call failed", Cause: err}
	}

	// Step 4: no tool calls.
	if !resp.HasToolCalls() {
		if !a.gate.EvaluateNoToolCallsReturned(rs) {
			*messages = append(*messages, models.Message{
				Role:      models.RoleSystem,
				Content:   "A write action is still required to satisfy the user's request. Call the appropriate tool now.",
				CreatedAt: time.Now(),
			})
			return "", false, nil
		}
		return resp.Content, true, nil
	}

	// Step 5: phase filtering.
	filtered := a.phase.FilterCalls(rs, resp.ToolCalls, a.registry)

	// Step 6: assistant message with exactly the filtered tool calls.
	*messages = append(*messages, models.Message{
		Role:      models.RoleAssistant,
		ToolCalls: filtered,
		CreatedAt: time.Now(),
	})

	// Step 7: group and execute.
	results := a.scheduler.Run(ctx, filtered, rs.Dedup)
	rs.ToolCallCount += len(results)

	for i := range results {
		a.emitToolResult(results[i])
	}

	// Step 8: summarize and append tool messages in declared order.
	for i, result := range results {
		family := a.registry.ClassifyFamily(result.ToolName)
		var summary any
		if result.Outcome == models.OutcomeOK {
			summary = a.summarizer.Summarize(family, result.Value, DetailStandard)
		} else {
			summary = map[string]any{"error": result.Error}
		}
		payload := models.ToolMessagePayload{RefID: result.RefID, Summary: summary}
		*messages = append(*messages, models.Message{
			Role:       models.RoleTool,
			ToolCallID: result.CallID,
			ToolName:   result.ToolName,
			Content:    renderToolPayload(payload),
			CreatedAt:  time.Now(),
		})
		_ = i
	}

	// Prune context, tightening the keep-last-K budget further if the
	// conversation is approaching the model's token window.
	*messages = a.pruneContext(*messages)
	a.trackWindowBudget(model, *messages)

	// Step 10: update RunState and transition phase; track write identity.
	a.trackWriteIdentity(rs, filtered, results)
	a.phase.AdvancePhase(rs, results)
	a.emitPhase(rs.Phase)

	// Step 11: finalization gate.
	a.gate.Evaluate(rs, results)

	return "", false, nil
}

// trackWriteIdentity records the tmdb_id/title of a successful write so
// the validation turn can confirm it.
func (a *AgentLoop) trackWriteIdentity(rs *RunState, calls []models.ToolCall, results []models.ToolResult) {
	for i, r := range results {
		if !IsWriteStyleTool(r.ToolName) || r.Outcome != models.OutcomeOK {
			continue
		}
		identity := &WriteIdentity{}
		if title, ok := r.Value["title"].(string); ok {
			identity.Title = title
		}
		if i < len(calls) {
			if args, err := parseArguments(calls[i].Arguments); err == nil {
				if id, ok := args["tmdb_id"].(float64); ok {
					identity.TMDbID = int(id)
				}
			}
		}
		rs.LastWriteIdentity = identity
	}
}

func (a *AgentLoop) buildSystemPrompt(rs *RunState) string {
	prompt := "You are a household media assistant with access to Plex, Radarr, Sonarr, and TMDb tools."
	if a.cfg.PreferencesContext != "" {
		prompt += "\n\nHousehold preferences:\n" + a.cfg.PreferencesContext
	}
	if rs.MustWrite && !rs.WriteCompleted {
		prompt += "\n\nThe user's request requires performing a write action (add/update/delete/monitor/set). Do not finalize until it has been completed."
	}
	if rs.Phase == PhaseValidation {
		prompt += "\n\nPerform a quick read-only confirmation of the change you just made before finalizing."
	}
	return prompt
}

func (a *AgentLoop) emitPhase(p Phase) {
	switch p {
	case PhaseReadOnly:
		a.emit("phase.read_only", map[string]any{})
	case PhaseWrite:
		a.emit("phase.write_enabled", map[string]any{})
	case PhaseValidation:
		a.emit("phase.validation", map[string]any{})
	}
}

func (a *AgentLoop) emitToolResult(r models.ToolResult) {
	data := map[string]any{"tool_name": r.ToolName, "call_id": r.CallID}
	if r.Outcome == models.OutcomeError {
		data["kind"] = r.Error.Kind
		a.emit("tool.error", data)
		return
	}
	a.emit("tool.finish", data)
}

// pruneContext implements the count-based "last K tool messages"
// pruning: older tool messages beyond the last K are
// replaced by a single system note recording the prune count.
func (a *AgentLoop) pruneContext(messages []models.Message) []models.Message {
	toolIdx := make([]int, 0)
	for i, m := range messages {
		if m.Role == models.RoleTool {
			toolIdx = append(toolIdx, i)
		}
	}
	if len(toolIdx) <= a.cfg.KeepLastToolMessages {
		return messages
	}

	pruneCount := len(toolIdx) - a.cfg.KeepLastToolMessages
	pruneSet := make(map[int]bool, pruneCount)
	for _, idx := range toolIdx[:pruneCount] {
		pruneSet[idx] = true
	}

	out := make([]models.Message, 0, len(messages)-pruneCount+1)
	noted := false
	for i, m := range messages {
		if pruneSet[i] {
			if !noted {
				out = append(out, models.Message{
					Role:      models.RoleSystem,
					Content:   fmt.Sprintf("(%d earlier tool results were pruned from context to stay within budget.)", pruneCount),
					CreatedAt: time.Now(),
				})
				noted = true
			}
			continue
		}
		out = append(out, m)
	}
	return out
}

// trackWindowBudget estimates the token cost of the post-prune context
// against the target model's context window (internal/context) and, if
// the count-based "last K tool messages" prune still leaves the
// conversation near the model's limit, emits a warning event so
// operators can see it coming before the provider itself rejects the
// call. This is additive token-budget awareness layered on top of the
// count-based prune, never a replacement for it.
func (a *AgentLoop) trackWindowBudget(model string, messages []models.Message) {
	window := contextpkg.NewWindowForModel(model)
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	window.Add(contextpkg.EstimateTokensForMessages(contents))

	info := window.Info()
	if !info.ShouldWarn() {
		return
	}
	a.emit("context.window", map[string]any{
		"status":           info.Status(),
		"used_tokens":      info.UsedTokens,
		"total_tokens":     info.TotalTokens,
		"remaining_tokens": info.RemainingTokens,
	})
}

func (a *AgentLoop) exhaustedFallback(rs *RunState) string {
	if rs.MustWrite && !rs.WriteCompleted {
		return "I wasn't able to finish that request within my attempt budget. I searched but couldn't confirm the write completed — want me to try again?"
	}
	return "I gathered some information but ran out of turns before finishing. Let me know if you'd like me to continue."
}

func renderToolPayload(p models.ToolMessagePayload) string {
	b, err := jsonMarshalCompact(p)
	if err != nil {
		return fmt.Sprintf("ref_id=%s", p.RefID)
	}
	return string(b)
}

// NewCallID generates an opaque, per-turn-unique call id, used by
// sub-agent runs that synthesize their own tool calls.
func NewCallID() string {
	return uuid.NewString()
}
