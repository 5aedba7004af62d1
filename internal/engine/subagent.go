package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// SubAgentRunner is C11: a constrained one-iteration variant of C9,
// reusing C1/C2/C4 directly (not C5's batching, since a sub-agent
// makes at most one round of tool calls).
type SubAgentRunner struct {
	registry   *Registry
	cache      *ResultCache
	executor   *Executor
	summarizer *Summarizer
	llm        LLMClient
	logger     *slog.Logger
}

// NewSubAgentRunner wires C11 to the worker-role LLM client and the
// shared registry/cache/executor.
func NewSubAgentRunner(registry *Registry, cache *ResultCache, executor *Executor, summarizer *Summarizer, llm LLMClient, logger *slog.Logger) *SubAgentRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubAgentRunner{registry: registry, cache: cache, executor: executor, summarizer: summarizer, llm: llm, logger: logger}
}

// Run executes a single constrained turn: call tools once (if
// requested), feed results back, then force tool_choice=none to obtain
// final text. Never loops.
func (s *SubAgentRunner) Run(ctx context.Context, model string, system string, userText string, tuning ToolTuning) (string, error) {
	messages := []models.Message{{Role: models.RoleUser, Content: userText, CreatedAt: time.Now()}}
	dedup := NewDedupMap()

	resp, err := s.llm.Complete(ctx, Request{
		Model:      model,
		Messages:   messages,
		Tools:      s.registry.Schemas(),
		ToolChoice: ToolChoiceAuto,
		System:     system,
	})
	if err != nil {
		return "", &LoopError{Message: "sub-agent llm call failed", Cause: err}
	}

	if !resp.HasToolCalls() {
		return resp.Content, nil
	}

	messages = append(messages, models.Message{Role: models.RoleAssistant, ToolCalls: resp.ToolCalls, CreatedAt: time.Now()})

	for _, call := range resp.ToolCalls {
		result := s.executor.Execute(ctx, call, tuning, dedup)
		family := s.registry.ClassifyFamily(call.ToolName)
		var summary any
		if result.Outcome == models.OutcomeOK {
			summary = s.summarizer.Summarize(family, result.Value, DetailCompact)
		} else {
			summary = map[string]any{"error": result.Error}
		}
		payload := models.ToolMessagePayload{RefID: result.RefID, Summary: summary}
		messages = append(messages, models.Message{
			Role: models.RoleTool, ToolCallID: result.CallID, ToolName: result.ToolName,
			Content: renderToolPayload(payload), CreatedAt: time.Now(),
		})
	}

	final, err := s.llm.Complete(ctx, Request{
		Model: model, Messages: messages, ToolChoice: ToolChoiceNone, System: system,
	})
	if err != nil {
		return "", &LoopError{Message: "sub-agent finalize call failed", Cause: err}
	}
	return final.Content, nil
}

// RunRecommendation is a zero-tool-call special case of the sub-agent
// runner: it receives the household preferences context and produces a
// short recommendation list without tool access.
func (s *SubAgentRunner) RunRecommendation(ctx context.Context, model string, preferences string, prompt string) (string, error) {
	system := "You produce short, focused media recommendations based only on stated household preferences. You have no tool access for this task."
	if preferences != "" {
		system += "\n\nHousehold preferences:\n" + preferences
	}

	resp, err := s.llm.Complete(ctx, Request{
		Model:      model,
		Messages:   []models.Message{{Role: models.RoleUser, Content: prompt, CreatedAt: time.Now()}},
		ToolChoice: ToolChoiceNone,
		System:     system,
	})
	if err != nil {
		return "", &LoopError{Message: "recommendation sub-agent failed", Cause: err}
	}
	return resp.Content, nil
}

// RunEpisodeFallback retries a failed season-pack search on a
// per-episode basis via a focused sub-agent turn.
func (s *SubAgentRunner) RunEpisodeFallback(ctx context.Context, model string, seriesTitle string, season int, tuning ToolTuning) (string, error) {
	system := "A season pack search failed. Search for and queue individual episodes for the given series/season instead."
	prompt := seriesTitleAndSeason(seriesTitle, season)
	return s.Run(ctx, model, system, prompt, tuning)
}

// RunQualityFallback selects the closest available quality profile
// when the requested one is unavailable.
func (s *SubAgentRunner) RunQualityFallback(ctx context.Context, model string, requestedProfile string, tuning ToolTuning) (string, error) {
	system := "The requested quality profile is unavailable. Inspect the available profiles and select the closest match."
	prompt := "Requested quality profile: " + requestedProfile
	return s.Run(ctx, model, system, prompt, tuning)
}

func seriesTitleAndSeason(title string, season int) string {
	return "Series: " + title + ", season " + strconv.Itoa(season)
}
