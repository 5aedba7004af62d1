package engine

import (
	"log/slog"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/observability"
)

// RuntimeConfig is the fully-resolved set of tuning values the loop
// needs, already merged from tools.*/cache.*/llm.* config trees by the
// caller (internal/config).
type RuntimeConfig struct {
	Circuit    CircuitBreakerConfig
	Cache      ResultCacheConfig
	Batch      BatchSchedulerConfig
	Summarizer SummarizerConfig
	Loop       LoopConfig

	// Metrics and Tracer are optional; either may be left nil to
	// disable the corresponding instrumentation.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Runtime is the small injectable struct modeling the process-wide
// singleton state: circuit breaker and result cache
// are created once at process start and shut down on exit, rather than
// living as ambient globals.
type Runtime struct {
	Registry   *Registry
	Cache      *ResultCache
	Breaker    *CircuitBreaker
	Executor   *Executor
	Scheduler  *BatchScheduler
	Summarizer *Summarizer
	Phase      *PhaseController
	Gate       *FinalizationGate
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
}

// NewRuntime builds the shared, process-wide components (C1-C3, C6-C8)
// that every AgentLoop/SubAgentRunner instance for every user run
// shares. Per-run state (RunState) is never stored here.
func NewRuntime(registry *Registry, cfg RuntimeConfig, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}

	cache := NewResultCache(cfg.Cache)
	breaker := NewCircuitBreaker(cfg.Circuit, cfg.Metrics)
	executor := NewExecutor(registry, cache, breaker, logger, cfg.Metrics, cfg.Tracer)
	scheduler := NewBatchScheduler(executor, registry, cfg.Batch, logger)
	summarizer := NewSummarizer(cfg.Summarizer)

	return &Runtime{
		Registry:   registry,
		Cache:      cache,
		Breaker:    breaker,
		Executor:   executor,
		Scheduler:  scheduler,
		Summarizer: summarizer,
		Phase:      NewPhaseController(),
		Gate:       NewFinalizationGate(),
		Logger:     logger,
		Metrics:    cfg.Metrics,
		Tracer:     cfg.Tracer,
	}
}

// NewLoopFor builds a per-run AgentLoop bound to llm and progress,
// sharing this Runtime's process-wide components.
func (r *Runtime) NewLoopFor(llm LLMClient, progress ProgressEmitter, loopCfg LoopConfig) *AgentLoop {
	return NewAgentLoop(r.Registry, r.Cache, r.Breaker, r.Scheduler, r.Summarizer, r.Phase, r.Gate, llm, progress, r.Logger, loopCfg, r.Metrics, r.Tracer)
}

// NewSubAgentRunnerFor builds a per-run SubAgentRunner bound to llm,
// sharing this Runtime's process-wide components.
func (r *Runtime) NewSubAgentRunnerFor(llm LLMClient) *SubAgentRunner {
	return NewSubAgentRunner(r.Registry, r.Cache, r.Executor, r.Summarizer, llm, r.Logger)
}
