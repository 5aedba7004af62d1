package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/agent/providers"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/config"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/models"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/observability"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/progress"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/plex"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/preferences"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/radarr"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/sonarr"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/tmdb"
)

// app bundles everything a run needs once config has been loaded:
// the process-wide engine runtime, the role resolver, and the
// preferences store (read directly by the run loop for the
// system-prompt preferences blurb, per LoopConfig.PreferencesContext).
type app struct {
	cfg        *config.Config
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	tracerStop func()

	runtime  *engine.Runtime
	resolver *providers.Resolver
	prefs    *preferences.Store
}

// buildApp wires every package the household assistant depends on,
// from a loaded config tree to a ready-to-run engine.Runtime. This is
// the composition root; nothing below it reaches back up to cobra.
func buildApp(cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	var tracer *observability.Tracer
	tracerStop := func() {}
	if cfg.Observability.Tracing.Enabled {
		t, stop := observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			ServiceVersion: cfg.Observability.Tracing.ServiceVersion,
			Environment:    cfg.Observability.Tracing.Environment,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SamplingRate,
			Attributes:     cfg.Observability.Tracing.Attributes,
			EnableInsecure: cfg.Observability.Tracing.Insecure,
		})
		tracer = t
		tracerStop = func() { _ = stop(context.Background()) }
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	clients, err := cfg.Providers.BuildProviderClients()
	if err != nil {
		return nil, fmt.Errorf("build provider clients: %w", err)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no LLM provider configured: set providers.anthropic.apiKey or providers.openai.apiKey")
	}
	resolver := providers.NewResolver(clients, cfg.Providers.RoleBindings(), models.DefaultCatalog)

	slogLogger := logger.Raw()
	runtime := engine.NewRuntime(registry, engine.RuntimeConfig{
		Circuit:    cfg.Tools.ToEngineCircuitConfig(),
		Cache:      cfg.Cache.ToEngineCacheConfig(),
		Batch:      cfg.Tools.ToEngineBatchConfig(),
		Summarizer: cfg.Tools.ToEngineSummarizerConfig(),
		Loop: engine.LoopConfig{
			MaxIterations:        cfg.LLM.AgentMaxIters,
			KeepLastToolMessages: cfg.Tools.MaxToolMessagesInContext,
		},
		Metrics: metrics,
		Tracer:  tracer,
	}, slogLogger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		tracerStop: tracerStop,
		runtime:    runtime,
		resolver:   resolver,
		prefs:      preferences.NewStore(cfg.Preferences.Path),
	}, nil
}

// buildRegistry registers every household-assistant tool against the
// configured media services, plus the late-bound preferences_query
// tool. A media service left with an empty APIKey (Plex: Token) is
// skipped rather than failing startup, so moviebot-agent still runs
// against a partially-configured household (e.g. no Sonarr yet). A
// service whose key is set but whose BaseURL is empty or invalid fails
// startup with that service's client error; TMDb alone falls back to
// its public base URL.
func buildRegistry(cfg *config.Config) (*engine.Registry, error) {
	registry := engine.NewRegistry()
	register := func(t engine.Tool) error {
		if t == nil {
			return nil
		}
		return registry.Register(t)
	}

	if cfg.Media.TMDb.APIKey != "" {
		client, err := tmdb.NewClient(tmdb.Config{BaseURL: cfg.Media.TMDb.BaseURL, APIKey: cfg.Media.TMDb.APIKey})
		if err != nil {
			return nil, fmt.Errorf("tmdb: %w", err)
		}
		tools := []engine.Tool{
			tmdb.NewSearchMovieTool(client),
			tmdb.NewSearchTVTool(client),
			tmdb.NewSearchMultiTool(client),
			tmdb.NewMovieDetailsTool(client),
			tmdb.NewTVDetailsTool(client),
			tmdb.NewRecommendationsTool(client),
		}
		for _, t := range tools {
			if err := register(t); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Media.Radarr.APIKey != "" {
		client, err := radarr.NewClient(radarr.Config{BaseURL: cfg.Media.Radarr.BaseURL, APIKey: cfg.Media.Radarr.APIKey})
		if err != nil {
			return nil, fmt.Errorf("radarr: %w", err)
		}
		tools := []engine.Tool{
			radarr.NewLookupTool(client),
			radarr.NewAddMovieTool(client),
			radarr.NewGetMoviesTool(client),
			radarr.NewSearchMovieTool(client),
			radarr.NewQualityProfilesTool(client),
			radarr.NewRootFoldersTool(client),
		}
		for _, t := range tools {
			if err := register(t); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Media.Sonarr.APIKey != "" {
		client, err := sonarr.NewClient(sonarr.Config{BaseURL: cfg.Media.Sonarr.BaseURL, APIKey: cfg.Media.Sonarr.APIKey})
		if err != nil {
			return nil, fmt.Errorf("sonarr: %w", err)
		}
		tools := []engine.Tool{
			sonarr.NewLookupTool(client),
			sonarr.NewAddSeriesTool(client),
			sonarr.NewGetSeriesTool(client),
			sonarr.NewGetEpisodesTool(client),
			sonarr.NewMonitorEpisodesTool(client),
			sonarr.NewSearchSeriesTool(client),
			sonarr.NewSearchEpisodeTool(client),
			sonarr.NewGetQueueTool(client),
			sonarr.NewQualityProfilesTool(client),
			sonarr.NewRootFoldersTool(client),
		}
		for _, t := range tools {
			if err := register(t); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Media.Plex.Token != "" {
		client, err := plex.NewClient(plex.Config{BaseURL: cfg.Media.Plex.BaseURL, Token: cfg.Media.Plex.Token})
		if err != nil {
			return nil, fmt.Errorf("plex: %w", err)
		}
		tools := []engine.Tool{
			plex.NewLibrarySectionsTool(client),
			plex.NewRecentlyAddedTool(client),
			plex.NewOnDeckTool(client),
			plex.NewSearchTool(client),
			plex.NewCollectionsTool(client),
			plex.NewPlaylistsTool(client),
			plex.NewItemDetailsTool(client),
			plex.NewSimilarItemsTool(client),
			plex.NewSetRatingTool(client),
		}
		for _, t := range tools {
			if err := register(t); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Preferences.Path != "" {
		store := preferences.NewStore(cfg.Preferences.Path)
		prefTools := []engine.Tool{
			preferences.NewReadTool(store),
			preferences.NewUpdateTool(store),
			preferences.NewRateTool(store),
			preferences.NewSearchTool(store),
		}
		for _, t := range prefTools {
			if err := register(t); err != nil {
				return nil, err
			}
		}
		registry.SetLateBoundFactory("preferences_query", preferences.NewQueryToolFactory(store, "gpt-4o-mini"))
	}

	if err := registry.Freeze(); err != nil {
		return nil, err
	}
	return registry, nil
}

// consoleSink prints humanized progress messages to stderr, leaving
// stdout free for the assistant's final answer.
type consoleSink struct{}

func (consoleSink) Emit(eventType string, message string, data map[string]any) {
	_ = eventType
	_ = data
	fmt.Fprintln(os.Stderr, message)
}

func (consoleSink) TypingPulse() {}

func newBroadcaster(cfg *config.Config, logger *slog.Logger) *progress.Broadcaster {
	b := progress.NewBroadcaster(progress.Config{
		ProgressUpdateIntervalMs: cfg.UX.ProgressUpdateIntervalMs,
		HeartbeatIntervalMs:      cfg.UX.HeartbeatIntervalMs,
		TypingPulseMs:            cfg.UX.TypingPulseMs,
	}, logger)
	b.AddSink(consoleSink{})
	return b
}
