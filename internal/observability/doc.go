// Package observability carries the engine's three monitoring surfaces:
// Prometheus metrics, redacting structured logs, and OpenTelemetry
// tracing.
//
// # Metrics
//
// Metrics track the engine's own concerns, recorded at their real call
// sites:
//   - LLM call counts and latency by model (the agent loop)
//   - tool execution counts, latency, and retries by tool name (the executor)
//   - circuit breaker state and failure counts by tool name
//   - cross-run cache hits and misses
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolCall("tmdb_search", "success", elapsed.Seconds(), attempts)
//
// Useful queries:
//
//	histogram_quantile(0.95, rate(llm_call_duration_seconds_bucket[5m]))
//	rate(cache_results_total{outcome="hit"}[5m]) / rate(cache_results_total[5m])
//	circuit_state == 1
//
// Keep label cardinality low: label by tool name and outcome, never by
// argument values.
//
// # Logging
//
// Logger wraps slog with secret redaction implemented as a slog.Handler,
// so loggers handed to collaborators via Raw() redact too. The default
// patterns cover what this process touches: Anthropic/OpenAI keys,
// bearer tokens, Radarr/Sonarr X-Api-Key headers, Plex tokens, TMDb
// api_key query params, and generic key=value secrets. Attr keys like
// password, token, and api_key are masked regardless of value.
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.Info("executing tool", "tool_name", call.ToolName, "attempt", attempt)
//
// # Tracing
//
// Tracer emits two span kinds: one client span per LLM completion and
// one internal span per tool invocation (covering its retries and any
// hedged attempt). With no Endpoint configured the tracer is a no-op,
// so call sites stay unconditional.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:  "moviebot-agent",
//	    Endpoint:     os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate: 0.1,
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceToolExecution(ctx, "tmdb_search")
//	defer span.End()
//	tracer.RecordError(span, err)
//
// All three are optional collaborators: the engine treats a nil
// *Metrics or *Tracer as "off" and a nil *slog.Logger as slog.Default().
package observability
