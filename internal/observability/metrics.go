package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting engine
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - LLM call counts and latency, by model and outcome
//   - Tool execution counts and latency, by tool name and outcome
//   - Circuit breaker state and failure counts, by tool name
//   - Cache hit/miss counts for the cross-run result cache
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	start := time.Now()
//	metrics.RecordLLMCall("claude-opus-4", "success", time.Since(start).Seconds())
type Metrics struct {
	// LLMCallsTotal counts LLM completions by model and outcome.
	// Labels: model, status (success|error)
	LLMCallsTotal *prometheus.CounterVec

	// LLMCallDuration measures LLM completion latency in seconds.
	// Labels: model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMCallDuration *prometheus.HistogramVec

	// ToolCallsTotal counts C4 tool executions by tool name and outcome.
	// Labels: tool_name, status (success|error)
	ToolCallsTotal *prometheus.CounterVec

	// ToolCallDuration measures C4 tool execution latency in seconds,
	// including retries and hedged attempts.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolCallDuration *prometheus.HistogramVec

	// ToolRetriesTotal counts retry attempts beyond the first, by tool
	// name. A tool that never fails never increments this.
	// Labels: tool_name
	ToolRetriesTotal *prometheus.CounterVec

	// CircuitState is a gauge of C3's per-tool breaker state: 0 = closed,
	// 1 = open. Set whenever RecordSuccess/RecordFailure/IsOpen observes
	// a transition.
	// Labels: tool_name
	CircuitState *prometheus.GaugeVec

	// CircuitFailuresTotal counts failures recorded against the breaker,
	// regardless of whether they tripped it open.
	// Labels: tool_name
	CircuitFailuresTotal *prometheus.CounterVec

	// CacheResultsTotal counts C2 cross-run cache lookups.
	// Labels: outcome (hit|miss)
	CacheResultsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default
// registry and will be available at the /metrics endpoint when using
// prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Total number of LLM completions by model and status",
			},
			[]string{"model", "status"},
		),

		LLMCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_call_duration_seconds",
				Help:    "Duration of LLM completions in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		ToolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool executions in seconds, including retries",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ToolRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_retries_total",
				Help: "Total number of tool execution attempts beyond the first",
			},
			[]string{"tool_name"},
		),

		CircuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_state",
				Help: "Circuit breaker state by tool name (0 = closed, 1 = open)",
			},
			[]string{"tool_name"},
		),

		CircuitFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_failures_total",
				Help: "Total number of failures recorded against the circuit breaker by tool name",
			},
			[]string{"tool_name"},
		),

		CacheResultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_results_total",
				Help: "Total number of cross-run cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordLLMCall records metrics for one LLM completion.
//
// Example:
//
//	start := time.Now()
//	// ... call the LLM ...
//	metrics.RecordLLMCall("claude-opus-4", "success", time.Since(start).Seconds())
func (m *Metrics) RecordLLMCall(model, status string, durationSeconds float64) {
	m.LLMCallsTotal.WithLabelValues(model, status).Inc()
	m.LLMCallDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordToolCall records metrics for one C4 tool execution.
//
// Example:
//
//	start := time.Now()
//	// ... execute the tool ...
//	metrics.RecordToolCall("tmdb_search_movie", "success", time.Since(start).Seconds(), 1)
func (m *Metrics) RecordToolCall(toolName, status string, durationSeconds float64, attempts int) {
	m.ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	m.ToolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
	if attempts > 1 {
		m.ToolRetriesTotal.WithLabelValues(toolName).Add(float64(attempts - 1))
	}
}

// SetCircuitState records a C3 breaker transition. open should be true
// the moment a tool's breaker opens and false the moment it resets.
//
// Example:
//
//	metrics.SetCircuitState("radarr_add_movie", true)
func (m *Metrics) SetCircuitState(toolName string, open bool) {
	if open {
		m.CircuitState.WithLabelValues(toolName).Set(1)
		return
	}
	m.CircuitState.WithLabelValues(toolName).Set(0)
}

// RecordCircuitFailure increments the failure counter for a tool's
// breaker, independent of whether the failure tripped it open.
func (m *Metrics) RecordCircuitFailure(toolName string) {
	m.CircuitFailuresTotal.WithLabelValues(toolName).Inc()
}

// RecordCacheHit records a C2 cross-run cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheResultsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a C2 cross-run cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheResultsTotal.WithLabelValues("miss").Inc()
}
