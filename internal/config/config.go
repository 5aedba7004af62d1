package config

import (
	"fmt"
	"time"
)

// Config is the root configuration tree for the agent: LLM iteration
// budgets, tool tuning, cache lifetimes, progress UX throttling,
// observability, provider credentials, and the connected media
// services. Decoded from YAML/JSON5 by Load via internal/config/loader.go.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Cache         CacheConfig         `yaml:"cache"`
	UX            UXConfig            `yaml:"ux"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Media         MediaConfig         `yaml:"media"`
	Preferences   PreferencesConfig   `yaml:"preferences"`
}

// LLMConfig holds per-role iteration budgets.
type LLMConfig struct {
	// AgentMaxIters bounds the main household-assistant loop (C9).
	AgentMaxIters int `yaml:"agentMaxIters"`

	// WorkerMaxIters bounds sub-agent runs (C11); typically 1-2 since a
	// sub-agent makes at most one round of tool calls.
	WorkerMaxIters int `yaml:"workerMaxIters"`

	// MaxIters is the fallback iteration cap when a more specific one
	// above is unset.
	MaxIters int `yaml:"maxIters"`
}

// LoggingConfig configures slog output as a top-level logging tree.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig configures optional Prometheus metrics and
// OpenTelemetry tracing around C4/C9.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig toggles the Prometheus metrics registry.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"serviceName"`
	ServiceVersion string            `yaml:"serviceVersion"`
	Environment    string            `yaml:"environment"`
	SamplingRate   float64           `yaml:"samplingRate"`
	Insecure       bool              `yaml:"insecure"`
	Attributes     map[string]string `yaml:"attributes"`
}

// PreferencesConfig points at the local household-preferences store:
// a JSON file at a known path, read and written directly.
type PreferencesConfig struct {
	Path string `yaml:"path"`
}

// Load reads, resolves $include directives on, and decodes the
// configuration at path, then applies defaults and validates it.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyCacheDefaults(&cfg.Cache)
	applyUXDefaults(&cfg.UX)
	applyLoggingDefaults(&cfg.Logging)
	applyTracingDefaults(&cfg.Observability.Tracing)
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.AgentMaxIters <= 0 {
		cfg.AgentMaxIters = 6
	}
	if cfg.WorkerMaxIters <= 0 {
		cfg.WorkerMaxIters = 2
	}
	if cfg.MaxIters <= 0 {
		cfg.MaxIters = cfg.AgentMaxIters
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyTracingDefaults(cfg *TracingConfig) {
	if cfg.SamplingRate <= 0 {
		cfg.SamplingRate = 1.0
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "moviebot-agent"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Providers.Anthropic.APIKey == "" && cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("config: at least one of providers.anthropic.apiKey or providers.openai.apiKey must be set")
	}
	if cfg.Preferences.Path == "" {
		return fmt.Errorf("config: preferences.path is required")
	}
	return nil
}

func durationMs(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
