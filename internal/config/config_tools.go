package config

import (
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
)

// ToolsConfig is the tools.* config tree: global defaults plus
// per-tool/per-family overrides, family concurrency and hedging, and
// the circuit breaker.
type ToolsConfig struct {
	TimeoutMs                int `yaml:"timeoutMs"`
	RetryMax                 int `yaml:"retryMax"`
	BackoffBaseMs            int `yaml:"backoffBaseMs"`
	Parallelism              int `yaml:"parallelism"`
	ListMaxItems             int `yaml:"listMaxItems"`
	MaxToolMessagesInContext int `yaml:"maxToolMessagesInContext"`

	PerTool              map[string]ToolTuningConfig `yaml:"perTool"`
	PerFamily            map[string]ToolTuningConfig `yaml:"perFamily"`
	FamilyParallelism    map[string]int              `yaml:"familyParallelism"`
	HedgeDelayMsByFamily map[string]int              `yaml:"hedgeDelayMsByFamily"`
	Circuit              CircuitConfig               `yaml:"circuit"`
}

// ToolTuningConfig is one per-tool or per-family override of the
// global tools.* defaults.
type ToolTuningConfig struct {
	TimeoutMs     int `yaml:"timeoutMs"`
	RetryMax      int `yaml:"retryMax"`
	BackoffBaseMs int `yaml:"backoffBaseMs"`
	HedgeDelayMs  int `yaml:"hedgeDelayMs"`
}

// CircuitConfig is tools.circuit.*.
type CircuitConfig struct {
	OpenAfterFailures int `yaml:"openAfterFailures"`
	OpenForMs         int `yaml:"openForMs"`
}

// CacheConfig is the cache.* tree.
type CacheConfig struct {
	TTLShortSec  int `yaml:"ttlShortSec"`
	TTLMediumSec int `yaml:"ttlMediumSec"`
}

// UXConfig is the ux.* tree driving internal/progress's throttling.
type UXConfig struct {
	ProgressUpdateIntervalMs int `yaml:"progressUpdateIntervalMs"`
	HeartbeatIntervalMs      int `yaml:"heartbeatIntervalMs"`
	TypingPulseMs            int `yaml:"typingPulseMs"`
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 8000
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 2
	}
	if cfg.BackoffBaseMs <= 0 {
		cfg.BackoffBaseMs = 200
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.ListMaxItems <= 0 {
		cfg.ListMaxItems = 5
	}
	if cfg.MaxToolMessagesInContext <= 0 {
		cfg.MaxToolMessagesInContext = 12
	}
	if cfg.Circuit.OpenAfterFailures <= 0 {
		cfg.Circuit.OpenAfterFailures = 3
	}
	if cfg.Circuit.OpenForMs <= 0 {
		cfg.Circuit.OpenForMs = 3000
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.TTLShortSec <= 0 {
		cfg.TTLShortSec = 60
	}
	if cfg.TTLMediumSec <= 0 {
		cfg.TTLMediumSec = 300
	}
}

func applyUXDefaults(cfg *UXConfig) {
	if cfg.ProgressUpdateIntervalMs <= 0 {
		cfg.ProgressUpdateIntervalMs = 900
	}
	if cfg.HeartbeatIntervalMs <= 0 {
		cfg.HeartbeatIntervalMs = 30000
	}
	if cfg.TypingPulseMs <= 0 {
		cfg.TypingPulseMs = 6000
	}
}

// ToToolTuning converts a ToolTuningConfig override (or the zero value)
// into engine.ToolTuning, falling back to the global tools.* defaults
// for any unset field.
func (c ToolsConfig) ToToolTuning(override ToolTuningConfig) engine.ToolTuning {
	t := engine.ToolTuning{
		TimeoutMs:     c.TimeoutMs,
		RetryMax:      c.RetryMax,
		BackoffBaseMs: c.BackoffBaseMs,
	}
	if override.TimeoutMs > 0 {
		t.TimeoutMs = override.TimeoutMs
	}
	if override.RetryMax > 0 {
		t.RetryMax = override.RetryMax
	}
	if override.BackoffBaseMs > 0 {
		t.BackoffBaseMs = override.BackoffBaseMs
	}
	if override.HedgeDelayMs > 0 {
		t.HedgeDelayMs = override.HedgeDelayMs
	}
	return t
}

// ToEngineBatchConfig projects ToolsConfig into engine.BatchSchedulerConfig,
// resolving per-tool/per-family overrides and family parallelism/hedging.
func (c ToolsConfig) ToEngineBatchConfig() engine.BatchSchedulerConfig {
	tuningByTool := make(map[string]engine.ToolTuning, len(c.PerTool))
	for name, override := range c.PerTool {
		tuningByTool[name] = c.ToToolTuning(override)
	}

	tuningByFamily := make(map[engine.Family]engine.ToolTuning, len(c.PerFamily))
	for family, override := range c.PerFamily {
		tuning := c.ToToolTuning(override)
		if hedge, ok := c.HedgeDelayMsByFamily[family]; ok && hedge > 0 {
			tuning.HedgeDelayMs = hedge
		}
		tuningByFamily[engine.Family(family)] = tuning
	}
	for family, hedge := range c.HedgeDelayMsByFamily {
		if _, ok := tuningByFamily[engine.Family(family)]; ok {
			continue
		}
		tuning := c.ToToolTuning(ToolTuningConfig{})
		tuning.HedgeDelayMs = hedge
		tuningByFamily[engine.Family(family)] = tuning
	}

	familyParallelism := make(map[engine.Family]int, len(c.FamilyParallelism))
	for family, n := range c.FamilyParallelism {
		familyParallelism[engine.Family(family)] = n
	}

	return engine.BatchSchedulerConfig{
		OuterParallelism:  c.Parallelism,
		FamilyParallelism: familyParallelism,
		TuningByTool:      tuningByTool,
		TuningByFamily:    tuningByFamily,
		DefaultTuning:     c.ToToolTuning(ToolTuningConfig{}),
	}
}

// ToEngineCircuitConfig projects tools.circuit.* into engine.CircuitBreakerConfig.
func (c ToolsConfig) ToEngineCircuitConfig() engine.CircuitBreakerConfig {
	return engine.CircuitBreakerConfig{
		OpenAfterFailures: c.Circuit.OpenAfterFailures,
		OpenForMs:         durationMs(c.Circuit.OpenForMs, 3*time.Second),
	}
}

// ToEngineSummarizerConfig projects tools.listMaxItems into engine.SummarizerConfig,
// applying the same list cap to every family (per-family overrides can be
// layered in later if a specific family ever needs a different cap).
func (c ToolsConfig) ToEngineSummarizerConfig() engine.SummarizerConfig {
	maxItems := map[engine.Family]int{
		engine.FamilyTMDb:   c.ListMaxItems,
		engine.FamilyPlex:   c.ListMaxItems,
		engine.FamilyRadarr: c.ListMaxItems,
		engine.FamilySonarr: c.ListMaxItems,
		engine.FamilyOther:  c.ListMaxItems,
	}
	return engine.SummarizerConfig{MaxItemsByFamily: maxItems}
}

// ToEngineCacheConfig projects cache.* into engine.ResultCacheConfig.
func (c CacheConfig) ToEngineCacheConfig() engine.ResultCacheConfig {
	return engine.ResultCacheConfig{
		TTLShort:  time.Duration(c.TTLShortSec) * time.Second,
		TTLMedium: time.Duration(c.TTLMediumSec) * time.Second,
	}
}
