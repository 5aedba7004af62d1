package config

import (
	"testing"
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
)

func TestApplyLLMDefaults_MaxItersFallsBackToAgentMaxIters(t *testing.T) {
	cfg := &LLMConfig{AgentMaxIters: 9}
	applyLLMDefaults(cfg)
	if cfg.WorkerMaxIters != 2 {
		t.Fatalf("expected default WorkerMaxIters=2, got %d", cfg.WorkerMaxIters)
	}
	if cfg.MaxIters != 9 {
		t.Fatalf("expected MaxIters to fall back to AgentMaxIters=9, got %d", cfg.MaxIters)
	}
}

func TestApplyTracingDefaults(t *testing.T) {
	cfg := &TracingConfig{}
	applyTracingDefaults(cfg)
	if cfg.SamplingRate != 1.0 {
		t.Fatalf("expected default sampling rate 1.0, got %v", cfg.SamplingRate)
	}
	if cfg.ServiceName != "moviebot-agent" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
}

func TestToolsConfig_ToToolTuning_OverridesOnlySetFields(t *testing.T) {
	tools := ToolsConfig{TimeoutMs: 8000, RetryMax: 2, BackoffBaseMs: 200}
	tuning := tools.ToToolTuning(ToolTuningConfig{TimeoutMs: 15000})
	if tuning.TimeoutMs != 15000 {
		t.Fatalf("expected the override timeout to win, got %d", tuning.TimeoutMs)
	}
	if tuning.RetryMax != 2 {
		t.Fatalf("expected the unset override field to fall back to the global default, got %d", tuning.RetryMax)
	}
}

func TestToolsConfig_ToEngineBatchConfig_ResolvesPerToolAndHedging(t *testing.T) {
	tools := ToolsConfig{
		TimeoutMs:     8000,
		RetryMax:      2,
		BackoffBaseMs: 200,
		Parallelism:   4,
		PerTool: map[string]ToolTuningConfig{
			"tmdb_search": {TimeoutMs: 3000},
		},
		HedgeDelayMsByFamily: map[string]int{"tmdb": 500},
	}
	batchCfg := tools.ToEngineBatchConfig()
	if batchCfg.OuterParallelism != 4 {
		t.Fatalf("expected parallelism carried through, got %d", batchCfg.OuterParallelism)
	}
	toolTuning, ok := batchCfg.TuningByTool["tmdb_search"]
	if !ok || toolTuning.TimeoutMs != 3000 {
		t.Fatalf("expected a per-tool override for tmdb_search, got %+v", batchCfg.TuningByTool)
	}
	familyTuning, ok := batchCfg.TuningByFamily[engine.Family("tmdb")]
	if !ok || familyTuning.HedgeDelayMs != 500 {
		t.Fatalf("expected hedge delay applied to the tmdb family even with no per-family override, got %+v", batchCfg.TuningByFamily)
	}
}

func TestToolsConfig_ToEngineCircuitConfig_AppliesDurationDefault(t *testing.T) {
	tools := ToolsConfig{Circuit: CircuitConfig{OpenAfterFailures: 5}}
	circuitCfg := tools.ToEngineCircuitConfig()
	if circuitCfg.OpenAfterFailures != 5 {
		t.Fatalf("expected OpenAfterFailures=5, got %d", circuitCfg.OpenAfterFailures)
	}
	if circuitCfg.OpenForMs != 3*time.Second {
		t.Fatalf("expected the default 3s open duration when OpenForMs is unset, got %v", circuitCfg.OpenForMs)
	}
}

func TestToolsConfig_ToEngineSummarizerConfig_AppliesCapToAllFamilies(t *testing.T) {
	tools := ToolsConfig{ListMaxItems: 7}
	summarizerCfg := tools.ToEngineSummarizerConfig()
	for _, family := range []engine.Family{engine.FamilyTMDb, engine.FamilyPlex, engine.FamilyRadarr, engine.FamilySonarr, engine.FamilyOther} {
		if summarizerCfg.MaxItemsByFamily[family] != 7 {
			t.Fatalf("expected ListMaxItems applied to family %q, got %d", family, summarizerCfg.MaxItemsByFamily[family])
		}
	}
}

func TestCacheConfig_ToEngineCacheConfig(t *testing.T) {
	cache := CacheConfig{TTLShortSec: 30, TTLMediumSec: 600}
	cacheCfg := cache.ToEngineCacheConfig()
	if cacheCfg.TTLShort != 30*time.Second || cacheCfg.TTLMedium != 600*time.Second {
		t.Fatalf("unexpected cache config: %+v", cacheCfg)
	}
}

func TestProvidersConfig_BuildProviderClients_OmitsUnconfiguredVendors(t *testing.T) {
	providers := ProvidersConfig{Anthropic: ProviderCredential{APIKey: "key"}}
	clients, err := providers.BuildProviderClients()
	if err != nil {
		t.Fatalf("BuildProviderClients: %v", err)
	}
	if _, ok := clients["anthropic"]; !ok {
		t.Fatal("expected an anthropic client to be built")
	}
	if _, ok := clients["openai"]; ok {
		t.Fatal("expected no openai client when its api key is unset")
	}
}

func TestProvidersConfig_RoleBindings_DefaultsAndOverrides(t *testing.T) {
	providers := ProvidersConfig{
		Roles: map[string]RoleBindingConfig{
			"chat": {Provider: "openai", Model: "gpt-4o"},
		},
	}
	bindings := providers.RoleBindings()
	if bindings[engine.RoleChat].Provider != "openai" || bindings[engine.RoleChat].Model != "gpt-4o" {
		t.Fatalf("expected the configured override to win for RoleChat, got %+v", bindings[engine.RoleChat])
	}
	if _, ok := bindings[engine.RoleWorker]; !ok {
		t.Fatal("expected an unconfigured role to fall back to the built-in default")
	}
}
