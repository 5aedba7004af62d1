package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadRaw_RequiresPath(t *testing.T) {
	if _, err := LoadRaw("  "); err == nil {
		t.Fatal("expected an error for a blank path")
	}
}

func TestLoadRaw_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "llm:\n  agentMaxIters: 5\n")
	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	llm, ok := raw["llm"].(map[string]any)
	if !ok || llm["agentMaxIters"] != 5 {
		t.Fatalf("unexpected parsed raw: %v", raw)
	}
}

func TestLoadRaw_ParsesJSON5WithComments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.json5", "{\n  // a comment\n  llm: { agentMaxIters: 7 },\n}\n")
	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	llm, ok := raw["llm"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected parsed raw: %v", raw)
	}
	if n, ok := llm["agentMaxIters"].(float64); !ok || n != 7 {
		t.Fatalf("expected agentMaxIters=7, got %v", llm["agentMaxIters"])
	}
}

func TestLoadRaw_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret-value")
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "providers:\n  anthropic:\n    apiKey: \"${TEST_API_KEY}\"\n")
	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	providers := raw["providers"].(map[string]any)
	anthropic := providers["anthropic"].(map[string]any)
	if anthropic["apiKey"] != "secret-value" {
		t.Fatalf("expected env var expanded, got %v", anthropic["apiKey"])
	}
}

func TestLoadRaw_ResolvesIncludesAndMerges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "llm:\n  agentMaxIters: 3\ntools:\n  timeoutMs: 1000\n")
	path := writeFile(t, dir, "main.yaml", "$include: base.yaml\ntools:\n  retryMax: 2\n")

	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	llm := raw["llm"].(map[string]any)
	if llm["agentMaxIters"] != 3 {
		t.Fatalf("expected included llm.agentMaxIters preserved, got %v", llm)
	}
	tools := raw["tools"].(map[string]any)
	if tools["timeoutMs"] != 1000 || tools["retryMax"] != 2 {
		t.Fatalf("expected the main file's keys merged on top of the include, got %v", tools)
	}
	if _, ok := raw["$include"]; ok {
		t.Fatal("expected the $include directive stripped from the merged result")
	}
}

func TestLoadRaw_MainFileOverridesIncludedScalar(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "tools:\n  timeoutMs: 1000\n")
	path := writeFile(t, dir, "main.yaml", "$include: base.yaml\ntools:\n  timeoutMs: 5000\n")

	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	tools := raw["tools"].(map[string]any)
	if tools["timeoutMs"] != 5000 {
		t.Fatalf("expected the main file's scalar to win over the include, got %v", tools["timeoutMs"])
	}
}

func TestLoadRaw_DetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "$include: a.yaml\n")

	if _, err := LoadRaw(path); err == nil {
		t.Fatal("expected an include cycle to be detected")
	}
}

func TestLoadRaw_MultiDocumentYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "a: 1\n---\nb: 2\n")
	if _, err := LoadRaw(path); err == nil {
		t.Fatal("expected a multi-document YAML file to be rejected")
	}
}

func TestLoad_AppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "providers:\n  anthropic:\n    apiKey: key\npreferences:\n  path: /data/prefs.json\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.AgentMaxIters != 6 {
		t.Fatalf("expected default AgentMaxIters=6, got %d", cfg.LLM.AgentMaxIters)
	}
	if cfg.Tools.TimeoutMs != 8000 {
		t.Fatalf("expected default TimeoutMs=8000, got %d", cfg.Tools.TimeoutMs)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("expected default logging level/format, got %+v", cfg.Logging)
	}
}

func TestLoad_RequiresAProviderAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "preferences:\n  path: /data/prefs.json\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when no provider api key is configured")
	}
}

func TestLoad_RequiresPreferencesPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "providers:\n  anthropic:\n    apiKey: key\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when preferences.path is unset")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "providers:\n  anthropic:\n    apiKey: key\npreferences:\n  path: /data/prefs.json\nbogusTopLevelKey: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unrecognized top-level config key")
	}
}
