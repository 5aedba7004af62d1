package config

import (
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/agent/providers"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
)

// ProvidersConfig holds credentials for the concrete LLM providers and
// the role -> provider/model bindings consumed by providers.Resolver
// (engine.RoleResolver).
type ProvidersConfig struct {
	Anthropic ProviderCredential           `yaml:"anthropic"`
	OpenAI    ProviderCredential           `yaml:"openai"`
	Roles     map[string]RoleBindingConfig `yaml:"roles"`
}

// ProviderCredential is one vendor's connection settings.
type ProviderCredential struct {
	APIKey       string `yaml:"apiKey"`
	BaseURL      string `yaml:"baseUrl"`
	DefaultModel string `yaml:"defaultModel"`
	MaxRetries   int    `yaml:"maxRetries"`
	RetryDelayMs int    `yaml:"retryDelayMs"`
}

// RoleBindingConfig binds one engine.Role to a primary provider/model
// and an ordered fallback list ("provider/model" strings).
type RoleBindingConfig struct {
	Provider  string   `yaml:"provider"`
	Model     string   `yaml:"model"`
	Fallbacks []string `yaml:"fallbacks"`
}

// MediaConfig holds connection settings for the household media
// services the tool adapters talk to.
type MediaConfig struct {
	TMDb   ServiceConfig `yaml:"tmdb"`
	Plex   ServiceConfig `yaml:"plex"`
	Radarr ServiceConfig `yaml:"radarr"`
	Sonarr ServiceConfig `yaml:"sonarr"`
}

// ServiceConfig is one HTTP media service's connection settings.
// Token is Plex-specific (X-Plex-Token); APIKey covers the rest.
type ServiceConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Token   string `yaml:"token"`
}

var defaultRoleBindings = map[engine.Role]RoleBindingConfig{
	engine.RoleChat:       {Provider: "anthropic", Model: "claude-3-5-sonnet-latest", Fallbacks: []string{"openai/gpt-4o"}},
	engine.RoleSmart:      {Provider: "anthropic", Model: "claude-opus-4", Fallbacks: []string{"anthropic/claude-3-5-sonnet-latest"}},
	engine.RoleWorker:     {Provider: "openai", Model: "gpt-4o-mini", Fallbacks: []string{"anthropic/claude-3-5-haiku-latest"}},
	engine.RoleQuick:      {Provider: "openai", Model: "gpt-4o-mini"},
	engine.RoleSummarizer: {Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
}

// BuildProviderClients constructs the concrete engine.LLMClient per
// configured vendor, keyed by provider name ("anthropic", "openai").
// A vendor with no APIKey configured is omitted.
func (c ProvidersConfig) BuildProviderClients() (map[string]engine.LLMClient, error) {
	clients := make(map[string]engine.LLMClient, 2)

	if c.Anthropic.APIKey != "" {
		client, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       c.Anthropic.APIKey,
			BaseURL:      c.Anthropic.BaseURL,
			DefaultModel: c.Anthropic.DefaultModel,
			MaxRetries:   c.Anthropic.MaxRetries,
			RetryDelay:   durationMs(c.Anthropic.RetryDelayMs, time.Second),
		})
		if err != nil {
			return nil, err
		}
		clients["anthropic"] = client
	}

	if c.OpenAI.APIKey != "" {
		client, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       c.OpenAI.APIKey,
			BaseURL:      c.OpenAI.BaseURL,
			DefaultModel: c.OpenAI.DefaultModel,
			MaxRetries:   c.OpenAI.MaxRetries,
			RetryDelay:   durationMs(c.OpenAI.RetryDelayMs, time.Second),
		})
		if err != nil {
			return nil, err
		}
		clients["openai"] = client
	}

	return clients, nil
}

// RoleBindings resolves the configured roles.* tree, falling back to
// sensible built-in defaults for any role left unconfigured.
func (c ProvidersConfig) RoleBindings() map[engine.Role]providers.RoleBinding {
	bindings := make(map[engine.Role]providers.RoleBinding, len(defaultRoleBindings))
	for role, def := range defaultRoleBindings {
		bindings[role] = providers.RoleBinding{Provider: def.Provider, Model: def.Model, Fallbacks: def.Fallbacks}
	}
	for roleName, cfg := range c.Roles {
		bindings[engine.Role(roleName)] = providers.RoleBinding{
			Provider:  cfg.Provider,
			Model:     cfg.Model,
			Fallbacks: cfg.Fallbacks,
		}
	}
	return bindings
}
