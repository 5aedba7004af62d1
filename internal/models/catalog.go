// Package models holds the LLM model catalog and the provider/model
// fallback machinery the role resolver is built on.
package models

import (
	"sort"
	"strings"
	"sync"
)

// Provider identifies an LLM vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Capability is a feature a model supports.
type Capability string

const (
	CapVision      Capability = "vision"
	CapTools       Capability = "tools"
	CapStreaming   Capability = "streaming"
	CapReasoning   Capability = "reasoning"
	CapLongContext Capability = "long_context"
)

// Tier orders models by quality/cost.
type Tier string

const (
	TierFlagship Tier = "flagship"
	TierStandard Tier = "standard"
	TierFast     Tier = "fast"
	TierMini     Tier = "mini"
)

// tierRank gives Tier a sort order, flagship first.
func tierRank(t Tier) int {
	switch t {
	case TierFlagship:
		return 0
	case TierStandard:
		return 1
	case TierFast:
		return 2
	case TierMini:
		return 3
	}
	return 4
}

// Model describes one catalog entry.
type Model struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Provider      Provider     `json:"provider"`
	Tier          Tier         `json:"tier"`
	ContextWindow int          `json:"context_window"`
	Capabilities  []Capability `json:"capabilities"`
	Aliases       []string     `json:"aliases,omitempty"`
	Deprecated    bool         `json:"deprecated,omitempty"`
}

// HasCapability reports whether cap is listed for the model.
func (m *Model) HasCapability(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Filter selects catalog entries; zero fields don't constrain, except
// that deprecated models are excluded unless IncludeDeprecated is set.
type Filter struct {
	Providers            []Provider
	Tiers                []Tier
	RequiredCapabilities []Capability
	MinContextWindow     int
	IncludeDeprecated    bool
}

// Matches reports whether m passes every constraint in the filter.
func (f *Filter) Matches(m *Model) bool {
	if f == nil {
		return true
	}
	if len(f.Providers) > 0 && !containsProvider(f.Providers, m.Provider) {
		return false
	}
	if len(f.Tiers) > 0 && !containsTier(f.Tiers, m.Tier) {
		return false
	}
	for _, cap := range f.RequiredCapabilities {
		if !m.HasCapability(cap) {
			return false
		}
	}
	if f.MinContextWindow > 0 && m.ContextWindow < f.MinContextWindow {
		return false
	}
	if m.Deprecated && !f.IncludeDeprecated {
		return false
	}
	return true
}

func containsProvider(ps []Provider, p Provider) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

func containsTier(ts []Tier, t Tier) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

// builtinModels is the shipped catalog: the models the chat/smart/
// worker/quick/summarizer roles route across by default.
var builtinModels = []*Model{
	{
		ID: "claude-opus-4", Name: "Claude Opus 4",
		Provider: ProviderAnthropic, Tier: TierFlagship, ContextWindow: 200000,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapLongContext},
		Aliases:      []string{"claude-opus-4-5-20251101", "opus"},
	},
	{
		ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet",
		Provider: ProviderAnthropic, Tier: TierStandard, ContextWindow: 200000,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapLongContext},
		Aliases:      []string{"claude-3-5-sonnet", "sonnet"},
	},
	{
		ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku",
		Provider: ProviderAnthropic, Tier: TierFast, ContextWindow: 200000,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapLongContext},
		Aliases:      []string{"claude-3-5-haiku", "haiku"},
	},
	{
		ID: "gpt-4o", Name: "GPT-4o",
		Provider: ProviderOpenAI, Tier: TierStandard, ContextWindow: 128000,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapLongContext},
		Aliases:      []string{"gpt-4o-2024-11-20"},
	},
	{
		ID: "gpt-4o-mini", Name: "GPT-4o Mini",
		Provider: ProviderOpenAI, Tier: TierFast, ContextWindow: 128000,
		Capabilities: []Capability{CapVision, CapTools, CapStreaming, CapLongContext},
		Aliases:      []string{"gpt-4o-mini-2024-07-18"},
	},
	{
		ID: "o1", Name: "o1",
		Provider: ProviderOpenAI, Tier: TierFlagship, ContextWindow: 200000,
		Capabilities: []Capability{CapVision, CapTools, CapReasoning, CapLongContext},
		Aliases:      []string{"o1-2024-12-17"},
	},
	{
		ID: "o3-mini", Name: "o3-mini",
		Provider: ProviderOpenAI, Tier: TierStandard, ContextWindow: 200000,
		Capabilities: []Capability{CapTools, CapReasoning, CapLongContext},
		Aliases:      []string{"o3-mini-2025-01-31"},
	},
}

// Catalog is a registry of models addressable by id or alias.
type Catalog struct {
	mu      sync.RWMutex
	models  map[string]*Model
	aliases map[string]string // lowercase alias -> id
}

// NewCatalog builds a catalog pre-populated with the builtin models.
func NewCatalog() *Catalog {
	c := &Catalog{
		models:  make(map[string]*Model),
		aliases: make(map[string]string),
	}
	for _, m := range builtinModels {
		c.Register(m)
	}
	return c
}

// Register adds or replaces a model and indexes its aliases.
func (c *Catalog) Register(m *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.ID] = m
	for _, alias := range m.Aliases {
		c.aliases[strings.ToLower(alias)] = m.ID
	}
}

// Get resolves id directly or through a case-insensitive alias.
func (c *Catalog) Get(id string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.models[id]; ok {
		return m, true
	}
	if realID, ok := c.aliases[strings.ToLower(id)]; ok {
		return c.models[realID], true
	}
	return nil, false
}

// List returns matching models ordered by provider, tier rank, name.
func (c *Catalog) List(filter *Filter) []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Model
	for _, m := range c.models {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Tier != b.Tier {
			return tierRank(a.Tier) < tierRank(b.Tier)
		}
		return a.Name < b.Name
	})
	return out
}

// ListByProvider returns the provider's models.
func (c *Catalog) ListByProvider(p Provider) []*Model {
	return c.List(&Filter{Providers: []Provider{p}})
}

// ListByCapability returns models that have cap.
func (c *Catalog) ListByCapability(cap Capability) []*Model {
	return c.List(&Filter{RequiredCapabilities: []Capability{cap}})
}

// DefaultCatalog is the shared process-wide catalog.
var DefaultCatalog = NewCatalog()

// Get resolves id against the default catalog.
func Get(id string) (*Model, bool) { return DefaultCatalog.Get(id) }

// List queries the default catalog.
func List(filter *Filter) []*Model { return DefaultCatalog.List(filter) }

// ListByProvider queries the default catalog by provider.
func ListByProvider(p Provider) []*Model { return DefaultCatalog.ListByProvider(p) }

// ListByCapability queries the default catalog by capability.
func ListByCapability(cap Capability) []*Model { return DefaultCatalog.ListByCapability(cap) }
