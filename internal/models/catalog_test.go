package models

import "testing"

func TestCatalog_GetByIDAndAlias(t *testing.T) {
	c := NewCatalog()
	if _, ok := c.Get("claude-opus-4"); !ok {
		t.Fatal("expected a built-in model to be registered by id")
	}
	if m, ok := c.Get("OPUS"); !ok || m.ID != "claude-opus-4" {
		t.Fatalf("expected case-insensitive alias lookup to resolve opus -> claude-opus-4, got %v ok=%v", m, ok)
	}
	if _, ok := c.Get("does-not-exist"); ok {
		t.Fatal("expected an unregistered id to miss")
	}
}

func TestCatalog_ListByProviderAndCapability(t *testing.T) {
	c := NewCatalog()

	anthropicModels := c.ListByProvider(ProviderAnthropic)
	if len(anthropicModels) == 0 {
		t.Fatal("expected at least one anthropic model")
	}
	for _, m := range anthropicModels {
		if m.Provider != ProviderAnthropic {
			t.Fatalf("ListByProvider returned a non-matching model: %+v", m)
		}
	}

	reasoningModels := c.ListByCapability(CapReasoning)
	if len(reasoningModels) == 0 {
		t.Fatal("expected at least one reasoning-capable model")
	}
	for _, m := range reasoningModels {
		if !m.HasCapability(CapReasoning) {
			t.Fatalf("ListByCapability returned a model without the capability: %+v", m)
		}
	}
}

func TestCatalog_ListSortsByProviderThenTierThenName(t *testing.T) {
	c := NewCatalog()
	all := c.List(nil)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Provider > cur.Provider {
			t.Fatalf("expected provider-ascending order, got %q before %q", prev.Provider, cur.Provider)
		}
		if prev.Provider == cur.Provider && tierRank(prev.Tier) > tierRank(cur.Tier) {
			t.Fatalf("expected tier rank ascending within a provider, got %q before %q", prev.Tier, cur.Tier)
		}
	}
}

func TestFilter_Matches(t *testing.T) {
	m := &Model{
		Provider:      ProviderOpenAI,
		Tier:          TierFast,
		ContextWindow: 128000,
		Capabilities:  []Capability{CapVision, CapTools},
		Deprecated:    true,
	}

	if (&Filter{Providers: []Provider{ProviderAnthropic}}).Matches(m) {
		t.Fatal("expected a provider mismatch to exclude the model")
	}
	if !(&Filter{Providers: []Provider{ProviderOpenAI}, IncludeDeprecated: true}).Matches(m) {
		t.Fatal("expected a provider match to include the model")
	}
	if (&Filter{RequiredCapabilities: []Capability{CapReasoning}}).Matches(m) {
		t.Fatal("expected a missing required capability to exclude the model")
	}
	if (&Filter{MinContextWindow: 200000}).Matches(m) {
		t.Fatal("expected an insufficient context window to exclude the model")
	}
	if (&Filter{}).Matches(m) {
		t.Fatal("expected a deprecated model to be excluded by default")
	}
	if !(&Filter{IncludeDeprecated: true}).Matches(m) {
		t.Fatal("expected IncludeDeprecated:true to include a deprecated model")
	}
}

func TestCatalog_RegisterOverridesAndAddsAliases(t *testing.T) {
	c := NewCatalog()
	c.Register(&Model{ID: "custom-model", Name: "Custom", Provider: Provider("custom"), Aliases: []string{"my-alias"}})

	m, ok := c.Get("custom-model")
	if !ok || m.Name != "Custom" {
		t.Fatalf("expected the custom model registered, got %v ok=%v", m, ok)
	}
	if m2, ok := c.Get("MY-ALIAS"); !ok || m2.ID != "custom-model" {
		t.Fatalf("expected alias lookup to resolve, got %v ok=%v", m2, ok)
	}
}

func TestPackageLevelHelpersDelegateToDefaultCatalog(t *testing.T) {
	if _, ok := Get("claude-opus-4"); !ok {
		t.Fatal("expected the package-level Get to resolve a built-in model")
	}
	if len(List(nil)) == 0 {
		t.Fatal("expected the package-level List to return built-in models")
	}
}
