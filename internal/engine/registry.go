package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is the consumed tool executable interface: each tool is an
// async callable `(arguments) -> result`, raising on failure with a
// textual error. Timeouts are imposed externally by C4.
type Tool interface {
	Name() string
	Description() string
	Schema() string // raw JSON Schema for arguments
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Registry is C1: an immutable-after-construction mapping from tool
// name to executable, plus the schema catalog sent to the LLM.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	schemas   map[string]*jsonschema.Schema
	built     bool

	// lateBound memoizes the preferences-querying variant per LLM
	// client identity, breaking the agent-calls-tool-calls-agent cycle
	// via late binding.
	lateBoundMu sync.Mutex
	lateBound   map[string]Tool
	lateBoundFactory func(llm LLMClient) Tool
}

// NewRegistry builds an empty registry. Call Register for each tool
// factory, then Freeze to compile schemas and make it immutable.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		schemas:   make(map[string]*jsonschema.Schema),
		lateBound: make(map[string]Tool),
	}
}

// Register adds a tool. Must be called before Freeze.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return fmt.Errorf("engine: registry already frozen, cannot register %q", t.Name())
	}
	if t.Name() == "" {
		return ErrEmptyToolName
	}
	r.tools[t.Name()] = t
	return nil
}

// SetLateBoundFactory installs the factory used by WithLLM to compose
// the preferences-querying tool on demand.
func (r *Registry) SetLateBoundFactory(name string, factory func(llm LLMClient) Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lateBoundFactory = factory
	_ = name
}

// Freeze compiles each tool's JSON Schema and marks the registry
// immutable. Schema compile failures are a registry misconfiguration
// and propagate to the caller.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	for name, t := range r.tools {
		raw := t.Schema()
		if raw == "" {
			continue
		}
		resourceName := "tool://" + name
		if err := compiler.AddResource(resourceName, stringsReader(raw)); err != nil {
			return fmt.Errorf("engine: tool %q schema invalid: %w", name, err)
		}
		schema, err := compiler.Compile(resourceName)
		if err != nil {
			return fmt.Errorf("engine: tool %q schema compile failed: %w", name, err)
		}
		r.schemas[name] = schema
	}
	r.built = true
	return nil
}

// Get returns the executable handle for name, or nil if absent.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Validate checks args against the tool's declared schema. A tool
// without a schema is left unvalidated (trusted internal tool).
func (r *Registry) Validate(name string, args map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return schema.Validate(args)
}

// Schemas returns the LLM-visible tool catalog.
func (r *Registry) Schemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolSchema, 0, len(r.tools))
	for name, t := range r.tools {
		out = append(out, ToolSchema{
			Name:        name,
			Description: t.Description(),
			Parameters:  schemaToMap(t.Schema()),
		})
	}
	return out
}

// ClassifyFamily maps a tool name to its backing-service family.
func (r *Registry) ClassifyFamily(name string) Family {
	return classifyFamily(name)
}

// WithLLM composes and memoizes the late-bound preferences-querying
// tool for a given LLM client identity, breaking the
// agent-calls-tool-calls-agent cycle.
func (r *Registry) WithLLM(llmIdentity string, llm LLMClient) Tool {
	r.lateBoundMu.Lock()
	defer r.lateBoundMu.Unlock()

	if existing, ok := r.lateBound[llmIdentity]; ok {
		return existing
	}
	if r.lateBoundFactory == nil {
		return nil
	}
	t := r.lateBoundFactory(llm)
	r.lateBound[llmIdentity] = t
	return t
}

// schemaToMap parses a raw JSON Schema string into a generic map for
// wire transmission to the LLM provider. Parse failure yields an empty
// object rather than propagating (the compiled schema already
// validated at Freeze time).
func schemaToMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{"type": "object"}
	}
	m, err := decodeJSONObject(raw)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
