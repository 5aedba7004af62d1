package preferences

import (
	"context"
	"fmt"
	"strings"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// ReadTool implements preferences_read
// (make_read_household_preferences: dotted path / key list / compact
// summary / full dump).
type ReadTool struct{ store *Store }

func NewReadTool(store *Store) *ReadTool { return &ReadTool{store: store} }

func (t *ReadTool) Name() string        { return "preferences_read" }
func (t *ReadTool) Description() string { return "Read household media preferences, in full, at a dotted path, or as a compact summary." }
func (t *ReadTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Optional dotted path, e.g. \"likes.genres\""},
    "keys": {"type": "array", "items": {"type": "string"}, "description": "Optional list of top-level keys to return"},
    "compact": {"type": "boolean", "description": "Return a compact human-readable summary instead of raw JSON", "default": false}
  }
}`
}

func (t *ReadTool) Execute(_ context.Context, args map[string]any) (map[string]any, error) {
	data, err := t.store.Load()
	if err != nil {
		return nil, err
	}

	if path, _ := args["path"].(string); path != "" {
		return map[string]any{"path": path, "value": GetByPath(data, path)}, nil
	}
	if rawKeys, ok := args["keys"].([]any); ok && len(rawKeys) > 0 {
		out := map[string]any{}
		for _, k := range rawKeys {
			key, _ := k.(string)
			if key == "" {
				continue
			}
			out[key] = data[key]
		}
		return out, nil
	}
	if compact, _ := args["compact"].(bool); compact {
		return map[string]any{"compact": BuildCompactContext(data)}, nil
	}
	return data, nil
}

// UpdateTool implements preferences_update
// (make_update_household_preferences: patch/deep-merge, dotted
// path+value set, list append/remove). Its name contains "update" so
// engine.IsWriteStyleTool classifies it as write-style without needing
// an explicit-mutator entry.
type UpdateTool struct{ store *Store }

func NewUpdateTool(store *Store) *UpdateTool { return &UpdateTool{store: store} }

func (t *UpdateTool) Name() string        { return "preferences_update" }
func (t *UpdateTool) Description() string { return "Update household media preferences via a deep-merge patch, a dotted path set, or a list append/remove." }
func (t *UpdateTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "patch": {"type": "object", "description": "Object to deep-merge into the preferences tree"},
    "path": {"type": "string", "description": "Dotted path to set, append to, or remove a value from"},
    "value": {"description": "Value to set at path"},
    "append": {"description": "Value to append to the list at path"},
    "remove_value": {"description": "Value to remove from the list at path"}
  }
}`
}

func (t *UpdateTool) Execute(_ context.Context, args map[string]any) (map[string]any, error) {
	data, err := t.store.Load()
	if err != nil {
		return nil, err
	}

	path, _ := args["path"].(string)
	append, hasAppend := args["append"]
	removeValue, hasRemove := args["remove_value"]

	switch {
	case path != "" && hasAppend && hasRemove:
		return nil, fmt.Errorf("preferences_update: specify only one of append or remove_value")
	case path != "" && hasAppend:
		data, err = ListAppend(data, path, append)
	case path != "" && hasRemove:
		data, err = ListRemoveValue(data, path, removeValue)
	case path != "":
		data = SetByPath(data, path, args["value"])
	default:
		patch, ok := args["patch"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("preferences_update: one of patch, or path (with value/append/remove_value), is required")
		}
		merged := DeepMerge(data, patch)
		data, _ = merged.(map[string]any)
	}
	if err != nil {
		return nil, err
	}
	if err := t.store.Save(data); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// RateTool implements preferences_rate: a convenience write tool that
// records a liked/disliked title or genre without going through the
// general patch surface, matching the original's quick "like"/"dislike"
// slash-command shortcuts. Its name has no write-verb substring, so it
// relies on engine's explicitMutators entry to be classified write-style.
type RateTool struct{ store *Store }

func NewRateTool(store *Store) *RateTool { return &RateTool{store: store} }

func (t *RateTool) Name() string        { return "preferences_rate" }
func (t *RateTool) Description() string { return "Record a liked or disliked title/genre/person in household preferences." }
func (t *RateTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "category": {"type": "string", "description": "Preference category, e.g. \"genres\", \"actors\", \"directors\", \"titles\""},
    "value": {"type": "string", "description": "The value to record, e.g. \"sci-fi\" or \"The Matrix\""},
    "liked": {"type": "boolean", "description": "true records under likes.<category>, false under dislikes.<category>", "default": true}
  },
  "required": ["category", "value"]
}`
}

func (t *RateTool) Execute(_ context.Context, args map[string]any) (map[string]any, error) {
	category, _ := args["category"].(string)
	value, _ := args["value"].(string)
	if category == "" || value == "" {
		return nil, fmt.Errorf("preferences_rate: category and value are required")
	}
	liked := true
	if v, ok := args["liked"].(bool); ok {
		liked = v
	}

	sentiment := "likes"
	if !liked {
		sentiment = "dislikes"
	}
	dottedPath := sentiment + "." + category

	data, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	data, err = ListAppend(data, dottedPath, value)
	if err != nil {
		return nil, err
	}
	if err := t.store.Save(data); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "path": dottedPath, "value": value}, nil
}

// SearchTool implements preferences_search
// (make_search_household_preferences: flattened key/value substring match).
type SearchTool struct{ store *Store }

func NewSearchTool(store *Store) *SearchTool { return &SearchTool{store: store} }

func (t *SearchTool) Name() string        { return "preferences_search" }
func (t *SearchTool) Description() string { return "Search household preferences for keys or values matching a substring." }
func (t *SearchTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Substring to match against preference keys and values"},
    "limit": {"type": "integer", "description": "Max matches to return", "default": 10}
  },
  "required": ["query"]
}`
}

func (t *SearchTool) Execute(_ context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("preferences_search: query is required")
	}
	limit := 10
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	data, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	lowerQuery := toLower(query)
	matches := make([]map[string]any, 0, limit)
	for _, entry := range flatten(data, "") {
		if len(matches) >= limit {
			break
		}
		if containsFold(entry.key, lowerQuery) || containsFold(entry.value, lowerQuery) {
			matches = append(matches, map[string]any{"path": entry.key, "value": entry.value})
		}
	}
	return map[string]any{"matches": matches}, nil
}

// QueryTool implements preferences_query, the late-bound
// agent-calls-tool-calls-agent tool: it answers a
// free-text question about household preferences by delegating to an
// LLM, grounded in make_query_household_preferences. It is composed on
// demand per LLM client identity via engine.Registry.WithLLM rather
// than constructed at registry build time, breaking the cycle.
type QueryTool struct {
	store *Store
	llm   engine.LLMClient
	model string
}

// NewQueryToolFactory returns the factory engine.Registry.SetLateBoundFactory
// expects: given an LLMClient, produce the bound QueryTool.
func NewQueryToolFactory(store *Store, model string) func(llm engine.LLMClient) engine.Tool {
	return func(llm engine.LLMClient) engine.Tool {
		return &QueryTool{store: store, llm: llm, model: model}
	}
}

func (t *QueryTool) Name() string        { return "preferences_query" }
func (t *QueryTool) Description() string { return "Answer a free-text question about household media preferences in one sentence." }
func (t *QueryTool) Schema() string {
	return `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Free-text question about household preferences"}
  },
  "required": ["query"]
}`
}

func (t *QueryTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("preferences_query: query is required")
	}
	if t.llm == nil {
		return nil, fmt.Errorf("preferences_query: no LLM client bound")
	}

	data, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	compact := BuildCompactContext(data)

	resp, err := t.llm.Complete(ctx, engine.Request{
		Model: t.model,
		System: "You are a helpful assistant that answers questions about household movie preferences. " +
			"Based on the preferences provided, answer the user's question in exactly one sentence. " +
			"Be concise and specific. Do not include explanations or additional context - just the direct answer.",
		Messages: []models.Message{{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("Preferences: %s\n\nQuestion: %s\n\nAnswer in one sentence:", compact, query),
		}},
		ToolChoice: engine.ToolChoiceNone,
	})
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("failed to query preferences: %v", err)}, nil
	}
	return map[string]any{"answer": trimTrailingPeriod(resp.Content)}, nil
}

func trimTrailingPeriod(s string) string {
	trimmed := strings.TrimSpace(s)
	return strings.TrimSuffix(trimmed, ".")
}

func toLower(s string) string { return strings.ToLower(s) }

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}
