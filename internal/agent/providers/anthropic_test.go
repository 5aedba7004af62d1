package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

func newAnthropicTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected an error when APIKey is empty")
	}
}

func TestNewAnthropicProvider_AppliesDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Fatalf("expected default model, got %q", p.defaultModel)
	}
	if p.maxTokens != 4096 {
		t.Fatalf("expected default max tokens 4096, got %d", p.maxTokens)
	}
}

func TestAnthropicProvider_Complete_SendsAuthAndParsesResponse(t *testing.T) {
	var gotAPIKey string
	var gotBody map[string]any
	srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAPIKey = r.Header.Get("X-Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type":"text","text":"hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens":5,"output_tokens":2}
		}`)
	})

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "key-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	resp, err := p.Complete(t.Context(), engine.Request{System: "be helpful"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("expected response content carried through, got %q", resp.Content)
	}
	if gotAPIKey != "key-test" {
		t.Fatalf("expected the api key forwarded as a header, got %q", gotAPIKey)
	}
	if gotBody["model"] != "claude-sonnet-4-20250514" {
		t.Fatalf("expected the default model sent, got %v", gotBody["model"])
	}
	system, ok := gotBody["system"].([]any)
	if !ok || len(system) != 1 {
		t.Fatalf("expected the system prompt forwarded as a text block, got %v", gotBody["system"])
	}
}

func TestAnthropicProvider_Complete_ParsesToolUseBlocks(t *testing.T) {
	srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type":"tool_use","id":"toolu_1","name":"tmdb_search","input":{"query":"Dune"}}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens":5,"output_tokens":2}
		}`)
	})

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "key-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	resp, err := p.Complete(t.Context(), engine.Request{
		Tools: []engine.ToolSchema{{Name: "tmdb_search", Description: "search", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].CallID != "toolu_1" || resp.ToolCalls[0].ToolName != "tmdb_search" {
		t.Fatalf("unexpected tool call: %+v", resp.ToolCalls[0])
	}
	var args map[string]any
	if err := json.Unmarshal(resp.ToolCalls[0].Arguments, &args); err != nil {
		t.Fatalf("expected the tool input to round-trip as JSON: %v", err)
	}
	if args["query"] != "Dune" {
		t.Fatalf("expected the tool input preserved, got %v", args)
	}
}

func TestAnthropicProvider_Complete_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int32
	srv := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_3","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	})

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "key-test", BaseURL: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	resp, err := p.Complete(t.Context(), engine.Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("expected the retried response content, got %q", resp.Content)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("expected exactly one retry after a 503, got %d attempts", attempts)
	}
}

func TestAnthropicProvider_IsRetryableError(t *testing.T) {
	p := &AnthropicProvider{}
	if p.isRetryableError(nil) {
		t.Fatal("expected nil to not be retryable")
	}
	if !p.isRetryableError(&anthropic.Error{StatusCode: 429}) {
		t.Fatal("expected a 429 api error to be retryable")
	}
	if p.isRetryableError(&anthropic.Error{StatusCode: 400}) {
		t.Fatal("expected a 400 api error to not be retryable")
	}
	if !p.isRetryableError(fmt.Errorf("dial tcp: connection reset by peer")) {
		t.Fatal("expected a connection reset error to be retryable")
	}
}

func TestAnthropicProvider_ConvertMessages_ToolResultAndAssistantToolUse(t *testing.T) {
	p := &AnthropicProvider{}
	args, _ := json.Marshal(map[string]any{"query": "Dune"})
	converted, err := p.convertMessages([]models.Message{
		{Role: models.RoleUser, Content: "find dune"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{CallID: "toolu_1", ToolName: "tmdb_search", Arguments: args}}},
		{Role: models.RoleTool, ToolCallID: "toolu_1", Content: `{"results":[]}`},
		{Role: models.RoleSystem, Content: "ignored"},
	})
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(converted) != 3 {
		t.Fatalf("expected the system message dropped, got %d messages", len(converted))
	}
}

func TestAnthropicProvider_BuildParams_ToolChoiceRequired(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	params, err := p.buildParams(engine.Request{
		ToolChoice: engine.ToolChoiceRequired,
		Tools:      []engine.ToolSchema{{Name: "t", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.ToolChoice.OfAny == nil {
		t.Fatal("expected tool_choice=any when ToolChoiceRequired is set")
	}
}
