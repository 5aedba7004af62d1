package engine

import (
	"context"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// ToolSchema is an LLM-visible tool descriptor: name, argument schema,
// and documentation (C1's schemas() projection).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// Request is one LLM turn's input: the running message list, the tool
// catalog (omitted entirely when tool_choice should be "none"), and the
// tool-choice directive.
type Request struct {
	Model      string
	Messages   []models.Message
	Tools      []ToolSchema
	ToolChoice ToolChoiceOverride
	System     string
}

// Response is one LLM turn's output: either assistant text, or a set
// of requested tool calls (never both in a way the loop needs to
// disambiguate — Content is the assistant's visible text regardless).
type Response struct {
	Content   string
	ToolCalls []models.ToolCall
}

// HasToolCalls reports whether the model asked for tool invocations.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// StreamChunk is one piece of a streamed finalization response.
type StreamChunk struct {
	Delta string
	Done  bool
}

// LLMClient is the consumed LLM provider interface. The core does
// not assume any specific provider; concrete implementations live in
// internal/agent/providers.
type LLMClient interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// Role selects which model tier handles a given call
// (chat/smart/worker/quick/summarizer), resolved by a RoleResolver
// collaborator.
type Role string

const (
	RoleChat       Role = "chat"
	RoleSmart      Role = "smart"
	RoleWorker     Role = "worker"
	RoleQuick      Role = "quick"
	RoleSummarizer Role = "summarizer"
)

// RoleResolver resolves a Role to a ready-to-use LLMClient, typically
// backed by config-driven provider/model fallback selection.
type RoleResolver interface {
	Resolve(role Role) (LLMClient, string, error) // client, model id, error
}
