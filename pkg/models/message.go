package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation passed to the LLM.
//
// Invariant: an assistant message that declares ToolCalls must be
// immediately followed by one tool-role message per declared call, in
// the same order, before the next assistant turn.
type Message struct {
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID  string         `json:"tool_call_id,omitempty"` // set on tool-role messages
	ToolName    string         `json:"tool_name,omitempty"`    // set on tool-role messages
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToolCall is a structured request from the LLM to invoke a named tool.
type ToolCall struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ErrorKind enumerates the ToolResult error classifications.
// Values are wire strings, not Go error types.
type ErrorKind string

const (
	ErrorKindInvalidJSON   ErrorKind = "invalid_json"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindCircuitOpen   ErrorKind = "circuit_open"
	ErrorKindNonRetryable  ErrorKind = "non_retryable"
	ErrorKindRateLimited   ErrorKind = "rate_limited"
	ErrorKindRetryable     ErrorKind = "retryable"
)

// Retryable reports whether a materialized attempt of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindTimeout, ErrorKindRetryable, ErrorKindRateLimited:
		return true
	default:
		return false
	}
}

// CountsTowardBreaker reports whether this kind increments the circuit breaker's failure count.
func (k ErrorKind) CountsTowardBreaker() bool {
	switch k {
	case ErrorKindTimeout, ErrorKindNonRetryable, ErrorKindRateLimited, ErrorKindRetryable:
		return true
	default:
		return false
	}
}

// ToolOutcome is the top-level disposition of a ToolResult.
type ToolOutcome string

const (
	OutcomeOK    ToolOutcome = "ok"
	OutcomeError ToolOutcome = "error"
)

// ToolResultError is the structured error descriptor carried on a
// failed ToolResult.
type ToolResultError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	CallID     string           `json:"call_id"`
	ToolName   string           `json:"tool_name"`
	Outcome    ToolOutcome      `json:"outcome"`
	Value      map[string]any   `json:"value,omitempty"`
	Error      *ToolResultError `json:"error,omitempty"`
	Attempts   int              `json:"attempts"`
	DurationMs int64            `json:"duration_ms"`
	CacheHit   bool             `json:"cache_hit"`
	RefID      string           `json:"ref_id,omitempty"`
}

// IsError reports whether this result's outcome is an error.
func (r ToolResult) IsError() bool { return r.Outcome == OutcomeError }

// ToolMessagePayload is the shape of the content sent back to the LLM
// for a tool message: a ref_id plus the summarized value.
type ToolMessagePayload struct {
	RefID   string `json:"ref_id,omitempty"`
	Summary any    `json:"summary"`
}
