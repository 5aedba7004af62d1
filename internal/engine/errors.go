package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// Sentinel errors for conditions the loop itself must react to. Tool
// errors never reach this layer — these are
// for registry misconfiguration and loop-level failures only.
var (
	ErrToolNotFound    = errors.New("engine: tool not found in registry")
	ErrMaxIterations   = errors.New("engine: iteration budget exhausted")
	ErrNoLLMClient     = errors.New("engine: no LLM client configured")
	ErrEmptyToolName   = errors.New("engine: empty tool name")
)

// ToolError carries the classified failure behind a ToolResult's error
// field. It is never propagated up through the loop; it is always
// materialized into a models.ToolResult.
type ToolError struct {
	Kind    models.ErrorKind
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError wraps err with a classified kind.
func NewToolError(kind models.ErrorKind, message string, cause error) *ToolError {
	return &ToolError{Kind: kind, Message: message, Cause: cause}
}

// LoopError is a loop-level (not tool-level) failure: registry
// misconfiguration, missing config, a broken LLM transport during a
// non-recoverable phase. These propagate straight to the caller.
type LoopError struct {
	Phase     Phase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("engine: loop error at iteration %d (phase %s): %s: %v", e.Iteration, e.Phase, e.Message, e.Cause)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// ClassifyError implements a heuristic text classifier:
// authentication/authorization/validation/"already exists" terms map
// to non_retryable; rate-limit/unavailable terms to rate_limited;
// network/timeout/internal-error terms to retryable; unknown defaults
// to retryable.
func ClassifyError(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindRetryable
	}

	// A *ToolError already carries an authoritative kind (e.g. the
	// executor's own deadline/hedge timeout) — trust it rather than
	// re-deriving one from its own formatted message, which would
	// otherwise re-match "timeout" against the retryable terms below.
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.Kind != "" {
		return toolErr.Kind
	}

	text := strings.ToLower(err.Error())

	nonRetryableTerms := []string{
		"unauthorized", "401", "forbidden", "403", "authentication",
		"invalid api key", "validation error", "invalid argument",
		"already exists", "not found", "404",
	}
	for _, t := range nonRetryableTerms {
		if strings.Contains(text, t) {
			return models.ErrorKindNonRetryable
		}
	}

	rateLimitedTerms := []string{
		"rate limit", "rate_limit", "429", "too many requests",
		"service unavailable", "503", "quota",
	}
	for _, t := range rateLimitedTerms {
		if strings.Contains(text, t) {
			return models.ErrorKindRateLimited
		}
	}

	retryableTerms := []string{
		"timeout", "timed out", "connection reset", "connection refused",
		"internal server error", "500", "502", "504", "network", "eof",
	}
	for _, t := range retryableTerms {
		if strings.Contains(text, t) {
			return models.ErrorKindRetryable
		}
	}

	return models.ErrorKindRetryable
}

// IsWriteStyleTool reports whether a tool's name marks it as
// write-style: contains add/update/delete/monitor/set_/
// create/remove, or is an explicit mutator.
func IsWriteStyleTool(name string) bool {
	lower := strings.ToLower(name)
	writeVerbs := []string{"add", "update", "delete", "monitor", "set_", "create", "remove"}
	for _, v := range writeVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return explicitMutators[lower]
}

// explicitMutators names tools that are write-style despite not
// matching a verb substring, e.g. preferences_rate.
var explicitMutators = map[string]bool{
	"preferences_rate": true,
}
