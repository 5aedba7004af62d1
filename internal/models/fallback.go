package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ModelCandidate is one provider/model pair in a fallback chain.
type ModelCandidate struct {
	Provider string
	Model    string
}

func (c ModelCandidate) String() string {
	return ModelKey(c.Provider, c.Model)
}

// ModelKey normalizes a provider/model pair into a lowercase
// "provider/model" key, used for candidate dedup, allowlists, and
// per-candidate breaker names.
func ModelKey(provider, model string) string {
	return strings.ToLower(provider) + "/" + strings.ToLower(model)
}

// FallbackConfig describes a role's candidate chain: the primary
// provider/model plus "provider/model" fallback refs, optionally
// restricted by an allowlist keyed with ModelKey.
type FallbackConfig struct {
	PrimaryProvider string
	PrimaryModel    string
	Fallbacks       []string
	AllowedModels   map[string]bool
}

// FallbackAttempt records one failed candidate for diagnostics.
type FallbackAttempt struct {
	Provider string
	Model    string
	Error    string
	Reason   string
	Status   int
	Code     string
}

// FallbackResult carries the winning candidate's result plus the
// attempts that failed before it.
type FallbackResult[T any] struct {
	Result   T
	Provider string
	Model    string
	Attempts []FallbackAttempt
}

// RunFunc runs the operation against one candidate.
type RunFunc[T any] func(ctx context.Context, provider, model string) (T, error)

// OnErrorFunc observes each failed attempt; attempt is 1-indexed.
type OnErrorFunc func(provider, model string, err error, attempt, total int)

// Failure reasons attached to FailoverError and FallbackAttempt.
const (
	ReasonRateLimit    = "rate_limit"
	ReasonAuthError    = "auth_error"
	ReasonTimeout      = "timeout"
	ReasonServerError  = "server_error"
	ReasonBilling      = "billing"
	ReasonUnavailable  = "model_unavailable"
	ReasonAbort        = "abort"
	ReasonInvalid      = "invalid_request"
	ReasonContentBlock = "content_blocked"
	ReasonUnknown      = "unknown"
)

var (
	// ErrAborted marks a user-initiated abort; never retried or failed over.
	ErrAborted = errors.New("operation aborted")

	// ErrAllCandidatesFailed aggregates a fully exhausted chain.
	ErrAllCandidatesFailed = errors.New("all model candidates failed")
)

// FailoverError is an error a provider adapter has already classified,
// carrying the candidate it came from and why it failed.
type FailoverError struct {
	Err      error
	Provider string
	Model    string
	Reason   string
	Status   int
	Code     string
}

// NewFailoverError wraps err with candidate identity and a reason.
func NewFailoverError(err error, provider, model, reason string) *FailoverError {
	return &FailoverError{Err: err, Provider: provider, Model: model, Reason: reason}
}

func (e *FailoverError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Reason)
	if e.Provider != "" {
		fmt.Fprintf(&b, " %s", e.Provider)
	}
	if e.Model != "" {
		fmt.Fprintf(&b, " model=%s", e.Model)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " %s", e.Err.Error())
	}
	return b.String()
}

func (e *FailoverError) Unwrap() error { return e.Err }

// Text fragments shared by the reason classifier and the Is* helpers.
var (
	abortTerms   = []string{"aborted", "cancelled", "user abort"}
	timeoutTerms = []string{"timeout", "deadline exceeded", "context deadline", "etimedout"}
)

// reasonPatterns is checked in order; the first reason with a matching
// fragment wins. Abort and timeout are handled before this table so
// context errors classify correctly.
var reasonPatterns = []struct {
	reason string
	terms  []string
}{
	{ReasonRateLimit, []string{"rate limit", "rate_limit", "too many requests", "429"}},
	{ReasonAuthError, []string{"unauthorized", "invalid api key", "invalid_api_key", "authentication", "401", "403"}},
	{ReasonBilling, []string{"billing", "payment", "quota", "insufficient", "402"}},
	{ReasonUnavailable, []string{"model not found", "model_not_found", "does not exist", "unavailable"}},
	{ReasonContentBlock, []string{"content_filter", "content policy", "safety", "blocked"}},
	{ReasonServerError, []string{"internal server", "server error", "500", "502", "503", "504"}},
	{ReasonInvalid, []string{"invalid", "bad request", "400"}},
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// classifyErrorReason maps an arbitrary error to a Reason* constant by
// its type and text.
func classifyErrorReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.Canceled):
		return ReasonAbort
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}

	text := strings.ToLower(err.Error())
	if containsAny(text, abortTerms) {
		return ReasonAbort
	}
	if containsAny(text, timeoutTerms) {
		return ReasonTimeout
	}
	for _, p := range reasonPatterns {
		if containsAny(text, p.terms) {
			return p.reason
		}
	}
	return ReasonUnknown
}

// IsFailoverError reports whether the next candidate should be tried
// after err. Aborts never fail over; classified transient/provider
// problems do; plain invalid requests and unknowns do not.
func IsFailoverError(err error) bool {
	if err == nil {
		return false
	}
	var fe *FailoverError
	if errors.As(err, &fe) {
		return fe.Reason != ReasonAbort
	}
	if IsAbortError(err) {
		return false
	}
	switch classifyErrorReason(err) {
	case ReasonRateLimit, ReasonServerError, ReasonTimeout, ReasonBilling,
		ReasonAuthError, ReasonUnavailable:
		return true
	}
	return false
}

// IsAbortError reports whether err represents a user abort.
func IsAbortError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrAborted) {
		return true
	}
	var fe *FailoverError
	if errors.As(err, &fe) {
		return fe.Reason == ReasonAbort
	}
	return containsAny(strings.ToLower(err.Error()), abortTerms)
}

// IsTimeoutError reports whether err represents a timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var fe *FailoverError
	if errors.As(err, &fe) {
		return fe.Reason == ReasonTimeout
	}
	return containsAny(strings.ToLower(err.Error()), timeoutTerms)
}

// CoerceToFailoverError returns err as a *FailoverError, classifying it
// if needed. Candidate identity fields already set on an existing
// FailoverError are preserved; unset ones are filled in.
func CoerceToFailoverError(err error, provider, model string) *FailoverError {
	if err == nil {
		return nil
	}
	var fe *FailoverError
	if errors.As(err, &fe) {
		if fe.Provider == "" {
			fe.Provider = provider
		}
		if fe.Model == "" {
			fe.Model = model
		}
		return fe
	}
	return &FailoverError{
		Err:      err,
		Provider: provider,
		Model:    model,
		Reason:   classifyErrorReason(err),
	}
}

// ParseModelRef parses a "provider/model" ref; a bare model name gets
// defaultProvider. Blank refs parse to nil.
func ParseModelRef(ref, defaultProvider string) *ModelCandidate {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if provider, model, ok := strings.Cut(ref, "/"); ok {
		return &ModelCandidate{Provider: provider, Model: model}
	}
	return &ModelCandidate{Provider: defaultProvider, Model: ref}
}

// BuildFallbackCandidates expands a FallbackConfig into its ordered
// candidate list: primary first, fallback refs after, with refs equal
// to the primary dropped.
func BuildFallbackCandidates(cfg *FallbackConfig) []ModelCandidate {
	if cfg == nil {
		return nil
	}
	candidates := make([]ModelCandidate, 0, 1+len(cfg.Fallbacks))
	if cfg.PrimaryProvider != "" && cfg.PrimaryModel != "" {
		candidates = append(candidates, ModelCandidate{Provider: cfg.PrimaryProvider, Model: cfg.PrimaryModel})
	}
	for _, ref := range cfg.Fallbacks {
		c := ParseModelRef(ref, cfg.PrimaryProvider)
		if c == nil || (c.Provider == cfg.PrimaryProvider && c.Model == cfg.PrimaryModel) {
			continue
		}
		candidates = append(candidates, *c)
	}
	return candidates
}

// RunWithModelFallback tries run against each candidate in order until
// one succeeds. Aborts and non-failover errors stop the chain; a fully
// exhausted chain returns an error wrapping ErrAllCandidatesFailed with
// every attempt summarized.
func RunWithModelFallback[T any](ctx context.Context, cfg *FallbackConfig, run RunFunc[T], onError OnErrorFunc) (*FallbackResult[T], error) {
	candidates := BuildFallbackCandidates(cfg)
	if len(cfg.AllowedModels) > 0 {
		allowed := candidates[:0:0]
		for _, c := range candidates {
			if cfg.AllowedModels[ModelKey(c.Provider, c.Model)] {
				allowed = append(allowed, c)
			}
		}
		if len(allowed) == 0 {
			return nil, fmt.Errorf("no allowed model candidates available")
		}
		candidates = allowed
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no model candidates configured")
	}

	var attempts []FallbackAttempt
	for i, candidate := range candidates {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ErrAborted
			}
			return nil, ctx.Err()
		}

		result, err := run(ctx, candidate.Provider, candidate.Model)
		if err == nil {
			return &FallbackResult[T]{
				Result:   result,
				Provider: candidate.Provider,
				Model:    candidate.Model,
				Attempts: attempts,
			}, nil
		}

		fe := CoerceToFailoverError(err, candidate.Provider, candidate.Model)
		attempts = append(attempts, FallbackAttempt{
			Provider: candidate.Provider,
			Model:    candidate.Model,
			Error:    err.Error(),
			Reason:   fe.Reason,
			Status:   fe.Status,
			Code:     fe.Code,
		})
		if onError != nil {
			onError(candidate.Provider, candidate.Model, err, i+1, len(candidates))
		}

		if IsAbortError(err) && !IsTimeoutError(err) {
			return nil, err
		}
		if i < len(candidates)-1 && !IsFailoverError(err) {
			return nil, err
		}
	}

	return nil, aggregateAttempts(attempts)
}

func aggregateAttempts(attempts []FallbackAttempt) error {
	if len(attempts) == 0 {
		return ErrAllCandidatesFailed
	}
	lines := make([]string, 0, len(attempts))
	for i, a := range attempts {
		line := fmt.Sprintf("  %d. %s/%s: [%s] %s", i+1, a.Provider, a.Model, a.Reason, a.Error)
		if a.Status != 0 {
			line += fmt.Sprintf(" (status=%d)", a.Status)
		}
		if a.Code != "" {
			line += fmt.Sprintf(" (code=%s)", a.Code)
		}
		lines = append(lines, line)
	}
	return fmt.Errorf("%w:\n%s", ErrAllCandidatesFailed, strings.Join(lines, "\n"))
}
