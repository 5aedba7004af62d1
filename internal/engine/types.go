// Package engine implements the agent execution engine: the tool
// registry, result cache, circuit breaker, executor, batch scheduler,
// summarizer, phase controller, finalization gate, and the turn loop
// that drives them.
package engine

import (
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// Family groups tools by backing service for tuning and batching.
type Family string

const (
	FamilyTMDb  Family = "tmdb"
	FamilyPlex  Family = "plex"
	FamilyRadarr Family = "radarr"
	FamilySonarr Family = "sonarr"
	FamilyOther Family = "other"
)

// Phase constrains which tools may execute during a turn.
type Phase string

const (
	PhaseReadOnly   Phase = "read_only"
	PhaseWrite      Phase = "write_enabled"
	PhaseValidation Phase = "validation"
)

// ToolChoiceOverride is the one-shot directive C9/C8 leave for the next
// LLM call, consumed once per turn then cleared.
type ToolChoiceOverride string

const (
	ToolChoiceUnset    ToolChoiceOverride = ""
	ToolChoiceAuto     ToolChoiceOverride = "auto"
	ToolChoiceRequired ToolChoiceOverride = "required"
	ToolChoiceNone     ToolChoiceOverride = "none"
)

// WriteIdentity records the tmdb_id/title of the last successful write
// so the validation turn can confirm it landed (id-match first,
// title-match fallback).
type WriteIdentity struct {
	TMDbID int
	Title  string
}

// RunState is the per-user-turn state mutated exclusively by the agent
// loop (C9). It is created on message receipt and discarded when the
// run ends.
type RunState struct {
	IterIndex             int
	Phase                 Phase
	WritePhaseAllowed      bool
	RequireValidationRead bool
	WriteCompleted        bool
	SeenWriteIntent       bool
	ValidationDone        bool
	MustWrite             bool
	ForceFinalizeNext     bool
	NextToolChoiceOverride ToolChoiceOverride
	LastWriteIdentity     *WriteIdentity

	Dedup *DedupMap

	LLMCallCount  int
	ToolCallCount int
	StartedAt     time.Time
}

// NewRunState creates a fresh run in phase R with an in-run dedup map.
func NewRunState(mustWrite bool) *RunState {
	return &RunState{
		Phase:                  PhaseReadOnly,
		MustWrite:              mustWrite,
		NextToolChoiceOverride: ToolChoiceUnset,
		Dedup:                  NewDedupMap(),
		StartedAt:              time.Now(),
	}
}

// ConsumeToolChoiceOverride returns the pending override and clears it,
// per the "consumed once per turn, then cleared" design note.
func (rs *RunState) ConsumeToolChoiceOverride() ToolChoiceOverride {
	v := rs.NextToolChoiceOverride
	rs.NextToolChoiceOverride = ToolChoiceUnset
	return v
}

// Elapsed returns how long the run has been active.
func (rs *RunState) Elapsed() time.Duration {
	return time.Since(rs.StartedAt)
}

// ToolTuning is the per-tool/per-family timing knobs consumed by C4.
type ToolTuning struct {
	TimeoutMs      int
	RetryMax       int
	BackoffBaseMs  int
	HedgeDelayMs   int
}

// FamilyBatchLimit is the maximum calls packed into one batch for a
// family, per C5's fast/medium/slow classification.
func FamilyBatchLimit(f Family, write bool) int {
	if write {
		return 1
	}
	switch f {
	case FamilyTMDb:
		return 8
	case FamilyRadarr, FamilySonarr:
		return 2
	case FamilyPlex:
		return 4
	default:
		return 4
	}
}

// FamilyParallelism is the default inner semaphore size for a family,
// overridden by tools.familyParallelism.<family> in config.
func FamilyParallelism(f Family) int {
	switch f {
	case FamilyTMDb:
		return 16
	case FamilyRadarr, FamilySonarr:
		return 4
	case FamilyPlex:
		return 8
	default:
		return 4
	}
}

// classifyFamily maps a tool name to its backing-service family by
// prefix, per C1's classify_family.
func classifyFamily(toolName string) Family {
	switch {
	case hasPrefix(toolName, "tmdb_"):
		return FamilyTMDb
	case hasPrefix(toolName, "plex_"):
		return FamilyPlex
	case hasPrefix(toolName, "radarr_"):
		return FamilyRadarr
	case hasPrefix(toolName, "sonarr_"):
		return FamilySonarr
	default:
		return FamilyOther
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// ToolCallWithIndex pairs a ToolCall with its original position so
// batch flattening can restore declared order.
type ToolCallWithIndex struct {
	Call  models.ToolCall
	Index int
}
