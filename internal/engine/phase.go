package engine

import (
	"strings"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// writeIntentVerbs and writeIntentTargets drive the must_write
// inference scan at turn 0.
var writeIntentVerbs = []string{"add", "delete", "remove", "update", "monitor", "set"}
var writeIntentTargets = []string{"radarr", "sonarr", "rating", "watchlist", "queue"}

// writeIntentIdioms are phrasings that imply write intent without the
// verb/target pairing rule matching cleanly, e.g. "to my radarr". A
// bare "add <title>" is handled separately in InferMustWrite.
var writeIntentIdioms = []string{"to my radarr", "to my sonarr", "to radarr", "to sonarr"}

// InferMustWrite scans the turn-0 user text for verb/target pairs (or
// known idioms) that imply the user wants a mutating action performed.
func InferMustWrite(userText string) bool {
	text := strings.ToLower(userText)

	for _, idiom := range writeIntentIdioms {
		if strings.Contains(text, idiom) {
			return true
		}
	}

	hasVerb := false
	for _, v := range writeIntentVerbs {
		if strings.Contains(text, v) {
			hasVerb = true
			break
		}
	}
	if !hasVerb {
		return false
	}

	for _, t := range writeIntentTargets {
		if strings.Contains(text, t) {
			return true
		}
	}

	// Bare "add <title>" with no explicit target still implies write
	// intent, since the default action in this assistant's domain is
	// "add to radarr/sonarr".
	return strings.HasPrefix(strings.TrimSpace(text), "add ")
}

// PhaseController is C7: enforces read-only -> write -> validation
// phase discipline and filters tool calls accordingly.
type PhaseController struct{}

// NewPhaseController constructs C7 (stateless; all mutable state lives
// on RunState).
func NewPhaseController() *PhaseController {
	return &PhaseController{}
}

// FilterCalls applies phase filtering to a turn's requested calls. In
// phase R and V, write-style calls are silently dropped (deferred to a
// later turn, not an error); in phase W, all calls pass through.
func (p *PhaseController) FilterCalls(rs *RunState, calls []models.ToolCall, registry *Registry) []models.ToolCall {
	if rs.Phase == PhaseWrite {
		return calls
	}

	filtered := make([]models.ToolCall, 0, len(calls))
	for _, c := range calls {
		if IsWriteStyleTool(c.ToolName) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// AdvancePhase transitions RunState.Phase after a batch executes,
// based on whether a write just succeeded and whether a validation
// read has been performed.
func (p *PhaseController) AdvancePhase(rs *RunState, results []models.ToolResult) {
	writeSucceeded := false
	for _, r := range results {
		if IsWriteStyleTool(r.ToolName) && r.Outcome == models.OutcomeOK {
			writeSucceeded = true
			rs.WriteCompleted = true
		}
		if IsWriteStyleTool(r.ToolName) {
			rs.SeenWriteIntent = true
		}
	}

	switch rs.Phase {
	case PhaseReadOnly:
		if len(results) > 0 {
			rs.Phase = PhaseWrite
		}
	case PhaseWrite:
		if writeSucceeded {
			rs.Phase = PhaseValidation
			rs.RequireValidationRead = true
		}
	case PhaseValidation:
		if len(results) > 0 {
			rs.ValidationDone = true
			rs.RequireValidationRead = false
		}
	}
}

// CheckValidation implements the validation-read identity match: scan
// the validation read's result for the just-written TMDb id first,
// falling back to a case-insensitive title substring match, mirroring
// the original's two-tier heuristic.
func CheckValidation(identity *WriteIdentity, value map[string]any) bool {
	if identity == nil || value == nil {
		return false
	}

	for _, key := range listFields {
		list, ok := value[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if identity.TMDbID != 0 && matchesTMDbID(m, identity.TMDbID) {
				return true
			}
		}
	}

	if identity.Title == "" {
		return false
	}
	target := strings.ToLower(strings.TrimSpace(identity.Title))
	for _, key := range listFields {
		list, ok := value[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if title, ok := m["title"].(string); ok {
				if strings.Contains(strings.ToLower(title), target) {
					return true
				}
			}
		}
	}
	return false
}

func matchesTMDbID(m map[string]any, id int) bool {
	for _, key := range []string{"tmdbId", "tmdb_id", "id"} {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if int(n) == id {
				return true
			}
		case int:
			if n == id {
				return true
			}
		}
	}
	return false
}
