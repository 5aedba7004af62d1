package engine

import "github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"

// FinalizationGate is C8: decides, after each tool batch, whether the
// next LLM turn should be a no-tools finalize call.
type FinalizationGate struct{}

// NewFinalizationGate constructs C8 (stateless).
func NewFinalizationGate() *FinalizationGate {
	return &FinalizationGate{}
}

// finalizable implements the finalization predicate over one batch's results.
func finalizable(rs *RunState, results []models.ToolResult, writeSucceededThisBatch bool) bool {
	for _, r := range results {
		if r.Outcome == models.OutcomeError {
			return false
		}
	}

	if writeSucceededThisBatch {
		return rs.ValidationDone
	}

	for _, r := range results {
		if r.Outcome == models.OutcomeOK && HasNonEmptyContent(r.Value) {
			return true
		}
	}
	return false
}

// Evaluate runs the finalization predicate plus its overrides,
// updating rs.ForceFinalizeNext and rs.NextToolChoiceOverride.
func (g *FinalizationGate) Evaluate(rs *RunState, results []models.ToolResult) {
	writeSucceededThisBatch := false
	for _, r := range results {
		if IsWriteStyleTool(r.ToolName) && r.Outcome == models.OutcomeOK {
			writeSucceededThisBatch = true
		}
	}

	ok := finalizable(rs, results, writeSucceededThisBatch)

	// Override: a write just succeeded this turn -> require validation
	// first, regardless of what the base predicate said.
	if writeSucceededThisBatch {
		ok = false
	}

	// Override: must_write with no completed write blocks finalization.
	if rs.MustWrite && !rs.WriteCompleted {
		ok = false
	}

	// Override: having ever attempted a write blocks finalization until
	// it succeeds or the iteration budget is exhausted.
	if rs.SeenWriteIntent && !rs.WriteCompleted {
		ok = false
	}

	rs.ForceFinalizeNext = ok
	if ok {
		rs.NextToolChoiceOverride = ToolChoiceNone
	} else if rs.MustWrite && !rs.WriteCompleted {
		rs.NextToolChoiceOverride = ToolChoiceRequired
	} else {
		rs.NextToolChoiceOverride = ToolChoiceAuto
	}
}

// EvaluateNoToolCallsReturned implements the override for when
// must_write is true, the LLM returned no tool calls, and no write is
// completed: inject directive, force tool_choice=required, never
// finalize.
func (g *FinalizationGate) EvaluateNoToolCallsReturned(rs *RunState) bool {
	if rs.MustWrite && !rs.WriteCompleted {
		rs.NextToolChoiceOverride = ToolChoiceRequired
		return false
	}
	return true
}
