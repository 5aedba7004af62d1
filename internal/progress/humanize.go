package progress

import (
	"fmt"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/format"
)

// Humanize renders a single descriptive sentence per event kind,
// mirroring the original's per-event message table.
func Humanize(eventType string, data map[string]any) string {
	switch eventType {
	case EventAgentStart:
		return "Working on it..."
	case EventThinking:
		return "Thinking..."
	case EventLLMStart:
		return "Consulting the model..."
	case EventLLMFinish:
		return "Got a response from the model."
	case EventToolStart:
		return "Running " + toolLabel(data) + "..."
	case EventToolFinish:
		return "Finished " + toolLabel(data) + "."
	case EventToolError:
		return toolLabel(data) + " failed: " + errorKindLabel(data)
	case EventPhaseReadOnly:
		return "Looking things up first."
	case EventPhaseWriteEnabled:
		return "Ready to make changes."
	case EventPhaseValidationPlan:
		return "Will confirm the change afterward."
	case EventPhaseValidation:
		return "Confirming the change..."
	case EventHeartbeat:
		return "Still working..."
	case EventAgentFinish:
		return "Done."
	case EventAgentMetrics:
		return humanizeMetrics(data)
	case EventContextWindow:
		return "Context window is filling up (" + fmt.Sprintf("%v", data["status"]) + ")."
	default:
		return eventType
	}
}

func toolLabel(data map[string]any) string {
	if name, ok := data["tool_name"].(string); ok && name != "" {
		return name
	}
	return "a tool"
}

func errorKindLabel(data map[string]any) string {
	if kind, ok := data["kind"]; ok {
		return fmt.Sprintf("%v", kind)
	}
	return "unknown error"
}

func humanizeMetrics(data map[string]any) string {
	elapsedMs, _ := data["elapsed_ms"].(int64)
	return fmt.Sprintf("Completed in %s.", format.DurationMs(elapsedMs))
}
