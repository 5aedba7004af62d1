// Package progress implements C10: a throttled, multi-sink event
// fan-out with heartbeat and typing-pulse pacing. The background
// tasks run until Stop is called or their context is cancelled; there
// is no TTL auto-stop.
package progress

// Sink is the consumed progress sink interface: each sink gets a
// humanized event plus its structured payload, and a slower-cadence
// typing pulse. Sink failures are swallowed by the Broadcaster —
// progress is always best-effort.
type Sink interface {
	Emit(eventType string, message string, data map[string]any)
	TypingPulse()
}

// EventType enumerates the user-visible progress events.
const (
	EventAgentStart          = "agent.start"
	EventThinking            = "thinking"
	EventLLMStart            = "llm.start"
	EventLLMFinish           = "llm.finish"
	EventToolStart           = "tool.start"
	EventToolFinish          = "tool.finish"
	EventToolError           = "tool.error"
	EventPhaseReadOnly       = "phase.read_only"
	EventPhaseWriteEnabled   = "phase.write_enabled"
	EventPhaseValidationPlan = "phase.validation_planned"
	EventPhaseValidation     = "phase.validation"
	EventHeartbeat           = "heartbeat"
	EventAgentFinish         = "agent.finish"
	EventAgentMetrics        = "agent.metrics"

	// EventContextWindow is emitted by C9's token-budget tracking
	// (internal/context) when the pruned conversation is approaching the
	// target model's context window, ahead of the provider itself
	// rejecting an over-budget call.
	EventContextWindow = "context.window"
)

// controlEvents are never throttled, regardless of the configured
// minimum interval.
var controlEvents = map[string]bool{
	EventToolStart: true, EventToolFinish: true, EventToolError: true,
	EventLLMStart: true, EventLLMFinish: true,
	EventAgentStart: true, EventAgentFinish: true,
}
