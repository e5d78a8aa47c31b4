package notification

import "fmt"

// Event types sent to the notify command.
const (
	EventStalled            = "stalled"
	EventReactivationCapped = "reactivation_capped"
	EventToolDesign         = "tool_design"
	EventTransportFailed    = "transport_failed"
	EventSessionEnd         = "session_end"
	EventInterrupted        = "interrupted"
)

// FormatEvent creates a notification message for the given event. detail is
// event specific: the stalled step count, the tool name, the error text.
func FormatEvent(event, workDir, sessionID, detail string) string {
	switch event {
	case EventStalled:
		return fmt.Sprintf("⚠️ %s [%s] stalled: %s", workDir, sessionID, detail)
	case EventReactivationCapped:
		return fmt.Sprintf("💤 %s [%s] idle watchdog suspended after %s reactivations, waiting for input", workDir, sessionID, detail)
	case EventToolDesign:
		return fmt.Sprintf("🛠️ %s [%s] unknown tool %q escalated to a design plan", workDir, sessionID, detail)
	case EventTransportFailed:
		return fmt.Sprintf("❌ %s [%s] model endpoint failed: %s", workDir, sessionID, detail)
	case EventSessionEnd:
		return fmt.Sprintf("✅ %s [%s] session ended (%s)", workDir, sessionID, detail)
	case EventInterrupted:
		return fmt.Sprintf("⏸️ %s [%s] interrupted. Use --resume", workDir, sessionID)
	default:
		return fmt.Sprintf("ℹ️ %s [%s] event: %s %s", workDir, sessionID, event, detail)
	}
}
