// Package exitcode defines named exit codes for the tandem CLI.
//
// Each code maps a specific termination condition to a numeric value
// recognized by shell scripts and CI pipelines.
package exitcode

// Exit code constants.
const (
	Success         = 0   // Session ended normally
	Error           = 1   // Invalid args, misconfiguration, unreadable state
	Stalled         = 2   // The last turn hit the tool step limit
	TransportFailed = 3   // The model endpoint kept failing
	Interrupted     = 130 // Second SIGINT or SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case Stalled:
		return "Stalled"
	case TransportFailed:
		return "TransportFailed"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}
