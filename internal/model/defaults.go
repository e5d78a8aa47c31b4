// Package model holds the model roles of the runtime, their default model
// names, and the backend compatibility checks applied to model flags.
package model

// Role identifies which seat a model occupies in a session.
type Role string

// Model roles. The executor drives tool calls; the supervisor reviews them.
const (
	Executor   Role = "executor"
	Supervisor Role = "supervisor"
)

// Backend identifiers used throughout the CLI.
const (
	Ollama = "ollama"
	OpenAI = "openai"
)

// Default model names.
const (
	DefaultExecutorModel   = "hf.co/TeichAI/Qwen3-14B-Claude-4.5-Opus-High-Reasoning-Distill-GGUF:Q4_K_M"
	DefaultSupervisorModel = "cogito:14b"
)

// DefaultModelFor returns the default model name for role.
func DefaultModelFor(role Role) string {
	if role == Supervisor {
		return DefaultSupervisorModel
	}
	return DefaultExecutorModel
}

// DefaultBaseURL returns the default endpoint for backend.
func DefaultBaseURL(backend string) string {
	if backend == OpenAI {
		return "http://127.0.0.1:11434/v1"
	}
	return "http://127.0.0.1:11434"
}
