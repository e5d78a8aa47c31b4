// Package config defines the tandem configuration model and default values.
//
// Configuration is assembled from multiple sources with a strict precedence
// chain: built-in defaults < global TOML file < project env-file < explicit
// config file < TANDEM_* environment variables < CLI flag overrides.
package config

import (
	"github.com/CodexForgeBR/tandem/internal/admission"
	"github.com/CodexForgeBR/tandem/internal/model"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/supervisor"
)

// EnvPrefix is prepended to every variable name in the process environment.
const EnvPrefix = "TANDEM_"

// WhitelistedVars lists every configuration variable name that may appear in
// config files. Variables not in this list are silently ignored during loading.
var WhitelistedVars = [27]string{
	"EXECUTOR_BACKEND",
	"EXECUTOR_MODEL",
	"EXECUTOR_BASE_URL",
	"SUPERVISOR_BACKEND",
	"SUPERVISOR_MODEL",
	"SUPERVISOR_BASE_URL",
	"API_KEY",
	"NUM_CTX",
	"REQUEST_TIMEOUT",
	"MAX_RETRIES",
	"MAX_TOOL_STEPS",
	"MAX_CORRECTIVE_STEPS",
	"MAX_REPAIR_ROUNDS",
	"IDLE_THRESHOLD",
	"MAX_IDLE_REACTIVATIONS",
	"PAUSE_AUTO_RESUME",
	"ADMISSION_WAIT_MS",
	"SUPERVISOR_MIN_FREE_VRAM_MB",
	"AUTONOMOUS",
	"SHELL_POLICY_FILE",
	"PYTHON",
	"NOTIFY_COMMAND",
	"AUDIT_DIR",
	"JOURNAL",
	"STARTUP_NOTES",
	"VERBOSE",
	"TUI",
}

// Config holds every configuration field for the tandem CLI.
type Config struct {
	// Model endpoints. An empty supervisor backend or URL reuses the
	// executor's.
	ExecutorBackend   string
	ExecutorModel     string
	ExecutorBaseURL   string
	SupervisorBackend string
	SupervisorModel   string
	SupervisorBaseURL string
	APIKey            string

	// Request tuning. NumCtx 0 lets the VRAM advisor choose.
	NumCtx         int
	RequestTimeout int
	MaxRetries     int

	// Loop limits.
	MaxToolSteps       int
	MaxCorrectiveSteps int
	MaxRepairRounds    int

	// Watchdog, in seconds.
	IdleThreshold        int
	MaxIdleReactivations int
	PauseAutoResume      int

	// Admission.
	AdmissionWaitMS         int
	SupervisorMinFreeVRAMMB int

	// Capabilities.
	Autonomous      bool
	ShellPolicyFile string
	Python          string

	// Side channels.
	NotifyCommand string
	AuditDir      string
	Journal       bool

	// StartupNotes seeds memory on the first run in a work dir.
	StartupNotes string

	// Runtime flags.
	Verbose bool
	TUI     bool

	// CLI-only flags (not loaded from config files).
	ConfigFile  string
	WorkDir     string
	Prompt      string
	IdleUntil   string
	Resume      bool
	ResumeForce bool
	Clean       bool
	ColdStart   bool
	Status      bool
	Cancel      bool
}

// NewDefaultConfig returns a Config populated with all built-in default values.
func NewDefaultConfig() *Config {
	return &Config{
		ExecutorBackend:         model.Ollama,
		ExecutorModel:           model.DefaultExecutorModel,
		SupervisorModel:         model.DefaultSupervisorModel,
		RequestTimeout:          300,
		MaxRetries:              3,
		MaxToolSteps:            orchestrator.DefaultMaxToolSteps,
		MaxCorrectiveSteps:      orchestrator.DefaultMaxCorrectiveSteps,
		MaxRepairRounds:         supervisor.DefaultMaxRepairRounds,
		IdleThreshold:           int(orchestrator.DefaultIdleThreshold.Seconds()),
		MaxIdleReactivations:    orchestrator.DefaultMaxIdleReactivations,
		PauseAutoResume:         int(orchestrator.DefaultPauseAutoResume.Seconds()),
		AdmissionWaitMS:         int(admission.DefaultMaxWait.Milliseconds()),
		SupervisorMinFreeVRAMMB: admission.DefaultSupervisorMinFreeVRAMMB,
		Python:                  "python3",
		AuditDir:                "logs",
		StartupNotes:            "notes/startup.md",
		WorkDir:                 ".",
	}
}
