// Package cli binds the tandem command-line flags and runs the operator
// console: line routing, slash commands and permission questions.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/CodexForgeBR/tandem/internal/config"
	"github.com/CodexForgeBR/tandem/internal/model"
	"github.com/CodexForgeBR/tandem/internal/schedule"
	"github.com/spf13/cobra"
)

// BindFlags registers all CLI flags on the given cobra command.
// The flags directly modify fields in the provided config pointer and use
// its current values as defaults. Call ValidateFlags after parsing.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	// Models
	flags.StringVar(&cfg.ExecutorBackend, "executor-backend", cfg.ExecutorBackend, "Executor backend: ollama or openai")
	flags.StringVar(&cfg.ExecutorModel, "executor-model", cfg.ExecutorModel, "Executor model name")
	flags.StringVar(&cfg.ExecutorBaseURL, "executor-url", cfg.ExecutorBaseURL, "Executor endpoint (default: backend default)")
	flags.StringVar(&cfg.SupervisorBackend, "supervisor-backend", cfg.SupervisorBackend, "Supervisor backend (default: executor backend)")
	flags.StringVar(&cfg.SupervisorModel, "supervisor-model", cfg.SupervisorModel, "Supervisor model name")
	flags.StringVar(&cfg.SupervisorBaseURL, "supervisor-url", cfg.SupervisorBaseURL, "Supervisor endpoint (default: executor endpoint)")

	// Request tuning
	flags.IntVar(&cfg.NumCtx, "num-ctx", cfg.NumCtx, "Context window size (0 = VRAM advisor)")
	flags.IntVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Seconds per model request")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries for transient model errors")

	// Loop limits
	flags.IntVar(&cfg.MaxToolSteps, "max-tool-steps", cfg.MaxToolSteps, "Tool steps per turn before the turn stalls")
	flags.IntVar(&cfg.MaxCorrectiveSteps, "max-corrective-steps", cfg.MaxCorrectiveSteps, "Tool steps per plan corrective turn")
	flags.IntVar(&cfg.MaxRepairRounds, "max-repair-rounds", cfg.MaxRepairRounds, "Supervisor repair rounds per answer")

	// Watchdog
	flags.IntVar(&cfg.IdleThreshold, "idle-threshold", cfg.IdleThreshold, "Seconds without progress before reactivation")
	flags.IntVar(&cfg.MaxIdleReactivations, "max-idle-reactivations", cfg.MaxIdleReactivations, "Reactivations before the watchdog waits for input")
	flags.IntVar(&cfg.PauseAutoResume, "pause-auto-resume", cfg.PauseAutoResume, "Seconds before a paused plan resumes")
	flags.StringVar(&cfg.IdleUntil, "idle-until", "", "Suppress reactivation until this time (HH:MM, YYYY-MM-DD HH:MM, 30m)")

	// Admission
	flags.IntVar(&cfg.AdmissionWaitMS, "admission-wait-ms", cfg.AdmissionWaitMS, "Max milliseconds a model call waits in the queue")
	flags.IntVar(&cfg.SupervisorMinFreeVRAMMB, "supervisor-min-free-vram-mb", cfg.SupervisorMinFreeVRAMMB, "Free VRAM required for supervisor calls")

	// Capabilities
	flags.BoolVar(&cfg.Autonomous, "autonomous", cfg.Autonomous, "Grant every capability without asking")
	flags.StringVar(&cfg.ShellPolicyFile, "shell-policy", cfg.ShellPolicyFile, "Shell allowlist file (JSON, YAML or JSONL)")
	flags.StringVar(&cfg.Python, "python", cfg.Python, "Python interpreter for python tools")

	// Side channels
	flags.StringVar(&cfg.NotifyCommand, "notify-command", cfg.NotifyCommand, "Command run on session events")
	flags.StringVar(&cfg.AuditDir, "audit-dir", cfg.AuditDir, "Directory for JSONL audit logs, relative to the work dir")
	flags.BoolVar(&cfg.Journal, "journal", cfg.Journal, "Also send audit records to the systemd journal")
	flags.StringVar(&cfg.StartupNotes, "startup-notes", cfg.StartupNotes, "Markdown notes seeded into memory on the first run")

	// Session
	flags.StringVarP(&cfg.WorkDir, "work-dir", "C", cfg.WorkDir, "Directory the executor works in")
	flags.StringVarP(&cfg.Prompt, "prompt", "p", "", "Run one message non-interactively and exit")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to additional config file (.toml or KEY=VALUE)")
	flags.BoolVar(&cfg.TUI, "tui", cfg.TUI, "Use the full-screen status view")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Show actor transitions and debug output")

	// Session Management
	flags.BoolVar(&cfg.Resume, "resume", false, "Resume from last interrupted session")
	flags.BoolVar(&cfg.ResumeForce, "resume-force", false, "Resume even if the plan changed (implies --resume)")
	flags.BoolVar(&cfg.Clean, "clean", false, "Delete state directory and start fresh")
	flags.BoolVar(&cfg.ColdStart, "cold-start", false, "Re-seed memory from the startup notes")
	flags.BoolVar(&cfg.Status, "status", false, "Show session status and exit")
	flags.BoolVar(&cfg.Cancel, "cancel", false, "Cancel active session and exit")
}

// ValidateFlags checks for invalid flag combinations after parsing.
// Must be called after cmd.Execute() or cmd.ParseFlags().
func ValidateFlags(cmd *cobra.Command, cfg *config.Config) error {
	// --config must exist if provided
	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err != nil {
			return fmt.Errorf("--config: %w", err)
		}
	}

	info, err := os.Stat(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("--work-dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("--work-dir: %s is not a directory", cfg.WorkDir)
	}

	// --resume-force implies --resume
	if cfg.ResumeForce {
		cfg.Resume = true
	}

	if cfg.Status && cfg.Cancel {
		return fmt.Errorf("--status and --cancel are mutually exclusive")
	}
	if cfg.Resume && cfg.Clean {
		return fmt.Errorf("--resume and --clean are mutually exclusive")
	}
	if cfg.Prompt != "" && cmd.Flags().Changed("tui") && cfg.TUI {
		return fmt.Errorf("--prompt and --tui are mutually exclusive")
	}

	if cfg.IdleUntil != "" {
		if _, err := schedule.ParseIdleUntil(cfg.IdleUntil, time.Now()); err != nil {
			return fmt.Errorf("--idle-until: %w", err)
		}
	}
	return nil
}

// ValidateConfig checks the merged configuration: backends, model names
// and limits.
func ValidateConfig(cfg *config.Config) error {
	execBackend, execModel := model.SetupExecutor(cfg.ExecutorBackend, cfg.ExecutorModel)
	if err := model.ValidateBackend(execBackend); err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	if err := model.ValidateModelBackend(execBackend, execModel, "executor-model"); err != nil {
		return err
	}
	supBackend, supModel := model.SetupSupervisor(execBackend, cfg.SupervisorBackend, cfg.SupervisorModel)
	if err := model.ValidateBackend(supBackend); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	if err := model.ValidateModelBackend(supBackend, supModel, "supervisor-model"); err != nil {
		return err
	}

	positive := []struct {
		name  string
		value int
	}{
		{"max-tool-steps", cfg.MaxToolSteps},
		{"max-corrective-steps", cfg.MaxCorrectiveSteps},
		{"max-repair-rounds", cfg.MaxRepairRounds},
		{"request-timeout", cfg.RequestTimeout},
		{"idle-threshold", cfg.IdleThreshold},
		{"pause-auto-resume", cfg.PauseAutoResume},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("--%s must be positive, got %d", p.name, p.value)
		}
	}
	nonNegative := []struct {
		name  string
		value int
	}{
		{"num-ctx", cfg.NumCtx},
		{"max-retries", cfg.MaxRetries},
		{"max-idle-reactivations", cfg.MaxIdleReactivations},
		{"admission-wait-ms", cfg.AdmissionWaitMS},
		{"supervisor-min-free-vram-mb", cfg.SupervisorMinFreeVRAMMB},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			return fmt.Errorf("--%s must not be negative, got %d", p.name, p.value)
		}
	}
	return nil
}

// BuildCLIOverrides creates a map of CLI flag overrides from the config.
// Uses cmd.Flags().Changed() to only include flags explicitly set by the user,
// ensuring config file values are not accidentally overridden by default values.
func BuildCLIOverrides(cmd *cobra.Command, cfg *config.Config) map[string]string {
	overrides := make(map[string]string)

	stringFlags := map[string]struct {
		key string
		val string
	}{
		"executor-backend":   {"EXECUTOR_BACKEND", cfg.ExecutorBackend},
		"executor-model":     {"EXECUTOR_MODEL", cfg.ExecutorModel},
		"executor-url":       {"EXECUTOR_BASE_URL", cfg.ExecutorBaseURL},
		"supervisor-backend": {"SUPERVISOR_BACKEND", cfg.SupervisorBackend},
		"supervisor-model":   {"SUPERVISOR_MODEL", cfg.SupervisorModel},
		"supervisor-url":     {"SUPERVISOR_BASE_URL", cfg.SupervisorBaseURL},
		"shell-policy":       {"SHELL_POLICY_FILE", cfg.ShellPolicyFile},
		"python":             {"PYTHON", cfg.Python},
		"notify-command":     {"NOTIFY_COMMAND", cfg.NotifyCommand},
		"audit-dir":          {"AUDIT_DIR", cfg.AuditDir},
		"startup-notes":      {"STARTUP_NOTES", cfg.StartupNotes},
	}
	for flag, mapping := range stringFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = mapping.val
		}
	}

	intFlags := map[string]struct {
		key string
		val int
	}{
		"num-ctx":                     {"NUM_CTX", cfg.NumCtx},
		"request-timeout":             {"REQUEST_TIMEOUT", cfg.RequestTimeout},
		"max-retries":                 {"MAX_RETRIES", cfg.MaxRetries},
		"max-tool-steps":              {"MAX_TOOL_STEPS", cfg.MaxToolSteps},
		"max-corrective-steps":        {"MAX_CORRECTIVE_STEPS", cfg.MaxCorrectiveSteps},
		"max-repair-rounds":           {"MAX_REPAIR_ROUNDS", cfg.MaxRepairRounds},
		"idle-threshold":              {"IDLE_THRESHOLD", cfg.IdleThreshold},
		"max-idle-reactivations":      {"MAX_IDLE_REACTIVATIONS", cfg.MaxIdleReactivations},
		"pause-auto-resume":           {"PAUSE_AUTO_RESUME", cfg.PauseAutoResume},
		"admission-wait-ms":           {"ADMISSION_WAIT_MS", cfg.AdmissionWaitMS},
		"supervisor-min-free-vram-mb": {"SUPERVISOR_MIN_FREE_VRAM_MB", cfg.SupervisorMinFreeVRAMMB},
	}
	for flag, mapping := range intFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = strconv.Itoa(mapping.val)
		}
	}

	boolFlags := map[string]struct {
		key string
		val bool
	}{
		"autonomous": {"AUTONOMOUS", cfg.Autonomous},
		"journal":    {"JOURNAL", cfg.Journal},
		"verbose":    {"VERBOSE", cfg.Verbose},
		"tui":        {"TUI", cfg.TUI},
	}
	for flag, mapping := range boolFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = strconv.FormatBool(mapping.val)
		}
	}

	return overrides
}

// MergeCLIOnly copies the flags that never come from config files from src
// into dst.
func MergeCLIOnly(dst, src *config.Config) {
	dst.ConfigFile = src.ConfigFile
	dst.WorkDir = src.WorkDir
	dst.Prompt = src.Prompt
	dst.IdleUntil = src.IdleUntil
	dst.Resume = src.Resume
	dst.ResumeForce = src.ResumeForce
	dst.Clean = src.Clean
	dst.ColdStart = src.ColdStart
	dst.Status = src.Status
	dst.Cancel = src.Cancel
}
