package state

// SchemaVersion is written into every saved state.
const SchemaVersion = 1

// SessionState is the persisted state of a tandem session.
// Written to .tandem/current-state.json in the work dir.
type SessionState struct {
	SchemaVersion      int           `json:"schema_version"`
	SessionID          string        `json:"session_id"`
	StartedAt          string        `json:"started_at"`
	LastUpdated        string        `json:"last_updated"`
	Status             string        `json:"status"`
	WorkDir            string        `json:"work_dir"`
	Executor           ModelState    `json:"executor"`
	Supervisor         ModelState    `json:"supervisor"`
	Goal               string        `json:"goal"`
	PendingGoal        string        `json:"pending_goal"`
	LastUserMessage    string        `json:"last_user_message"`
	WorkState          string        `json:"work_state"`
	Watchdog           WatchdogState `json:"watchdog"`
	Pause              PauseState    `json:"pause"`
	PlanFingerprint    string        `json:"plan_fingerprint"`
	UnchangedPlanTurns int           `json:"unchanged_plan_turns"`
	ExitCode           int           `json:"exit_code"`
}

type ModelState struct {
	Backend string `json:"backend"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

type WatchdogState struct {
	PassiveTurns         int    `json:"passive_turns"`
	ReactivationAttempts int    `json:"reactivation_attempts"`
	Suspended            bool   `json:"suspended"`
	IdleUntil            string `json:"idle_until"`
}

type PauseState struct {
	Active bool   `json:"active"`
	Since  string `json:"since"`
}

// Status constants
const (
	StatusInProgress  = "IN_PROGRESS"
	StatusInterrupted = "INTERRUPTED"
	StatusComplete    = "COMPLETE"
	StatusCancelled   = "CANCELLED"
)
