// Package state persists tandem session state so an interrupted session can
// be inspected, cancelled or resumed.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/CodexForgeBR/tandem/internal/supervisor"
	"github.com/google/uuid"
)

// DirName is the state directory inside the work dir.
const DirName = ".tandem"

const stateFileName = "current-state.json"

// Dir returns the state directory for workDir.
func Dir(workDir string) string {
	return filepath.Join(workDir, DirName)
}

// NewSessionState returns a fresh IN_PROGRESS state with a new session id.
func NewSessionState(workDir string, now time.Time) *SessionState {
	ts := now.UTC().Format(time.RFC3339)
	return &SessionState{
		SchemaVersion: SchemaVersion,
		SessionID:     "tandem-" + uuid.NewString(),
		StartedAt:     ts,
		LastUpdated:   ts,
		Status:        StatusInProgress,
		WorkDir:       workDir,
	}
}

// SaveState persists the session state as indented JSON.
func SaveState(s *SessionState, dir string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	path := filepath.Join(dir, stateFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// LoadState reads and parses the session state from the state directory.
func LoadState(dir string) (*SessionState, error) {
	path := filepath.Join(dir, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &s, nil
}

// ValidateState checks that the state still matches the work dir:
//   - The work dir exists
//   - The plan file has not changed since the state was saved
func ValidateState(s *SessionState, workDir string) error {
	if _, err := os.Stat(workDir); err != nil {
		return fmt.Errorf("work dir not found: %w", err)
	}
	current := plan.NewStore(workDir).Fingerprint()
	if s.PlanFingerprint != "" && s.PlanFingerprint != current {
		return fmt.Errorf("plan changed: expected fingerprint %s, got %s", short(s.PlanFingerprint), short(current))
	}
	return nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	if fp == "" {
		return "<none>"
	}
	return fp
}

// InitStateDir creates the state directory if it doesn't exist.
func InitStateDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Capture copies the orchestrator status into s and stamps LastUpdated.
func (s *SessionState) Capture(st orchestrator.Status, now time.Time) {
	s.Goal = st.Goal
	s.PendingGoal = st.PendingGoal
	s.LastUserMessage = st.LastUserMessage
	s.WorkState = string(st.WorkState)
	s.Watchdog = WatchdogState{
		PassiveTurns:         st.Watchdog.PassiveTurns,
		ReactivationAttempts: st.Watchdog.ReactivationAttempts,
		Suspended:            st.Watchdog.SuspendedUntilNewInput,
		IdleUntil:            formatTime(st.Watchdog.ScheduledIdleUntil),
	}
	s.Pause = PauseState{Active: st.Paused}
	if st.Paused {
		s.Pause.Since = formatTime(st.PausedAt)
	}
	s.PlanFingerprint = st.PlanFingerprint
	s.UnchangedPlanTurns = st.UnchangedPlan
	s.LastUpdated = now.UTC().Format(time.RFC3339)
}

// OrchestratorStatus returns the part of s that an orchestrator restores.
func (s *SessionState) OrchestratorStatus() orchestrator.Status {
	st := orchestrator.Status{
		Goal:            s.Goal,
		PendingGoal:     s.PendingGoal,
		LastUserMessage: s.LastUserMessage,
		WorkState:       supervisor.NormalizeWorkState(s.WorkState),
		Paused:          s.Pause.Active,
		UnchangedPlan:   s.UnchangedPlanTurns,
		PlanFingerprint: s.PlanFingerprint,
	}
	st.Watchdog.PassiveTurns = s.Watchdog.PassiveTurns
	if t, err := time.Parse(time.RFC3339, s.Watchdog.IdleUntil); err == nil {
		st.Watchdog.ScheduledIdleUntil = t
	}
	return st
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
