package orchestrator

import (
	"time"

	"github.com/CodexForgeBR/tandem/internal/supervisor"
)

// WatchdogDecision is the outcome of one watchdog check.
type WatchdogDecision int

const (
	// WatchdogWait means nothing is due.
	WatchdogWait WatchdogDecision = iota
	// WatchdogReactivate means the executor should be nudged to continue.
	WatchdogReactivate
	// WatchdogSuspend means the reactivation cap was just hit.
	WatchdogSuspend
)

// Watchdog tracks idleness within one run.
type Watchdog struct {
	LastProgress            time.Time `json:"last_progress"`
	LastReactivation        time.Time `json:"last_reactivation,omitzero"`
	PassiveTurns            int       `json:"passive_turns"`
	ReactivationAttempts    int       `json:"reactivation_attempts"`
	MaxReactivationAttempts int       `json:"max_reactivation_attempts"`
	SuspendedUntilNewInput  bool      `json:"suspended_until_new_input"`
	ScheduledIdleUntil      time.Time `json:"scheduled_idle_until,omitzero"`
}

// Progress records a successful tool call.
func (w *Watchdog) Progress(now time.Time) {
	w.LastProgress = now
	w.ReactivationAttempts = 0
}

// UserInput records a new user message. It is the only way out of
// suspension.
func (w *Watchdog) UserInput(now time.Time) {
	w.Progress(now)
	w.SuspendedUntilNewInput = false
}

// IdleWindow reports whether now falls inside a scheduled idle window.
// An expired window is cleared.
func (w *Watchdog) IdleWindow(now time.Time) bool {
	if w.ScheduledIdleUntil.IsZero() {
		return false
	}
	if now.Before(w.ScheduledIdleUntil) {
		return true
	}
	w.ScheduledIdleUntil = time.Time{}
	return false
}

// Check decides whether the executor should be reactivated. Work is
// pending when there were passive turns or the plan is actionable; only
// RUNNING and STALLED work states qualify. Reactivations are spaced by
// threshold and capped at MaxReactivationAttempts, after which the
// watchdog stays suspended until UserInput.
func (w *Watchdog) Check(now time.Time, threshold time.Duration, actionablePlan bool, ws supervisor.WorkState) WatchdogDecision {
	if w.SuspendedUntilNewInput || w.IdleWindow(now) {
		return WatchdogWait
	}
	if w.PassiveTurns <= 0 && !actionablePlan {
		return WatchdogWait
	}
	if ws != supervisor.WorkRunning && ws != supervisor.WorkStalled {
		return WatchdogWait
	}
	if now.Sub(w.LastProgress) < threshold || now.Sub(w.LastReactivation) < threshold {
		return WatchdogWait
	}
	if w.ReactivationAttempts >= w.MaxReactivationAttempts {
		w.SuspendedUntilNewInput = true
		return WatchdogSuspend
	}
	w.ReactivationAttempts++
	w.LastReactivation = now
	return WatchdogReactivate
}
