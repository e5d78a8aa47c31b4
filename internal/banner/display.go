// Package banner renders the framed status blocks of the tandem CLI.
//
// Every function writes to the given writer with color-coded headers and
// separators: the startup banner, the /status actor board, the /queue
// admission view, the --status session summary and the exit banners.
package banner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CodexForgeBR/tandem/internal/admission"
	"github.com/CodexForgeBR/tandem/internal/exitcode"
	"github.com/CodexForgeBR/tandem/internal/logging"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/state"
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

const rule = "═══════════════════════════════════════════════════"

var thinRule = strings.Repeat("─", 50)

// StartupInfo is shown when a session starts.
type StartupInfo struct {
	SessionID  string
	WorkDir    string
	Executor   string
	Supervisor string
	Autonomous bool
	Resumed    bool
}

// PrintStartupBanner displays the startup banner with session info.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  tandem - supervised local agent runtime
//	═══════════════════════════════════════════════════
//	  Session:    tandem-5d0c...
//	  Work dir:   /home/me/project
//	  Executor:   ollama/qwen3:14b
//	  Supervisor: ollama/llama3.1:8b
//	  Mode:       interactive
//	═══════════════════════════════════════════════════
func PrintStartupBanner(w io.Writer, info StartupInfo) {
	sep := headerColor(rule)
	mode := "interactive"
	if info.Autonomous {
		mode = "autonomous"
	}
	if info.Resumed {
		mode += " (resumed)"
	}
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, headerColor("  tandem - supervised local agent runtime"))
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "  Session:    %s\n", info.SessionID)
	fmt.Fprintf(w, "  Work dir:   %s\n", info.WorkDir)
	fmt.Fprintf(w, "  Executor:   %s\n", info.Executor)
	fmt.Fprintf(w, "  Supervisor: %s\n", info.Supervisor)
	fmt.Fprintf(w, "  Mode:       %s\n", mode)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, "  Type /help for commands.")
}

// PrintBoard displays the actor board and watchdog counters of st.
//
// Example output:
//
//	──────────────────────────────────────────────────
//	  ROUTER      ACTIVE          turn complete
//	  EXECUTOR    PASSIVE         answer ready
//	  ...
//	  Work state: RUNNING   Passive turns: 1   Reactivations: 0/2
//	  Plan:       3/5 tasks done (stage: implement parser)
//	──────────────────────────────────────────────────
func PrintBoard(w io.Writer, st orchestrator.Status, now time.Time) {
	fmt.Fprintln(w, thinRule)
	for _, a := range st.Actors {
		age := ""
		if !a.LastTransition.IsZero() {
			age = logging.FormatDuration(int(now.Sub(a.LastTransition).Seconds())) + " ago"
		}
		fmt.Fprintf(w, "  %-11s %-15s %s %s\n", strings.ToUpper(string(a.Actor)), a.Label, a.LastEvent, age)
	}
	wd := st.Watchdog
	fmt.Fprintf(w, "  Work state: %s   Passive turns: %d   Reactivations: %d/%d\n",
		st.WorkState, wd.PassiveTurns, wd.ReactivationAttempts, wd.MaxReactivationAttempts)
	switch {
	case wd.SuspendedUntilNewInput:
		fmt.Fprintln(w, warnColor("  Watchdog:   suspended until new input"))
	case wd.ScheduledIdleUntil.After(now):
		fmt.Fprintf(w, "  Watchdog:   idle until %s\n", wd.ScheduledIdleUntil.Format("2006-01-02 15:04"))
	}
	if st.Paused {
		fmt.Fprintf(w, "  %s since %s\n", warnColor("Paused"), st.PausedAt.Format("15:04:05"))
	}
	if st.Goal != "" {
		fmt.Fprintf(w, "  Goal:       %s\n", st.Goal)
	}
	if st.PendingGoal != "" {
		fmt.Fprintf(w, "  Pending:    %s (awaiting yes/no)\n", st.PendingGoal)
	}
	switch p := st.Plan; {
	case !p.Exists:
		fmt.Fprintln(w, "  Plan:       none")
	case p.ParseError:
		fmt.Fprintln(w, errorColor("  Plan:       unreadable"))
	default:
		fmt.Fprintf(w, "  Plan:       %d/%d tasks done", p.TasksDone, p.TasksTotal)
		if p.CurrentStage != "" {
			fmt.Fprintf(w, " (stage: %s)", p.CurrentStage)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, thinRule)
}

// PrintQueue displays the admission queue snapshot.
func PrintQueue(w io.Writer, snap admission.Snapshot) {
	fmt.Fprintln(w, thinRule)
	fmt.Fprintf(w, "  Queue length: %d   Max wait: %s   Supervisor min free VRAM: %d MB\n",
		snap.QueueLength, snap.MaxWait, snap.SupervisorMinFreeVRAMMB)
	for i, role := range snap.Queue {
		fmt.Fprintf(w, "  %d. %s\n", i+1, role)
	}
	if len(snap.RecentDecisions) > 0 {
		fmt.Fprintln(w, "  Recent decisions:")
		for _, d := range snap.RecentDecisions {
			line := fmt.Sprintf("    %s %-10s %s (queue %d)", d.Timestamp.Format("15:04:05"), d.Role, d.Decision, d.QueueLen)
			if d.RequiredMB > 0 {
				line += fmt.Sprintf(" free %d/%d MB", d.FreeMB, d.RequiredMB)
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w, thinRule)
}

// PrintStatusBanner displays a saved session for --status.
//
// Example output:
//
//	──────────────────────────────────────────────────
//	  Session:    tandem-5d0c...
//	  Status:     INTERRUPTED
//	  Updated:    2026-03-10T14:30:00Z
//	  Goal:       build the parser
//	  Work state: RUNNING
//	──────────────────────────────────────────────────
func PrintStatusBanner(w io.Writer, s *state.SessionState) {
	fmt.Fprintln(w, thinRule)
	fmt.Fprintf(w, "  Session:    %s\n", s.SessionID)
	fmt.Fprintf(w, "  Status:     %s\n", s.Status)
	fmt.Fprintf(w, "  Started:    %s\n", s.StartedAt)
	fmt.Fprintf(w, "  Updated:    %s\n", s.LastUpdated)
	fmt.Fprintf(w, "  Executor:   %s/%s\n", s.Executor.Backend, s.Executor.Model)
	fmt.Fprintf(w, "  Supervisor: %s/%s\n", s.Supervisor.Backend, s.Supervisor.Model)
	if s.Goal != "" {
		fmt.Fprintf(w, "  Goal:       %s\n", s.Goal)
	}
	if s.LastUserMessage != "" {
		fmt.Fprintf(w, "  Last input: %s\n", s.LastUserMessage)
	}
	fmt.Fprintf(w, "  Work state: %s\n", s.WorkState)
	if s.Pause.Active {
		fmt.Fprintf(w, "  Paused:     since %s\n", s.Pause.Since)
	}
	if s.ExitCode != 0 {
		fmt.Fprintf(w, "  Exit code:  %d (%s)\n", s.ExitCode, exitcode.Name(s.ExitCode))
	}
	fmt.Fprintln(w, thinRule)
}

// PrintSessionEndBanner displays the exit code and session duration.
func PrintSessionEndBanner(w io.Writer, code int, elapsed time.Duration) {
	paint := successColor
	mark := "✓"
	switch code {
	case exitcode.Success:
	case exitcode.Stalled, exitcode.Interrupted:
		paint, mark = warnColor, "⚠"
	default:
		paint, mark = errorColor, "✗"
	}
	secs := int(elapsed.Seconds())
	sep := paint(rule)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, paint(fmt.Sprintf("  %s Session ended: %s", mark, exitcode.Name(code))))
	fmt.Fprintf(w, "  Duration:   %s (%ds)\n", logging.FormatDuration(secs), secs)
	fmt.Fprintln(w, sep)
}

// PrintInterruptedBanner displays when the session is interrupted.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ⚠ Session interrupted
//	  Session:   tandem-5d0c...
//	  Use --resume to continue from this point
//	═══════════════════════════════════════════════════
func PrintInterruptedBanner(w io.Writer, sessionID string) {
	sep := warnColor(rule)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, warnColor("  ⚠ Session interrupted"))
	fmt.Fprintf(w, "  Session:   %s\n", sessionID)
	fmt.Fprintln(w, "  Use --resume to continue from this point")
	fmt.Fprintln(w, sep)
}
