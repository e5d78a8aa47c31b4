package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/CodexForgeBR/tandem/internal/banner"
	"github.com/CodexForgeBR/tandem/internal/config"
	"github.com/CodexForgeBR/tandem/internal/exitcode"
	"github.com/CodexForgeBR/tandem/internal/logging"
	"github.com/CodexForgeBR/tandem/internal/notification"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/schedule"
	sighandler "github.com/CodexForgeBR/tandem/internal/signal"
	"github.com/CodexForgeBR/tandem/internal/state"
	"github.com/CodexForgeBR/tandem/internal/tui"
	"github.com/spf13/cobra"
)

// summaryTimeout bounds the session summary request at exit.
const summaryTimeout = 90 * time.Second

func run(cmd *cobra.Command, flags *config.Config) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logging.SetVerbose(cfg.Verbose)
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil {
		logging.SetWrapWidth(cols - 2)
	}

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}
	stateDir := state.Dir(workDir)

	switch {
	case cfg.Status:
		return showStatus(stateDir)
	case cfg.Cancel:
		return cancelSession(stateDir)
	case cfg.Clean:
		if err := os.RemoveAll(stateDir); err != nil {
			return fmt.Errorf("clean state: %w", err)
		}
		logging.Info("Cleaned session state in " + stateDir)
	}

	session, err := openSession(cfg, workDir, stateDir)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, workDir, session)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Resume {
		rt.orch.Restore(session.OrchestratorStatus())
	}
	if cfg.IdleUntil != "" {
		until, err := schedule.ParseIdleUntil(cfg.IdleUntil, time.Now())
		if err != nil {
			return err
		}
		rt.orch.SetIdleUntil(until)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interrupted atomic.Bool
	callbacks := sighandler.Callbacks{
		OnInterrupt: func() {
			interrupted.Store(true)
			logging.Warn("Interrupted - saving state...")
		},
	}
	if cfg.Prompt == "" {
		callbacks.OnPause = func() {
			rt.orch.RequestPause()
			logging.Warn("Pause requested. Press Ctrl+C again to stop.")
		}
	}
	sighandler.SetupSignalHandler(ctx, cancel, callbacks)

	// Status events are emitted on the orchestrator goroutine after every
	// turn, so saving here never races with the loop.
	rt.orch.Observe(func(ev orchestrator.Event) {
		if ev.Kind != orchestrator.EventStatus || ev.Status == nil {
			return
		}
		session.Capture(*ev.Status, time.Now())
		if err := state.SaveState(session, stateDir); err != nil {
			logging.Debug("save state: " + err.Error())
		}
	})

	started := time.Now()
	if !cfg.TUI {
		banner.PrintStartupBanner(os.Stdout, banner.StartupInfo{
			SessionID:  session.SessionID,
			WorkDir:    workDir,
			Executor:   session.Executor.Backend + "/" + session.Executor.Model,
			Supervisor: session.Supervisor.Backend + "/" + session.Supervisor.Model,
			Autonomous: cfg.Autonomous,
			Resumed:    cfg.Resume,
		})
	}

	var runErr error
	switch {
	case cfg.Prompt != "":
		runErr = runOnce(ctx, rt, cfg.Prompt)
	case cfg.TUI:
		runErr = runTUI(ctx, rt, session.SessionID)
	default:
		runErr = runConsole(ctx, rt)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logging.Error(runErr.Error())
	}

	code := rt.orch.ExitCode()
	status := state.StatusComplete
	if interrupted.Load() {
		code = exitcode.Interrupted
		status = state.StatusInterrupted
	}

	session.Capture(rt.orch.Status(), time.Now())
	session.Status = status
	session.ExitCode = code
	if err := state.SaveState(session, stateDir); err != nil {
		logging.Warn("Could not save state: " + err.Error())
	}

	rt.activity.Log("session.end", "record the session outcome", map[string]any{
		"exit_code":   code,
		"status":      status,
		"allow_all":   rt.perms.AllowAll(),
		"permissions": rt.perms.Granted(),
	})
	if interrupted.Load() {
		rt.notifier.Notify(notification.EventInterrupted, "session "+session.SessionID)
		banner.PrintInterruptedBanner(os.Stdout, session.SessionID)
	} else {
		summarize(rt)
	}
	rt.notifier.Notify(notification.EventSessionEnd, exitcode.Name(code))
	banner.PrintSessionEndBanner(os.Stdout, code, time.Since(started))

	rt.Close()
	os.Exit(code)
	return nil // unreachable
}

func showStatus(stateDir string) error {
	s, err := state.LoadState(stateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("No session state found.")
			return nil
		}
		return err
	}
	banner.PrintStatusBanner(os.Stdout, s)
	return nil
}

func cancelSession(stateDir string) error {
	s, err := state.LoadState(stateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("No session to cancel.")
			return nil
		}
		return err
	}
	s.Status = state.StatusCancelled
	s.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if err := state.SaveState(s, stateDir); err != nil {
		return err
	}
	logging.Success("Cancelled session " + s.SessionID)
	return nil
}

// openSession resumes the saved session when asked to, otherwise starts a
// new one. The model endpoints are recorded either way.
func openSession(cfg *config.Config, workDir, stateDir string) (*state.SessionState, error) {
	if err := state.InitStateDir(stateDir); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	var s *state.SessionState
	if cfg.Resume {
		existing, err := state.LoadState(stateDir)
		if err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		if err := state.ResumeFromState(existing, workDir, cfg.ResumeForce); err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		logging.Info("Resuming session " + existing.SessionID)
		s = existing
	} else {
		s = state.NewSessionState(workDir, time.Now())
	}

	execBackend, execModel, execURL := executorEndpoint(cfg)
	supBackend, supModel, supURL := supervisorEndpoint(cfg)
	s.Executor = state.ModelState{Backend: execBackend, Model: execModel, BaseURL: execURL}
	s.Supervisor = state.ModelState{Backend: supBackend, Model: supModel, BaseURL: supURL}

	if err := state.SaveState(s, stateDir); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	return s, nil
}

// runOnce handles a single prompt without the watchdog and returns when
// the turn is finished.
func runOnce(ctx context.Context, rt *runtime, prompt string) error {
	rt.inputs <- orchestrator.Input{Kind: orchestrator.InputMessage, Text: prompt}
	close(rt.inputs)
	return rt.orch.Run(ctx, rt.inputs)
}

func runConsole(ctx context.Context, rt *runtime) error {
	rt.orch.Observe(rt.console.Observe)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := rt.console.ReadLoop(runCtx, os.Stdin); err != nil {
			logging.Error("read input: " + err.Error())
		}
		stop()
	}()

	err := rt.orch.Run(runCtx, rt.inputs)
	if ctx.Err() == nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runTUI(ctx context.Context, rt *runtime, sessionID string) error {
	logging.SetOutput(rt.outbox, rt.outbox)
	defer logging.SetOutput(os.Stdout, os.Stderr)

	events := make(chan orchestrator.Event, 256)
	rt.orch.Observe(func(ev orchestrator.Event) {
		select {
		case events <- ev:
		case <-rt.console.Done():
		}
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	plans, err := rt.orch.Plan.Watch(runCtx)
	if err != nil {
		logging.Warn("Plan watcher disabled: " + err.Error())
	}

	done := make(chan error, 1)
	go func() { done <- rt.orch.Run(runCtx, rt.inputs) }()

	model := tui.New(rt.console, rt.outbox, rt.orch.RequestPause, "tandem "+sessionID)
	uiErr := tui.Run(ctx, model, events, plans)
	rt.console.Close()
	stop()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(uiErr, context.Canceled) {
		return nil
	}
	return uiErr
}

func summarize(rt *runtime) {
	logging.Phase("Summarizing session")
	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()
	summary, err := rt.chat.Summarize(ctx)
	if err != nil {
		logging.Warn("Session summary failed: " + err.Error())
		return
	}
	if summary != "" {
		logging.Debug("Session summary stored in " + rt.memory.Path())
	}
}
