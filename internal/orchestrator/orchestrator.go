// Package orchestrator drives the executor model through tool calls under
// supervisor review.
//
// One goroutine owns all state: Run reads user input, pause requests and
// watchdog ticks from channels and handles them one at a time. Every turn
// is a bounded state machine (see runTurn). Observers receive immutable
// events for display.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/CodexForgeBR/tandem/internal/audit"
	"github.com/CodexForgeBR/tandem/internal/exitcode"
	"github.com/CodexForgeBR/tandem/internal/memory"
	"github.com/CodexForgeBR/tandem/internal/notification"
	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/CodexForgeBR/tandem/internal/prompt"
	"github.com/CodexForgeBR/tandem/internal/supervisor"
	"github.com/CodexForgeBR/tandem/internal/tools"
)

// Defaults for Options.
const (
	DefaultMaxToolSteps         = 15
	DefaultMaxCorrectiveSteps   = 3
	DefaultIdleThreshold        = 45 * time.Second
	DefaultMaxIdleReactivations = 2
	DefaultPauseAutoResume      = 180 * time.Second
	DefaultTickInterval         = time.Second
)

const (
	maxCorrectionsPerTool    = 2
	maxCodePathFailures      = 2
	maxPlanPersistenceRounds = 2
	maxUnchangedPlanTurns    = 2
)

// Conversation is the executor model session. *chat.Session satisfies it.
type Conversation interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Reviewer checks and repairs executor answers. *supervisor.Supervisor
// satisfies it.
type Reviewer interface {
	Refine(ctx context.Context, userMessage, modelAnswer, stage string) supervisor.Result
}

// ToolRunner executes tool calls. *tools.Executor satisfies it.
type ToolRunner interface {
	Execute(ctx context.Context, call parser.ToolCall) tools.Result
	IsSupported(tool string) bool
	SupportedTools() []string
}

// Options tunes the loop. Zero values take the defaults.
type Options struct {
	MaxToolSteps         int
	MaxCorrectiveSteps   int
	IdleThreshold        time.Duration
	MaxIdleReactivations int
	PauseAutoResume      time.Duration
	TickInterval         time.Duration

	// Interactive enables the idle watchdog.
	Interactive bool
}

func (opts Options) withDefaults() Options {
	if opts.MaxToolSteps <= 0 {
		opts.MaxToolSteps = DefaultMaxToolSteps
	}
	if opts.MaxCorrectiveSteps <= 0 {
		opts.MaxCorrectiveSteps = DefaultMaxCorrectiveSteps
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.MaxIdleReactivations < 0 {
		opts.MaxIdleReactivations = 0
	} else if opts.MaxIdleReactivations == 0 {
		opts.MaxIdleReactivations = DefaultMaxIdleReactivations
	}
	if opts.PauseAutoResume <= 0 {
		opts.PauseAutoResume = DefaultPauseAutoResume
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return opts
}

// InputKind classifies messages sent to Run.
type InputKind int

const (
	InputMessage InputKind = iota
	InputPause
	InputIdleUntil
	InputStatus
)

// Input is one message for the orchestrator goroutine.
type Input struct {
	Kind  InputKind
	Text  string
	Until time.Time
}

type pauseState struct {
	Active   bool
	Identity bool
	Since    time.Time
	Reason   string
}

// Orchestrator owns the runtime state of one session. Reviewer, Memory,
// Activity and Notifier are optional.
type Orchestrator struct {
	Chat     Conversation
	Reviewer Reviewer
	Tools    ToolRunner
	Plan     *plan.Store
	Memory   *memory.Store
	Activity *audit.ActivityLog
	Notifier *notification.Sender
	WorkDir  string
	Options  Options

	now       func() time.Time
	observers []Observer
	actors    map[Actor]ActorState

	watchdog        Watchdog
	workState       supervisor.WorkState
	pause           pauseState
	pauseRequested  atomic.Bool
	pendingGoal     string
	goal            string
	lastUserMessage string

	unchangedPlanTurns int
	codePathFailures   int
	stalled            bool
	transportFailed    bool

	unaddressedTurns int
	remindersSent    int
	pendingReminder  string
	lastFileRef      string
}

// New returns an orchestrator for workDir.
func New(workDir string, chat Conversation, runner ToolRunner, opts Options) *Orchestrator {
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	o := &Orchestrator{
		Chat:      chat,
		Tools:     runner,
		Plan:      plan.NewStore(workDir),
		WorkDir:   workDir,
		Options:   opts.withDefaults(),
		now:       time.Now,
		actors:    make(map[Actor]ActorState, len(Actors)),
		workState: supervisor.WorkRunning,
	}
	o.watchdog.MaxReactivationAttempts = o.Options.MaxIdleReactivations
	for _, a := range Actors {
		o.actors[a] = ActorState{Actor: a, Label: "READY"}
	}
	return o
}

// Observe registers obs. Call before Run.
func (o *Orchestrator) Observe(obs Observer) {
	o.observers = append(o.observers, obs)
}

// RequestPause asks the loop to pause at the next step boundary. It is
// safe to call from any goroutine.
func (o *Orchestrator) RequestPause() {
	o.pauseRequested.Store(true)
}

// Run handles inputs and watchdog ticks until inputs is closed or ctx is
// done.
func (o *Orchestrator) Run(ctx context.Context, inputs <-chan Input) error {
	o.watchdog.Progress(o.now())
	o.setActor(ActorTerminal, "WAITING_INPUT", "session started")
	o.Activity.Log("session.start", "start the orchestrator loop", map[string]any{
		"work_dir":    o.WorkDir,
		"interactive": o.Options.Interactive,
	})
	o.repairPlan()

	ticker := time.NewTicker(o.Options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-inputs:
			if !ok {
				return nil
			}
			o.handleInput(ctx, in)
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

func (o *Orchestrator) handleInput(ctx context.Context, in Input) {
	switch in.Kind {
	case InputPause:
		o.enterPause("user_pause", false)
		o.notice("Plan paused." + pauseQuestion)
	case InputIdleUntil:
		o.SetIdleUntil(in.Until)
	case InputStatus:
		st := o.Status()
		o.emit(Event{Kind: EventStatus, Status: &st})
	default:
		o.HandleMessage(ctx, in.Text)
	}
}

// SetIdleUntil schedules an idle window; a zero time clears it.
func (o *Orchestrator) SetIdleUntil(until time.Time) {
	o.watchdog.ScheduledIdleUntil = until
	if until.IsZero() {
		o.setActor(ActorRouter, "ACTIVE", "idle window cleared")
		o.notice("Idle window cleared.")
		return
	}
	o.setActor(ActorRouter, "IDLE_WINDOW_SET", "idle until "+until.Format(time.RFC3339))
	o.notice("Watchdog idle until " + until.Format("2006-01-02 15:04") + ".")
}

// HandleMessage processes one user message: pause decisions, goal
// capture, interrupts and regular turns.
func (o *Orchestrator) HandleMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.watchdog.SuspendedUntilNewInput {
		o.notice("Watchdog re-armed by new input.")
	}
	o.watchdog.UserInput(o.now())
	o.setActor(ActorTerminal, "INPUT_READY", "message sent to the router")

	decision := ParseDecision(text)
	if o.pause.Active {
		switch decision {
		case DecisionContinue:
			o.Activity.Log("pause.decision", "user asked to continue the paused plan", nil)
			o.resume(ctx, "user_resume")
			return
		case DecisionStop:
			o.clearPause("user_stop")
			o.notice("Plan stopped. Give a new task to start a new plan.")
			return
		}
		// auto-resume counts from the last message, not from the pause
		o.pause.Since = o.now()
	}
	switch {
	case decision == DecisionNewTask:
		o.clearPause("new_task")
		o.startNewTask(text)
		return
	case decision == DecisionStop:
		o.enterPause("user_stop", false)
		o.notice("Plan paused." + pauseQuestion)
		return
	case IsPauseSignal(text):
		o.enterPause("user_pause", false)
		o.notice("Plan paused." + pauseQuestion)
		return
	}

	if o.readDirective(ctx, text) {
		return
	}
	if o.captureGoal(ctx, text) {
		return
	}
	if IsConversationalInterrupt(text) {
		o.interrupt(ctx, text)
		return
	}
	o.userTurn(ctx, text, text, "user_turn")
}

// captureGoal runs the goal confirmation dialogue. It reports whether
// text was consumed.
func (o *Orchestrator) captureGoal(ctx context.Context, text string) bool {
	if o.pendingGoal != "" {
		switch {
		case plan.IsConfirmation(text):
			o.confirmGoal(ctx)
			return true
		case plan.IsRejection(text):
			o.pendingGoal = ""
			o.Activity.Log("goal.rejected", "user rejected the goal paraphrase", nil)
			o.notice(`Goal candidate dropped. State a new goal, e.g. "your goal is ...".`)
			return true
		}
	}
	if goal, ok := plan.ExtractGoalCandidate(text); ok {
		o.pendingGoal = goal
		o.Activity.Log("goal.candidate", "ask the user to confirm the goal paraphrase", map[string]any{"goal_candidate": goal})
		o.notice(fmt.Sprintf("Do I understand correctly that my main goal is: %s? Answer yes or no.", goal))
		return true
	}
	if o.pendingGoal != "" {
		o.notice("Waiting for goal confirmation: answer yes or no.")
		return true
	}
	return false
}

func (o *Orchestrator) confirmGoal(ctx context.Context) {
	goal := o.pendingGoal
	o.pendingGoal = ""
	if err := o.Plan.UpsertGoal(goal); err != nil {
		o.emit(Event{Kind: EventError, Text: fmt.Sprintf("could not record the goal: %v", err)})
		return
	}
	o.goal = goal
	o.unchangedPlanTurns = 0
	if o.Memory != nil {
		_ = o.Memory.Add(memory.KindGoal, "orchestrator", goal)
	}
	o.Activity.Log("goal.confirmed", "user confirmed the main goal; plan updated", map[string]any{
		"goal":      goal,
		"plan_path": o.Plan.Path(),
	})
	o.notice("Main goal registered: " + goal)
	o.userTurn(ctx, prompt.BuildGoalPlanningPrompt(goal, o.Tools.SupportedTools()), goal, "goal_planning")
}

func (o *Orchestrator) startNewTask(text string) {
	goal, ok := NewTaskGoal(text)
	if !ok {
		goal = "New task from the user"
	}
	o.pendingGoal = ""
	err := o.Plan.UpsertGoal(goal)
	if err == nil {
		_, err = o.Plan.EnsureSeedTask(goal)
	}
	if err != nil {
		o.emit(Event{Kind: EventError, Text: fmt.Sprintf("could not create the new plan: %v", err)})
		return
	}
	o.goal = goal
	o.unchangedPlanTurns = 0
	if o.Memory != nil {
		_ = o.Memory.Add(memory.KindGoal, "new_task", goal)
	}
	o.Activity.Log("plan.new_task", "user replaced the plan with a new task", map[string]any{"goal": goal})
	o.notice("Created a new plan. Send the next instruction to start working on it.")
}

// interrupt answers a meta-question in paused mode: no tools run and the
// reply ends with the pause question.
func (o *Orchestrator) interrupt(ctx context.Context, text string) {
	identity := IsIdentityQuery(text)
	o.enterPause("user_interrupt", identity)

	reply := IdentityReply
	if !identity {
		o.setActor(ActorExecutor, "THINKING", "answering an interrupt")
		answer, err := o.Chat.Ask(ctx, text)
		if err != nil {
			o.fail(ctx, err)
			return
		}
		answer = o.supervise(ctx, text, answer, "interrupt_user_turn")
		if len(parser.Parse(answer)) == 0 {
			reply = firstSentence(answer)
		}
		o.setActor(ActorExecutor, "PASSIVE", "interrupt answered")
	}
	o.emit(Event{Kind: EventAnswer, Text: reply + pauseQuestion})
	o.setActor(ActorTerminal, "WAITING_INPUT", "waiting for a decision")
}

func (o *Orchestrator) enterPause(reason string, identity bool) {
	o.pause = pauseState{Active: true, Identity: identity, Since: o.now(), Reason: reason}
	o.Activity.Log("pause.enter", "plan paused until the user decides", map[string]any{
		"reason":   reason,
		"identity": identity,
	})
	o.setActor(ActorRouter, "PAUSED", reason)
}

func (o *Orchestrator) clearPause(reason string) {
	if !o.pause.Active {
		return
	}
	o.pause = pauseState{}
	o.Activity.Log("pause.leave", "plan pause cleared", map[string]any{"reason": reason})
	o.setActor(ActorRouter, "ACTIVE", reason)
}

// Tick runs the periodic checks: pending pause requests, auto-resume of a
// paused plan and the idle watchdog.
func (o *Orchestrator) Tick(ctx context.Context) {
	now := o.now()
	if o.pauseRequested.Swap(false) {
		o.enterPause("interrupt_signal", false)
		o.notice("Plan paused." + pauseQuestion)
		return
	}
	if o.pause.Active {
		if !o.pause.Identity && now.Sub(o.pause.Since) >= o.Options.PauseAutoResume {
			o.resume(ctx, "auto_resume_after_idle")
		}
		return
	}
	if !o.Options.Interactive {
		return
	}

	snap := o.Plan.Snapshot()
	if snap.ParseError {
		o.repairPlan()
		snap = o.Plan.Snapshot()
	}
	switch o.watchdog.Check(now, o.Options.IdleThreshold, snap.Actionable(), o.workState) {
	case WatchdogReactivate:
		o.reactivate(ctx)
	case WatchdogSuspend:
		o.Activity.Log("idle.reactivation.capped", "watchdog suspended until new user input", map[string]any{
			"max_attempts": o.watchdog.MaxReactivationAttempts,
			"work_state":   o.workState,
		})
		o.setActor(ActorRouter, "SUSPENDED", "watchdog waits for new input")
		o.notice(fmt.Sprintf("Stopping automatic reactivation after %d attempts. Waiting for your decision or new input.", o.watchdog.MaxReactivationAttempts))
		o.Notifier.Notify(notification.EventReactivationCapped, fmt.Sprint(o.watchdog.MaxReactivationAttempts))
	}
}

func (o *Orchestrator) reactivate(ctx context.Context) {
	last := o.lastUserMessage
	if last == "" {
		last = "continue"
	}
	o.Activity.Log("idle.reactivation.start", "reactivate the executor after inactivity", map[string]any{
		"idle_threshold_seconds": int(o.Options.IdleThreshold.Seconds()),
		"passive_turns":          o.watchdog.PassiveTurns,
		"attempt":                o.watchdog.ReactivationAttempts,
		"max_attempts":           o.watchdog.MaxReactivationAttempts,
	})
	o.setActor(ActorRouter, "WATCHDOG", fmt.Sprintf("reactivation %d/%d", o.watchdog.ReactivationAttempts, o.watchdog.MaxReactivationAttempts))
	o.turn(ctx, prompt.BuildIdleReactivation(last, o.Tools.SupportedTools()), last, "idle_reactivation")
}

func (o *Orchestrator) resume(ctx context.Context, reason string) {
	o.clearPause(reason)
	o.setActor(ActorRouter, "RESUMING", reason)
	last := o.lastUserMessage
	if last == "" {
		last = "continue"
	}
	o.turn(ctx, prompt.BuildResumePrompt(o.Tools.SupportedTools()), last, "interrupt_resume")
}

// userTurn handles a message typed by the user.
func (o *Orchestrator) userTurn(ctx context.Context, message, userMessage, stage string) {
	o.lastUserMessage = userMessage
	o.turn(ctx, message, userMessage, stage)
}

// turn runs message through the state machine and then applies the plan
// invariants.
func (o *Orchestrator) turn(ctx context.Context, message, userMessage, stage string) {
	o.repairPlan()
	before := o.Plan.Fingerprint()
	o.stalled = false
	o.setActor(ActorRouter, "ACTIVE", stage)

	out, err := o.runTurn(ctx, o.withReminder(message), userMessage, stage, o.Options.MaxToolSteps)
	if err != nil {
		o.fail(ctx, err)
		return
	}
	if out.executed {
		o.watchdog.PassiveTurns = 0
	} else {
		o.watchdog.PassiveTurns++
	}

	answer := out.answer
	if o.goalBearing() && !out.paused {
		if answer, err = o.ensurePlanPersisted(ctx, userMessage, answer); err != nil {
			o.fail(ctx, err)
			return
		}
		if answer, err = o.trackPlanProgress(ctx, userMessage, before, answer); err != nil {
			o.fail(ctx, err)
			return
		}
	}
	o.finishTurn(answer)
}

func (o *Orchestrator) finishTurn(answer string) {
	o.transportFailed = false
	o.emit(Event{Kind: EventAnswer, Text: o.routeAnswer(answer)})
	switch {
	case o.pause.Active:
	case o.workState.Waiting():
		o.enterPause("supervisor_"+strings.ToLower(string(o.workState)), false)
	case parser.AwaitsUser(answer):
		o.enterPause("model_awaits_user", false)
	case !o.stalled:
		o.setActor(ActorRouter, "ACTIVE", "turn complete")
	}
	o.setActor(ActorTerminal, "WAITING_INPUT", "turn complete")
	st := o.Status()
	o.emit(Event{Kind: EventStatus, Status: &st})
}

// fail reports a turn-level failure. Cancellation is not a transport
// failure.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		o.setActor(ActorRouter, "CANCELLED", "turn cancelled")
		return
	}
	o.transportFailed = true
	o.Activity.Log("chat.error", "turn failed", map[string]any{"error": err.Error()})
	o.setActor(ActorRouter, "ERROR", "turn failed")
	o.setActor(ActorExecutor, "READY", "turn failed")
	o.emit(Event{Kind: EventError, Text: err.Error()})
	o.Notifier.Notify(notification.EventTransportFailed, err.Error())
}

func (o *Orchestrator) currentGoal() string {
	if o.goal != "" {
		return o.goal
	}
	return o.Plan.Snapshot().Goal
}

func (o *Orchestrator) goalBearing() bool {
	return o.currentGoal() != ""
}

// Status returns the current runtime view.
func (o *Orchestrator) Status() Status {
	actors := make([]ActorState, 0, len(Actors))
	for _, a := range Actors {
		actors = append(actors, o.actors[a])
	}
	return Status{
		Actors:          actors,
		Watchdog:        o.watchdog,
		WorkState:       o.workState,
		Paused:          o.pause.Active,
		PausedAt:        o.pause.Since,
		PendingGoal:     o.pendingGoal,
		Goal:            o.currentGoal(),
		LastUserMessage: o.lastUserMessage,
		UnchangedPlan:   o.unchangedPlanTurns,
		PlanFingerprint: o.Plan.Fingerprint(),
		Plan:            o.Plan.Snapshot(),
		Stalled:         o.stalled,
		TransportFailed: o.transportFailed,
	}
}

// Restore applies a saved Status from an earlier session. A saved pause is
// restored without the identity flag so it can auto-resume.
func (o *Orchestrator) Restore(st Status) {
	o.goal = st.Goal
	o.pendingGoal = st.PendingGoal
	o.lastUserMessage = st.LastUserMessage
	o.unchangedPlanTurns = st.UnchangedPlan
	o.workState = supervisor.NormalizeWorkState(string(st.WorkState))
	o.watchdog.PassiveTurns = st.Watchdog.PassiveTurns
	o.watchdog.ScheduledIdleUntil = st.Watchdog.ScheduledIdleUntil
	if st.Paused {
		o.pause = pauseState{Active: true, Since: o.now(), Reason: "restored"}
	}
}

// ExitCode maps the session outcome onto a process exit code.
func (o *Orchestrator) ExitCode() int {
	switch {
	case o.transportFailed:
		return exitcode.TransportFailed
	case o.stalled:
		return exitcode.Stalled
	}
	return exitcode.Success
}
