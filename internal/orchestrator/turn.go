package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/memory"
	"github.com/CodexForgeBR/tandem/internal/notification"
	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/prompt"
	"github.com/CodexForgeBR/tandem/internal/tools"
)

// turnState is a state of the per-turn machine:
//
//	AWAITING_MODEL -> HAS_CANDIDATE -> SUPERVISED_REVIEW
//	SUPERVISED_REVIEW -> RESOLVING_TOOLS -> AWAITING_MODEL
//	SUPERVISED_REVIEW -> AWAITING_MODEL (corrective) | TURN_COMPLETE
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateHasCandidate
	stateSupervisedReview
	stateResolvingTools
	stateTurnComplete
)

var stateNames = map[turnState]string{
	stateAwaitingModel:    "AWAITING_MODEL",
	stateHasCandidate:     "HAS_CANDIDATE_ANSWER",
	stateSupervisedReview: "SUPERVISED_REVIEW",
	stateResolvingTools:   "RESOLVING_TOOLS",
	stateTurnComplete:     "TURN_COMPLETE",
}

func (s turnState) String() string {
	return stateNames[s]
}

const (
	fallbackFollowUp = "Answer the user based on this result."
	stallWarning     = "[stalled] The tool step limit (%d) was reached before the work finished. Send a message to continue."
	withheldNote     = "[paused] No tools were run. Waiting for your decision."
)

// turnOutcome is what a finished turn hands back.
type turnOutcome struct {
	answer   string
	executed bool
	stalled  bool
	// paused is set when the turn itself paused the plan.
	paused bool
}

// verification is a write that must be read back before other calls run.
type verification struct {
	path string
	tool string
}

// turnRun is the mutable state of one runTurn call.
type turnRun struct {
	userMessage string
	prompt      string
	stage       string
	answer      string
	calls       []parser.ToolCall

	// forced calls were produced by the orchestrator and skip review.
	forced   bool
	followUp string

	steps           int
	corrected       bool
	fallbackUsed    bool
	unknownAttempts map[string]int
	verify          *verification
	out             turnOutcome
}

// next queues msg for the executor and counts one step.
func (t *turnRun) next(msg, stage string) turnState {
	t.prompt = msg
	t.stage = stage
	t.steps++
	return stateAwaitingModel
}

// runTurn drives one message to a final answer. maxSteps bounds the
// follow-up exchanges; exceeding it returns the current answer with a
// stall warning. Only executor transport errors are returned.
func (o *Orchestrator) runTurn(ctx context.Context, message, userMessage, stage string, maxSteps int) (turnOutcome, error) {
	t := &turnRun{
		userMessage:     userMessage,
		prompt:          message,
		stage:           stage,
		unknownAttempts: make(map[string]int),
	}

	state := stateAwaitingModel
	for {
		switch state {
		case stateAwaitingModel:
			if t.steps > maxSteps {
				o.stall(t, maxSteps)
				state = stateTurnComplete
				continue
			}
			if o.pauseRequested.Swap(false) {
				o.enterPause("interrupt_signal", false)
				t.out.paused = true
				t.out.answer = strings.TrimSpace(t.answer + "\n\nPlan paused." + pauseQuestion)
				state = stateTurnComplete
				continue
			}
			o.setActor(ActorExecutor, "THINKING", t.stage)
			answer, err := o.Chat.Ask(ctx, t.prompt)
			if err != nil {
				return t.out, err
			}
			t.answer = answer
			state = stateHasCandidate

		case stateHasCandidate:
			o.setActor(ActorExecutor, "READY", "candidate answer")
			state = stateSupervisedReview

		case stateSupervisedReview:
			t.answer = o.supervise(ctx, t.userMessage, t.answer, t.stage)
			t.calls = parser.Parse(t.answer)
			if o.workState.Waiting() {
				o.holdForUser(t)
				state = stateTurnComplete
				continue
			}
			if len(t.calls) > 0 {
				state = stateResolvingTools
				continue
			}
			state = o.resolveDefect(ctx, t)

		case stateResolvingTools:
			state = o.resolveTools(ctx, t)

		case stateTurnComplete:
			if t.out.answer == "" {
				t.out.answer = t.answer
			}
			if !t.out.stalled {
				o.setActor(ActorExecutor, "PASSIVE", "turn complete")
			}
			return t.out, nil
		}
	}
}

// holdForUser pauses the plan when the reviewer reports that the work
// waits on the operator. Pending calls are not executed.
func (o *Orchestrator) holdForUser(t *turnRun) {
	o.enterPause("supervisor_"+strings.ToLower(string(o.workState)), false)
	t.out.paused = true
	if len(t.calls) == 0 {
		return
	}
	o.Activity.Log("tool_call.withheld", "work waits on the user; calls not executed", map[string]any{
		"work_state": string(o.workState),
		"tools":      toolNames(t.calls),
	})
	t.out.answer = strings.TrimSpace(t.answer + "\n\n" + withheldNote)
}

func (o *Orchestrator) stall(t *turnRun, maxSteps int) {
	o.stalled = true
	t.out.stalled = true
	warning := fmt.Sprintf(stallWarning, maxSteps)
	t.out.answer = strings.TrimSpace(t.answer + "\n\n" + warning)
	o.Activity.Log("tool_flow.stalled", "tool step limit reached; returning the current answer", map[string]any{
		"stage":     t.stage,
		"max_steps": maxSteps,
	})
	o.setActor(ActorRouter, "STALLED", fmt.Sprintf("step limit %d reached", maxSteps))
	o.Notifier.Notify(notification.EventStalled, fmt.Sprintf("max tool steps (%d) reached in %s", maxSteps, t.stage))
}

// resolveDefect handles a reviewed answer without executable calls. A
// recognized malformed pattern gets one corrective re-prompt, then one
// read-only list_dir fallback.
func (o *Orchestrator) resolveDefect(ctx context.Context, t *turnRun) turnState {
	if parser.AwaitsUser(t.answer) {
		return stateTurnComplete
	}
	defect := parser.Classify(t.answer)
	if defect == parser.DefectNone {
		return stateTurnComplete
	}

	preview := t.answer
	if runes := []rune(preview); len(runes) > 400 {
		preview = string(runes[:400])
	}
	o.Activity.Log("tool_call.pseudo_rejected", "answer held no executable call; correcting", map[string]any{
		"reason":         string(defect),
		"answer_preview": preview,
		"answer_chars":   len(t.answer),
	})

	if !t.corrected {
		t.corrected = true
		return t.next(prompt.BuildDefectCorrective(defect, t.userMessage, o.Tools.SupportedTools()), string(defect)+"_corrective")
	}
	if t.fallbackUsed {
		return stateTurnComplete
	}
	t.fallbackUsed = true

	call, _ := parser.NewToolCall("list_dir", map[string]any{"path": "."}, "fallback_start")
	o.Activity.Log("tool_call.fallback.request", "run the safe read-only step after a failed correction", map[string]any{"tool": call.Tool})
	res := o.Tools.Execute(ctx, call)
	o.Activity.Log("tool_call.fallback.result", "safe fallback finished", map[string]any{"tool": call.Tool, "ok": res.OK})
	if !res.OK {
		t.out.answer = prompt.ToolResolutionFailed
		return stateTurnComplete
	}
	o.watchdog.Progress(o.now())
	t.out.executed = true
	payload := tools.CompactPayload([]tools.Outcome{{Tool: call.Tool, Intent: call.Intent, Result: res}})
	return t.next(prompt.BuildToolResultMessage(payload, fallbackFollowUp), "safe_fallback")
}

// resolveTools executes the current batch and prepares the follow-up.
func (o *Orchestrator) resolveTools(ctx context.Context, t *turnRun) turnState {
	calls := t.calls
	forced := t.forced
	t.forced = false

	if t.verify != nil && !forced && !o.verifies(calls, t.verify) {
		o.Activity.Log("tool_call.refused", "calls refused until the written file is verified", map[string]any{
			"path":  t.verify.path,
			"tools": toolNames(calls),
		})
		return t.next(prompt.BuildVerificationCorrective(t.verify.path, t.verify.tool), "verification_corrective")
	}

	o.setActor(ActorRouter, "TOOL_FLOW", fmt.Sprintf("%d call(s)", len(calls)))
	outcomes := make([]tools.Outcome, 0, len(calls))
	var unknown []string
	for _, call := range calls {
		tool := parser.CanonicalToolName(call.Tool)
		o.Activity.Log("tool_call.request", "executor requested a tool", map[string]any{"tool": tool, "intent": call.Intent})
		o.setActor(ActorExecutor, "EXECUTING_TOOL", tool)

		res := o.Tools.Execute(ctx, call)
		if res.OK {
			o.watchdog.Progress(o.now())
		}
		if name, ok := strings.CutPrefix(res.Error, "unknown_tool:"); ok {
			unknown = append(unknown, name)
		}
		if t.verify != nil && o.verifies([]parser.ToolCall{call}, t.verify) {
			t.verify = nil
		}
		o.Activity.Log("tool_call.result", "tool finished", map[string]any{"tool": tool, "ok": res.OK, "error": res.Error})
		outcomes = append(outcomes, tools.Outcome{Tool: tool, Intent: call.Intent, Result: res})
	}
	t.out.executed = true
	t.corrected = false

	if len(unknown) > 0 {
		return o.handleUnknownTools(t, unknown)
	}

	if o.trackSyntaxFailures(outcomes) {
		o.Activity.Log("tool_flow.code_path.aborted", "repeated syntax failures; redirecting to research tools", map[string]any{
			"threshold": maxCodePathFailures,
		})
		return t.next(prompt.BuildCodePathAbort(t.userMessage, o.Tools.SupportedTools()), "code_path_abort_corrective")
	}

	followUp := t.followUp
	t.followUp = ""
	if !forced {
		if v := o.pendingVerification(calls, outcomes); v != nil {
			t.verify = v
			followUp = strings.TrimSpace(followUp + "\n" + prompt.BuildVerificationCorrective(v.path, v.tool))
		}
	}
	return t.next(prompt.BuildToolResultMessage(tools.CompactPayload(outcomes), followUp), "tool_flow")
}

// handleUnknownTools sends the unknown-tool corrective, or once a tool has
// been corrected maxCorrectionsPerTool times, writes its design plan.
func (o *Orchestrator) handleUnknownTools(t *turnRun, unknown []string) turnState {
	for _, name := range unknown {
		t.unknownAttempts[name]++
	}
	for _, name := range unknown {
		if t.unknownAttempts[name] > maxCorrectionsPerTool {
			return o.escalateUnknownTool(t, name)
		}
	}
	o.Activity.Log("tool_call.unknown", "executor used unsupported tools", map[string]any{"tools": unknown})
	return t.next(prompt.BuildUnknownToolCorrective(unknown, o.Tools.SupportedTools()), "unknown_tool_corrective")
}

func (o *Orchestrator) escalateUnknownTool(t *turnRun, name string) turnState {
	call := tools.DesignPlanCall(name)
	o.Activity.Log("tool_design.forced", "unknown tool kept failing; writing a design plan", map[string]any{
		"tool":     name,
		"attempts": t.unknownAttempts[name],
		"path":     tools.DesignPlanRelPath,
	})
	if o.Memory != nil {
		_ = o.Memory.Add(memory.KindToolDesign, "orchestrator",
			fmt.Sprintf("Tool %q does not exist; a design plan was written to %s.", name, tools.DesignPlanRelPath))
	}
	o.Notifier.Notify(notification.EventToolDesign, name)
	o.notice(fmt.Sprintf("Tool %q kept failing. Writing a design plan to %s.", name, tools.DesignPlanRelPath))
	delete(t.unknownAttempts, name)

	t.calls = []parser.ToolCall{call}
	t.answer = call.Canonical()
	t.forced = true
	t.followUp = prompt.BuildToolDesignPrompt(name, tools.DesignPlanRelPath, tools.RegistryRelPath, o.Tools.SupportedTools())
	t.steps++
	return stateResolvingTools
}

// trackSyntaxFailures updates the check_python_syntax failure streak and
// reports whether the code path must be abandoned.
func (o *Orchestrator) trackSyntaxFailures(outcomes []tools.Outcome) bool {
	failures, anyOK := 0, false
	for _, oc := range outcomes {
		if oc.Tool == "check_python_syntax" && !oc.Result.OK {
			failures++
		}
		anyOK = anyOK || oc.Result.OK
	}
	switch {
	case failures > 0:
		o.codePathFailures += failures
	case anyOK:
		o.codePathFailures = 0
	}
	if o.codePathFailures >= maxCodePathFailures {
		o.codePathFailures = 0
		return true
	}
	return false
}

// pendingVerification returns the last successful write outside the plan
// file that no later call of the same batch read back. The next batch has
// to verify it. outcomes[i] is the result of calls[i].
func (o *Orchestrator) pendingVerification(calls []parser.ToolCall, outcomes []tools.Outcome) *verification {
	var v *verification
	for i, oc := range outcomes {
		if !oc.Result.OK || (oc.Tool != "write_file" && oc.Tool != "append_file") {
			continue
		}
		path, _ := oc.Result.Field("path").(string)
		if path == "" || o.Plan.IsPlanPath(path) {
			continue
		}
		tool := "read_file"
		if strings.EqualFold(filepath.Ext(path), ".py") {
			tool = "check_python_syntax"
		}
		w := &verification{path: path, tool: tool}
		if o.readBackLater(calls[i+1:], outcomes[i+1:], w) {
			continue
		}
		v = w
	}
	return v
}

// readBackLater reports whether one of calls verified w successfully.
func (o *Orchestrator) readBackLater(calls []parser.ToolCall, outcomes []tools.Outcome, w *verification) bool {
	for j, call := range calls {
		if j < len(outcomes) && outcomes[j].Result.OK && o.verifies([]parser.ToolCall{call}, w) {
			return true
		}
	}
	return false
}

// verifies reports whether calls hold a read-back of v.path. read_file
// always counts; check_python_syntax counts for Python files.
func (o *Orchestrator) verifies(calls []parser.ToolCall, v *verification) bool {
	for _, call := range calls {
		tool := parser.CanonicalToolName(call.Tool)
		if tool != "read_file" && tool != v.tool {
			continue
		}
		raw, _ := call.Args.String("path")
		if filepath.Clean(tools.ResolvePath(o.WorkDir, raw)) == filepath.Clean(v.path) {
			return true
		}
	}
	return false
}

func toolNames(calls []parser.ToolCall) []string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, parser.CanonicalToolName(c.Tool))
	}
	return names
}
