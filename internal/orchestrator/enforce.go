package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/memory"
	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/CodexForgeBR/tandem/internal/prompt"
	"github.com/CodexForgeBR/tandem/internal/supervisor"
)

// runtimeContext is appended to every review request.
type runtimeContext struct {
	Stage              string           `json:"stage"`
	PassiveTurns       int              `json:"passive_turns"`
	IdleSeconds        int              `json:"idle_seconds"`
	WorkState          string           `json:"work_state"`
	Paused             bool             `json:"paused"`
	Goal               string           `json:"goal,omitempty"`
	Plan               plan.Snapshot    `json:"plan"`
	PlanPersistence    plan.Persistence `json:"plan_persistence"`
	PlanSchemaIssues   []string         `json:"plan_schema_issues,omitempty"`
	UnchangedPlanTurns int              `json:"unchanged_plan_turns"`
	SupportedTools     []string         `json:"supported_tools"`
}

func (o *Orchestrator) runtimeContext(stage string) string {
	return prompt.BuildRuntimeContext(runtimeContext{
		Stage:              stage,
		PassiveTurns:       o.watchdog.PassiveTurns,
		IdleSeconds:        int(o.now().Sub(o.watchdog.LastProgress).Seconds()),
		WorkState:          string(o.workState),
		Paused:             o.pause.Active,
		Goal:               o.currentGoal(),
		Plan:               o.Plan.Snapshot(),
		PlanPersistence:    o.Plan.Persistence(),
		PlanSchemaIssues:   o.Plan.SchemaIssues(),
		UnchangedPlanTurns: o.unchangedPlanTurns,
		SupportedTools:     o.Tools.SupportedTools(),
	})
}

// supervise passes answer through the reviewer. A repair that introduces a
// tool the runtime does not support is rejected and the original answer
// kept. Without a reviewer the answer is returned unchanged.
func (o *Orchestrator) supervise(ctx context.Context, userMessage, answer, stage string) string {
	if o.Reviewer == nil {
		return answer
	}
	o.setActor(ActorSupervisor, "REVIEWING", stage)
	request := userMessage + "\n\n" + o.runtimeContext(stage)
	res := o.Reviewer.Refine(ctx, request, answer, stage)
	o.workState = supervisor.NormalizeWorkState(string(res.WorkState))

	final := res.Answer
	if res.RepairsApplied > 0 {
		if bad := o.introducedUnsupported(answer, res.Answer); len(bad) > 0 {
			o.Activity.Log("supervisor.repair.rejected", "repair introduced unsupported tools; keeping the executor answer", map[string]any{
				"stage": stage,
				"tools": bad,
			})
			final = answer
		} else {
			o.Activity.Log("supervisor.repair.applied", "reviewer repaired the executor answer", map[string]any{
				"stage":           stage,
				"repairs_applied": res.RepairsApplied,
				"reason_code":     res.ReasonCode,
			})
		}
	}
	o.Activity.Log("supervisor.review.done", "review finished", map[string]any{
		"stage":       stage,
		"status":      res.Status,
		"reason_code": res.ReasonCode,
		"work_state":  string(o.workState),
	})
	o.setActor(ActorSupervisor, "IDLE", strings.ToLower(res.ReasonCode))
	return final
}

// introducedUnsupported lists unsupported tools called by repaired but
// not by original.
func (o *Orchestrator) introducedUnsupported(original, repaired string) []string {
	before := make(map[string]bool)
	for _, c := range parser.Parse(original) {
		before[parser.CanonicalToolName(c.Tool)] = true
	}
	var bad []string
	for _, c := range parser.Parse(repaired) {
		tool := parser.CanonicalToolName(c.Tool)
		if !before[tool] && !o.Tools.IsSupported(tool) {
			bad = append(bad, tool)
		}
	}
	return bad
}

// repairPlan rebuilds a malformed plan file and tells the operator. A
// missing or well-formed plan is left alone.
func (o *Orchestrator) repairPlan() {
	rep, err := o.Plan.Repair()
	if err != nil {
		o.Activity.Log("plan.repair.error", "malformed plan could not be rebuilt", map[string]any{"error": err.Error()})
		o.emit(Event{Kind: EventError, Text: fmt.Sprintf("the plan file is malformed and could not be rebuilt: %v", err)})
		return
	}
	if !rep.Repaired {
		return
	}
	o.Activity.Log("plan.repaired", "malformed plan rebuilt from recoverable fields", map[string]any{
		"backup_path":   rep.BackupPath,
		"goal":          rep.Goal,
		"current_stage": rep.CurrentStage,
	})
	o.notice("The plan file was malformed and has been rebuilt. A backup was kept at " + rep.BackupPath + ".")
}

// ensurePlanPersisted makes sure a goal-bearing turn leaves a plan with at
// least one task. A malformed plan is repaired first; then up to
// maxPlanPersistenceRounds corrective turns run, and finally a seed task
// is written by the runtime itself.
func (o *Orchestrator) ensurePlanPersisted(ctx context.Context, userMessage, answer string) (string, error) {
	o.repairPlan()

	for round := 1; round <= maxPlanPersistenceRounds; round++ {
		p := o.Plan.Persistence()
		if !p.Required {
			return answer, nil
		}
		corrective, stage := prompt.BuildPlanPersistenceCorrective(userMessage, o.Tools.SupportedTools()), "plan_persistence_corrective"
		if !p.Exists {
			corrective, stage = prompt.BuildPlanTrackingCorrective(userMessage, o.Tools.SupportedTools()), "plan_tracking_corrective"
		}
		o.Activity.Log("plan.persistence.required", "goal-bearing turn left no tasks in the plan", map[string]any{
			"round":     round,
			"exists":    p.Exists,
			"valid":     p.Valid,
			"has_tasks": p.HasTasks,
		})
		out, err := o.runTurn(ctx, corrective, userMessage, stage, o.Options.MaxCorrectiveSteps)
		if err != nil {
			return answer, err
		}
		answer = out.answer
	}

	if !o.Plan.Persistence().Required {
		return answer, nil
	}
	goal := o.currentGoal()
	if goal == "" {
		goal = userMessage
	}
	seeded, err := o.Plan.EnsureSeedTask(goal)
	if err != nil {
		o.Activity.Log("plan.seed.error", "could not write the seed task", map[string]any{"error": err.Error()})
		return answer, nil
	}
	if seeded {
		o.Activity.Log("plan.seeded", "runtime wrote a seed task after corrective rounds", map[string]any{"goal": goal})
		o.notice("The plan had no tasks; a starting task was added to " + plan.RelPath + ".")
	}
	return answer, nil
}

// trackPlanProgress counts goal-bearing turns that left the plan
// unchanged. After maxUnchangedPlanTurns in a row one progress corrective
// runs.
func (o *Orchestrator) trackPlanProgress(ctx context.Context, userMessage, before, answer string) (string, error) {
	if o.Plan.Fingerprint() != before {
		o.unchangedPlanTurns = 0
		return answer, nil
	}
	o.unchangedPlanTurns++
	if o.unchangedPlanTurns < maxUnchangedPlanTurns || !o.Plan.Snapshot().Actionable() {
		return answer, nil
	}

	o.Activity.Log("plan.progress.stalled", "plan unchanged across turns; asking for an update", map[string]any{
		"unchanged_turns": o.unchangedPlanTurns,
	})
	out, err := o.runTurn(ctx, prompt.BuildPlanProgressCorrective(userMessage, o.Tools.SupportedTools()), userMessage, "plan_progress_corrective", o.Options.MaxCorrectiveSteps)
	if err != nil {
		return answer, err
	}
	if o.Plan.Fingerprint() != before {
		o.unchangedPlanTurns = 0
	} else if o.Memory != nil {
		_ = o.Memory.Add(memory.KindNote, "orchestrator", "The plan stayed unchanged after a progress corrective: "+o.currentGoal())
	}
	return out.answer, nil
}
