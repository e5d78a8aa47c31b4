// Package supervisor runs the review loop in which a second model checks,
// and where needed repairs, the executor model's answers before anything
// is executed.
package supervisor

import (
	"context"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/ai"
	"github.com/CodexForgeBR/tandem/internal/audit"
	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/prompt"
)

// DefaultMaxRepairRounds bounds the number of accepted repairs per answer.
const DefaultMaxRepairRounds = 2

// Verdict statuses.
const (
	StatusOK     = "ok"
	StatusRepair = "repair"
)

// Reason codes. The first group comes from the reviewer, the second is
// set by the loop itself.
const (
	ReasonOK                = "OK"
	ReasonNoToolCall        = "NO_TOOL_CALL"
	ReasonPseudoCode        = "PSEUDO_CODE"
	ReasonInvalidFormat     = "INVALID_FORMAT"
	ReasonToolProtocolDrift = "TOOL_PROTOCOL_DRIFT"
	ReasonOther             = "OTHER"

	ReasonSupervisorError         = "SUPERVISOR_ERROR"
	ReasonSupervisorInvalidJSON   = "SUPERVISOR_INVALID_JSON"
	ReasonSupervisorUnknownStatus = "SUPERVISOR_UNKNOWN_STATUS"
)

// WorkState is the reviewer's view of task progress.
type WorkState string

const (
	WorkRunning             WorkState = "RUNNING"
	WorkStalled             WorkState = "STALLED"
	WorkWaitingUserDecision WorkState = "WAITING_USER_DECISION"
	WorkWaitingPermission   WorkState = "WAITING_PERMISSION"
	WorkCompleted           WorkState = "COMPLETED"
)

// NormalizeWorkState maps s onto the allowed set, defaulting to RUNNING.
func NormalizeWorkState(s string) WorkState {
	switch ws := WorkState(strings.ToUpper(strings.TrimSpace(s))); ws {
	case WorkRunning, WorkStalled, WorkWaitingUserDecision, WorkWaitingPermission, WorkCompleted:
		return ws
	}
	return WorkRunning
}

// Waiting reports whether the state asks for a user decision or permission.
func (w WorkState) Waiting() bool {
	return w == WorkWaitingUserDecision || w == WorkWaitingPermission
}

// Result is the outcome of one Refine call.
type Result struct {
	Answer         string
	RepairsApplied int
	Status         string
	ReasonCode     string
	WorkState      WorkState
	Notes          string
}

// ChatClient is the reviewing model. *ai.RoleClient satisfies it.
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt string, messages []ai.Message) (string, error)
}

// Supervisor reviews executor answers. Activity and Dialogue may be nil.
type Supervisor struct {
	Client          ChatClient
	MaxRepairRounds int
	Activity        *audit.ActivityLog
	Dialogue        *audit.DialogueLog
}

// New returns a Supervisor with DefaultMaxRepairRounds.
func New(client ChatClient, activity *audit.ActivityLog, dialogue *audit.DialogueLog) *Supervisor {
	return &Supervisor{
		Client:          client,
		MaxRepairRounds: DefaultMaxRepairRounds,
		Activity:        activity,
		Dialogue:        dialogue,
	}
}

// Refine reviews modelAnswer in up to MaxRepairRounds+1 rounds and returns
// the accepted answer. It never fails: reviewer errors and malformed
// verdicts are reported through the reason code.
func (s *Supervisor) Refine(ctx context.Context, userMessage, modelAnswer, stage string) Result {
	maxRounds := max(s.MaxRepairRounds, 0)

	current := modelAnswer
	applied := 0
	last := Result{Status: StatusOK, ReasonCode: ReasonOK, WorkState: WorkRunning}

	for attempt := 1; attempt <= maxRounds+1; attempt++ {
		reviewPrompt := prompt.BuildReviewPrompt(userMessage, current, stage, attempt)
		output, err := s.Client.Chat(ctx, prompt.SupervisorSystemPrompt, []ai.Message{
			{Role: "user", Content: reviewPrompt},
		})
		if err != nil {
			s.Activity.Log("supervisor.error", "the reviewer did not answer; review skipped", map[string]any{
				"stage":   stage,
				"attempt": attempt,
				"error":   err.Error(),
			})
			return Result{
				Answer:         current,
				RepairsApplied: applied,
				Status:         last.Status,
				ReasonCode:     ReasonSupervisorError,
				WorkState:      last.WorkState,
			}
		}
		s.Dialogue.Log(stage, attempt, "review_exchange", map[string]any{
			"executor_answer":       current,
			"review_prompt":         reviewPrompt,
			"supervisor_raw_output": output,
		})

		review, err := parser.ParseReview(output)
		if err != nil {
			s.Dialogue.Log(stage, attempt, "review_parse_error", map[string]any{
				"executor_answer":       current,
				"supervisor_raw_output": output,
				"error":                 "invalid_json",
			})
			s.Activity.Log("supervisor.invalid_json", "the reviewer returned invalid JSON; review skipped", map[string]any{
				"stage":   stage,
				"attempt": attempt,
			})
			return Result{
				Answer:     modelAnswer,
				Status:     last.Status,
				ReasonCode: ReasonSupervisorInvalidJSON,
				WorkState:  last.WorkState,
			}
		}

		workState := NormalizeWorkState(review.WorkState)
		s.Dialogue.Log(stage, attempt, "review_result", map[string]any{
			"executor_answer": current,
			"status":          review.Status,
			"reason_code":     review.ReasonCode,
			"work_state":      string(workState),
			"repaired_answer": review.RepairedAnswer,
			"notes":           review.Notes,
		})
		s.Activity.Log("supervisor.review", "the reviewer judged the executor answer", map[string]any{
			"stage":           stage,
			"attempt":         attempt,
			"status":          review.Status,
			"reason_code":     review.ReasonCode,
			"work_state":      string(workState),
			"repairs_applied": applied,
			"notes":           review.Notes,
		})

		switch review.Status {
		case StatusOK:
			return Result{
				Answer:         current,
				RepairsApplied: applied,
				Status:         StatusOK,
				ReasonCode:     review.ReasonCode,
				WorkState:      workState,
				Notes:          review.Notes,
			}
		case StatusRepair:
		default:
			// Unknown verdicts never replace content.
			return Result{
				Answer:     modelAnswer,
				Status:     StatusOK,
				ReasonCode: ReasonSupervisorUnknownStatus,
				WorkState:  workState,
				Notes:      review.Notes,
			}
		}

		last = Result{Status: StatusRepair, ReasonCode: review.ReasonCode, WorkState: workState, Notes: review.Notes}
		repaired := strings.TrimSpace(review.RepairedAnswer)
		if repaired == "" || repaired == current || attempt > maxRounds {
			break
		}
		current = NormalizeRepairedAnswer(repaired)
		applied++
	}

	last.Answer = current
	last.RepairsApplied = applied
	return last
}
