// Package prompt renders the executor system prompt, the review prompt and
// every corrective re-prompt from embedded templates.
package prompt

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/plan"
)

// RuntimeContextTag introduces the runtime supervision context appended to
// review requests.
const RuntimeContextTag = "[RUNTIME_SUPERVISION_CONTEXT]"

// ToolResultTag introduces tool results fed back to the executor.
const ToolResultTag = "[TOOL_RESULT]"

// ToolResolutionFailed is shown when no executable call could be obtained.
const ToolResolutionFailed = "Tool call resolution failed: no valid runtime tool call could be obtained in the required format. " +
	"Try again with a clear operational step (for example reading a file or writing one with write_file)."

// ExecutorContext carries the dynamic parts of the executor system prompt.
type ExecutorContext struct {
	WorkDir         string
	RegisteredTools []string
	Plan            string
	Memory          string
}

func fill(template string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(template)
}

func allowed(tools []string) string {
	return strings.Join(tools, ", ")
}

// BuildExecutorSystemPrompt constructs the executor system prompt.
// Plan and memory sections are omitted when empty.
func BuildExecutorSystemPrompt(ec ExecutorContext) string {
	registered := ""
	for _, name := range ec.RegisteredTools {
		registered += "  " + name + " args: {\"args\":[...]} (registered script tool)\n"
	}
	guide := fill(ToolGuide, "{{REGISTERED_TOOLS}}", registered)

	planSection := ""
	if strings.TrimSpace(ec.Plan) != "" {
		planSection = fill(PlanSection, "{{PLAN}}", strings.TrimSpace(ec.Plan))
	}
	memorySection := ""
	if strings.TrimSpace(ec.Memory) != "" {
		memorySection = fill(MemorySection, "{{MEMORY}}", strings.TrimSpace(ec.Memory))
	}

	return strings.TrimSpace(fill(ExecutorSystemTemplate,
		"{{WORK_DIR}}", ec.WorkDir,
		"{{TOOL_GUIDE}}", strings.TrimSpace(guide),
		"{{WORK_PROGRESS}}", strings.TrimSpace(fill(WorkProgress, "{{PLAN_PATH}}", plan.RelPath)),
		"{{PLAN_SECTION}}", planSection,
		"{{MEMORY_SECTION}}", memorySection,
	)) + "\n"
}

// BuildReviewPrompt constructs one supervisor review request.
func BuildReviewPrompt(userMessage, modelAnswer, stage string, attempt int) string {
	return fill(ReviewTemplate,
		"{{PLAN_PATH}}", plan.RelPath,
		"{{STAGE}}", stage,
		"{{ATTEMPT}}", strconv.Itoa(attempt),
		"{{USER_MESSAGE}}", userMessage,
		"{{MODEL_ANSWER}}", modelAnswer,
	)
}

// BuildRuntimeContext renders v as the tagged runtime supervision section.
// It returns "" when v cannot be encoded.
func BuildRuntimeContext(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return RuntimeContextTag + "\n" + string(data)
}

// BuildDefectCorrective constructs the re-prompt for an answer that held no
// parseable tool call, picking the template that matches the defect.
func BuildDefectCorrective(defect parser.Defect, userMessage string, tools []string) string {
	var template string
	switch defect {
	case parser.DefectUnparsedCall:
		template = UnparsedCallCorrective
	case parser.DefectCodeBlock:
		template = CodeBlockCorrective
	case parser.DefectPseudoToolUsage:
		template = PseudoToolCorrective
	default:
		template = NoActionCorrective
	}
	return strings.TrimSpace(fill(template,
		"{{USER_MESSAGE}}", userMessage,
		"{{ALLOWED_TOOLS}}", allowed(tools),
		"{{PYTHON_WORKFLOW}}", strings.TrimSpace(PythonWorkflow),
	))
}

// BuildUnknownToolCorrective lists the unsupported tools and the allowed set.
func BuildUnknownToolCorrective(unknown []string, tools []string) string {
	return strings.TrimSpace(fill(UnknownToolCorrective,
		"{{UNKNOWN_TOOLS}}", strings.Join(unknown, ", "),
		"{{ALLOWED_TOOLS}}", allowed(tools),
		"{{PYTHON_WORKFLOW}}", strings.TrimSpace(PythonWorkflow),
	))
}

// BuildVerificationCorrective demands verifyTool on the just-written path.
func BuildVerificationCorrective(path, verifyTool string) string {
	return strings.TrimSpace(fill(VerificationCorrective, "{{PATH}}", path, "{{VERIFY_TOOL}}", verifyTool))
}

func buildPlanCorrective(template, userMessage string, tools []string) string {
	return strings.TrimSpace(fill(template,
		"{{PLAN_PATH}}", plan.RelPath,
		"{{USER_MESSAGE}}", userMessage,
		"{{ALLOWED_TOOLS}}", allowed(tools),
	))
}

// BuildPlanTrackingCorrective asks the executor to create the plan file.
func BuildPlanTrackingCorrective(userMessage string, tools []string) string {
	return buildPlanCorrective(PlanTrackingCorrective, userMessage, tools)
}

// BuildPlanPersistenceCorrective asks for a plan with at least one task.
func BuildPlanPersistenceCorrective(userMessage string, tools []string) string {
	return buildPlanCorrective(PlanPersistenceCorrective, userMessage, tools)
}

// BuildPlanProgressCorrective asks for a progress update of an unchanged plan.
func BuildPlanProgressCorrective(userMessage string, tools []string) string {
	return buildPlanCorrective(PlanProgressCorrective, userMessage, tools)
}

// BuildCodePathAbort redirects the executor away from repeated syntax failures.
func BuildCodePathAbort(userMessage string, tools []string) string {
	return strings.TrimSpace(fill(CodePathAbortCorrective,
		"{{USER_MESSAGE}}", userMessage,
		"{{ALLOWED_TOOLS}}", allowed(tools),
	))
}

// BuildIdleReactivation nudges an idle executor to continue.
func BuildIdleReactivation(userMessage string, tools []string) string {
	return strings.TrimSpace(fill(IdleReactivationTemplate,
		"{{USER_MESSAGE}}", userMessage,
		"{{ALLOWED_TOOLS}}", allowed(tools),
		"{{PYTHON_WORKFLOW}}", strings.TrimSpace(PythonWorkflow),
	))
}

// BuildToolDesignPrompt replaces the unknown-tool corrective once the same
// tool has failed repeatedly.
func BuildToolDesignPrompt(tool, designPath, registryPath string, tools []string) string {
	return strings.TrimSpace(fill(ToolDesignTemplate,
		"{{TOOL}}", tool,
		"{{DESIGN_PATH}}", designPath,
		"{{REGISTRY_PATH}}", registryPath,
		"{{ALLOWED_TOOLS}}", allowed(tools),
	))
}

// BuildToolResultMessage wraps the aggregated results payload. followUp is
// appended when non-empty.
func BuildToolResultMessage(results, followUp string) string {
	return strings.TrimSpace(fill(ToolResultTemplate,
		"{{RESULTS}}", results,
		"{{FOLLOW_UP}}", followUp,
	))
}

// BuildGoalPlanningPrompt starts work on a just-confirmed goal.
func BuildGoalPlanningPrompt(goal string, tools []string) string {
	return strings.TrimSpace(fill(GoalPlanningTemplate,
		"{{GOAL}}", goal,
		"{{PLAN_PATH}}", plan.RelPath,
		"{{ALLOWED_TOOLS}}", allowed(tools),
	))
}

// BuildResumePrompt resumes a paused plan.
func BuildResumePrompt(tools []string) string {
	return strings.TrimSpace(fill(InterruptResumeTemplate,
		"{{PLAN_PATH}}", plan.RelPath,
		"{{ALLOWED_TOOLS}}", allowed(tools),
	))
}
