package prompt

import _ "embed"

// Template files embedded at compile time
var (
	//go:embed templates/executor-system.txt
	ExecutorSystemTemplate string

	//go:embed templates/tool-guide.txt
	ToolGuide string

	//go:embed templates/python-workflow.txt
	PythonWorkflow string

	//go:embed templates/work-progress.txt
	WorkProgress string

	//go:embed templates/plan-section.txt
	PlanSection string

	//go:embed templates/memory-section.txt
	MemorySection string

	//go:embed templates/supervisor-system.txt
	SupervisorSystemPrompt string

	//go:embed templates/review.txt
	ReviewTemplate string

	//go:embed templates/corrective-pseudo-tool.txt
	PseudoToolCorrective string

	//go:embed templates/corrective-unparsed-call.txt
	UnparsedCallCorrective string

	//go:embed templates/corrective-code-block.txt
	CodeBlockCorrective string

	//go:embed templates/corrective-no-action.txt
	NoActionCorrective string

	//go:embed templates/corrective-unknown-tool.txt
	UnknownToolCorrective string

	//go:embed templates/corrective-verification.txt
	VerificationCorrective string

	//go:embed templates/corrective-plan-tracking.txt
	PlanTrackingCorrective string

	//go:embed templates/corrective-plan-persistence.txt
	PlanPersistenceCorrective string

	//go:embed templates/corrective-plan-progress.txt
	PlanProgressCorrective string

	//go:embed templates/corrective-code-path-abort.txt
	CodePathAbortCorrective string

	//go:embed templates/idle-reactivation.txt
	IdleReactivationTemplate string

	//go:embed templates/tool-result.txt
	ToolResultTemplate string

	//go:embed templates/tool-design.txt
	ToolDesignTemplate string

	//go:embed templates/session-summary.txt
	SessionSummaryPrompt string

	//go:embed templates/goal-planning.txt
	GoalPlanningTemplate string

	//go:embed templates/interrupt-resume.txt
	InterruptResumeTemplate string

	//go:embed templates/addressing-reminder.txt
	AddressingReminder string
)
