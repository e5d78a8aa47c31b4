package prompt

import (
	"strings"
	"testing"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/stretchr/testify/assert"
)

var testTools = []string{"read_file", "list_dir", "write_file"}

func TestBuildExecutorSystemPrompt_IncludesProtocol(t *testing.T) {
	result := BuildExecutorSystemPrompt(ExecutorContext{WorkDir: "/work"})

	assert.Contains(t, result, "WORK DIR: /work")
	assert.Contains(t, result, "TOOL CALLING PROTOCOL")
	assert.Contains(t, result, "```tool_call")
	assert.Contains(t, result, "notes/main_plan.json")
	assert.Contains(t, result, "[Executor -> User]")
	assert.NotContains(t, result, "{{")
	assert.NotContains(t, result, "CURRENT PLAN", "empty plan section should be omitted")
	assert.NotContains(t, result, "MEMORY NOTES", "empty memory section should be omitted")
}

func TestBuildExecutorSystemPrompt_OptionalSections(t *testing.T) {
	result := BuildExecutorSystemPrompt(ExecutorContext{
		WorkDir:         "/work",
		RegisteredTools: []string{"csv_stats"},
		Plan:            `{"goal": "g"}`,
		Memory:          "- prefers short answers",
	})

	assert.Contains(t, result, "csv_stats args:")
	assert.Contains(t, result, "CURRENT PLAN:\n{\"goal\": \"g\"}")
	assert.Contains(t, result, "MEMORY NOTES (most recent last):\n- prefers short answers")
}

func TestBuildReviewPrompt(t *testing.T) {
	result := BuildReviewPrompt("list the files", "I listed them.", "user_turn", 2)

	assert.Contains(t, result, "Stage: user_turn")
	assert.Contains(t, result, "Attempt: 2")
	assert.Contains(t, result, "list the files")
	assert.Contains(t, result, "I listed them.")
	assert.Contains(t, result, "Allowed status: ok | repair")
	assert.Contains(t, result, "notes/main_plan.json")
	assert.NotContains(t, result, "{{")
}

func TestBuildRuntimeContext(t *testing.T) {
	result := BuildRuntimeContext(map[string]any{"passive_turns": 2})
	assert.True(t, strings.HasPrefix(result, RuntimeContextTag+"\n"))
	assert.Contains(t, result, `"passive_turns": 2`)

	assert.Empty(t, BuildRuntimeContext(make(chan int)))
}

func TestBuildDefectCorrective(t *testing.T) {
	tests := []struct {
		name   string
		defect parser.Defect
		want   string
	}{
		{name: "unparsed call", defect: parser.DefectUnparsedCall, want: "not in a format the runtime can execute"},
		{name: "code block", defect: parser.DefectCodeBlock, want: "contains source code"},
		{name: "pseudo usage", defect: parser.DefectPseudoToolUsage, want: "contains pseudo-code"},
		{name: "placeholder", defect: parser.DefectPlaceholder, want: "did not start any real runtime action"},
		{name: "none", defect: parser.DefectNone, want: "did not start any real runtime action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BuildDefectCorrective(tt.defect, "count lines", testTools)
			assert.Contains(t, result, tt.want)
			assert.Contains(t, result, "Allowed tools: read_file, list_dir, write_file.")
			assert.NotContains(t, result, "{{")
		})
	}
}

func TestBuildUnknownToolCorrective(t *testing.T) {
	result := BuildUnknownToolCorrective([]string{"foo"}, testTools)
	assert.Contains(t, result, "unsupported tools: foo.")
	assert.Contains(t, result, "The only available tools are: read_file, list_dir, write_file.")
}

func TestBuildVerificationCorrective(t *testing.T) {
	result := BuildVerificationCorrective("scripts/a.py", "check_python_syntax")
	assert.Contains(t, result, "The file scripts/a.py was just written.")
	assert.Contains(t, result, "runs check_python_syntax with path \"scripts/a.py\"")
}

func TestPlanCorrectives(t *testing.T) {
	tests := []struct {
		name  string
		build func(string, []string) string
		want  string
	}{
		{name: "tracking", build: BuildPlanTrackingCorrective, want: "initialize the main-thread plan"},
		{name: "persistence", build: BuildPlanPersistenceCorrective, want: "at least one task with the fields id, title, status, next_step"},
		{name: "progress", build: BuildPlanProgressCorrective, want: "update current_stage and at least one task status"},
		{name: "code path abort", build: BuildCodePathAbort, want: "Abandon code generation"},
		{name: "idle", build: BuildIdleReactivation, want: "period of inactivity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.build("build the crawler", testTools)
			assert.Contains(t, result, tt.want)
			assert.Contains(t, result, "build the crawler")
			assert.NotContains(t, result, "{{")
		})
	}
}

func TestBuildToolDesignPrompt(t *testing.T) {
	result := BuildToolDesignPrompt("foo", "notes/tool_design_plan.json", "state/tool_registry.json", testTools)
	assert.Contains(t, result, `The tool "foo" does not exist`)
	assert.Contains(t, result, "notes/tool_design_plan.json")
	assert.Contains(t, result, "state/tool_registry.json")
}

func TestBuildToolResultMessage(t *testing.T) {
	result := BuildToolResultMessage(`[{"ok":true}]`, "")
	assert.Equal(t, "[TOOL_RESULT]\n[{\"ok\":true}]", result)

	result = BuildToolResultMessage(`[]`, "Verify the write.")
	assert.True(t, strings.HasPrefix(result, ToolResultTag))
	assert.True(t, strings.HasSuffix(result, "Verify the write."))
}

func TestBuildGoalPlanningPrompt(t *testing.T) {
	result := BuildGoalPlanningPrompt("build the crawler", testTools)
	assert.Contains(t, result, "Main goal: build the crawler")
	assert.Contains(t, result, "notes/main_plan.json")
	assert.NotContains(t, result, "{{")
}

func TestBuildResumePrompt(t *testing.T) {
	result := BuildResumePrompt(testTools)
	assert.Contains(t, result, "check_capabilities")
	assert.NotContains(t, result, "{{")
}
