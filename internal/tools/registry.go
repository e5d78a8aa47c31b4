package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
)

// RegistryRelPath is the registry of model-built tools, relative to the work dir.
const RegistryRelPath = "state/tool_registry.json"

// DesignPlanRelPath is where a tool design plan is written when the model
// keeps asking for a tool that does not exist.
const DesignPlanRelPath = "notes/tool_design_plan.json"

// RegistryPath returns the absolute registry path for workDir.
func RegistryPath(workDir string) string {
	return filepath.Join(workDir, RegistryRelPath)
}

type registryEntry struct {
	ScriptPath string `json:"script_path"`
}

// loadRegistry returns name → script path. A missing or malformed registry
// is empty.
func loadRegistry(workDir string) map[string]string {
	data, err := os.ReadFile(RegistryPath(workDir))
	if err != nil {
		return nil
	}
	var doc struct {
		Tools map[string]json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	out := make(map[string]string, len(doc.Tools))
	for name, raw := range doc.Tools {
		name = strings.TrimSpace(name)
		var entry registryEntry
		if name == "" || json.Unmarshal(raw, &entry) != nil {
			continue
		}
		if script := strings.TrimSpace(entry.ScriptPath); script != "" {
			out[name] = script
		}
	}
	return out
}

// RegisteredTools lists registered tools that name a script, sorted.
func RegisteredTools(workDir string) []string {
	reg := loadRegistry(workDir)
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolveRegisteredScript returns the script path of a registered tool.
// Relative script paths are resolved against workDir.
func ResolveRegisteredScript(workDir, tool string) (string, bool) {
	script, ok := loadRegistry(workDir)[tool]
	if !ok {
		return "", false
	}
	if !filepath.IsAbs(script) {
		script = filepath.Join(workDir, script)
	}
	return filepath.Clean(script), true
}

// DesignPlan is the document written to DesignPlanRelPath.
type DesignPlan struct {
	ToolName    string   `json:"tool_name"`
	Status      string   `json:"status"`
	Workflow    []string `json:"workflow"`
	Description string   `json:"description"`
}

// NewDesignPlan returns a design_required plan for a missing tool.
func NewDesignPlan(tool string) DesignPlan {
	return DesignPlan{
		ToolName: tool,
		Status:   "design_required",
		Workflow: []string{
			"1. Design what the tool does",
			"2. Write a Python script at src/" + tool + ".py",
			"3. Check its syntax with check_python_syntax",
			"4. Test it with run_python",
			"5. Debug and fix errors",
			"6. Register it in " + RegistryRelPath,
			"7. Use the tool to finish the task",
		},
		Description: fmt.Sprintf("Plan for building tool '%s' after repair attempts were exhausted.", tool),
	}
}

// DesignPlanCall returns the write_file call that records the design plan
// for tool.
func DesignPlanCall(tool string) parser.ToolCall {
	data, _ := json.MarshalIndent(NewDesignPlan(tool), "", "  ")
	return parser.ToolCall{
		Tool: "write_file",
		Args: parser.Args{
			"path":      DesignPlanRelPath,
			"content":   string(data),
			"overwrite": true,
		},
		Intent: "force_tool_creation_plan:" + tool,
	}
}
