// Package tools executes validated tool calls against the local machine and
// the network. Every failure is reported as data in a Result so the model
// can read it; Go errors never escape Execute.
package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
)

const (
	// DefaultMaxChars bounds read_file and fetch_web content.
	DefaultMaxChars = 12000

	// DefaultProcessTimeout bounds run_shell, run_python and registered tools.
	DefaultProcessTimeout = 120 * time.Second

	// DefaultFetchTimeout bounds fetch_web and search_web requests.
	DefaultFetchTimeout = 20 * time.Second

	// UserAgent is sent with every outbound HTTP request.
	UserAgent = "tandem/0.1"
)

// Permissions decides whether a resource class may be used.
type Permissions interface {
	IsAllowed(resource, reason string) bool
}

// ShellPolicy validates a shell command line and returns its argv.
type ShellPolicy interface {
	Validate(command string) ([]string, error)
}

// Result is the outcome of one tool call.
type Result struct {
	OK     bool
	Tool   string
	Error  string
	Fields map[string]any
}

// Map flattens the result into the payload shown to the model.
func (r Result) Map() map[string]any {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["ok"] = r.OK
	if r.Tool != "" {
		out["tool"] = r.Tool
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	return out
}

// MarshalJSON encodes the flattened payload.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Field returns a field value or nil.
func (r Result) Field(key string) any {
	return r.Fields[key]
}

func succeed(tool string, fields map[string]any) Result {
	return Result{OK: true, Tool: tool, Fields: fields}
}

func fail(tool, code string, fields map[string]any) Result {
	return Result{Tool: tool, Error: code, Fields: fields}
}

func denied(tool, resource string) Result {
	return fail(tool, "permission_denied:"+resource, nil)
}

// Executor runs tool calls inside a work directory.
type Executor struct {
	WorkDir     string
	Permissions Permissions
	Policy      ShellPolicy

	// PlanPath is the main plan file. Writes to it imply overwrite.
	PlanPath string

	// Autonomous is reported by check_capabilities.
	Autonomous bool

	Client         *http.Client
	Python         string
	ProcessTimeout time.Duration

	// SearchEndpoints maps an engine name to the URL prefix the encoded
	// query is appended to.
	SearchEndpoints map[string]string

	// ProbeURL is requested by check_capabilities when a network check is asked for.
	ProbeURL string

	lookPath func(string) (string, error)
}

// NewExecutor returns an executor rooted at workDir with default timeouts
// and search endpoints.
func NewExecutor(workDir string, perms Permissions, policy ShellPolicy) *Executor {
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	return &Executor{
		WorkDir:        workDir,
		Permissions:    perms,
		Policy:         policy,
		Client:         &http.Client{Timeout: DefaultFetchTimeout},
		Python:         "python3",
		ProcessTimeout: DefaultProcessTimeout,
		SearchEndpoints: map[string]string{
			"duckduckgo": "https://duckduckgo.com/html/?q=",
			"google":     "https://www.google.com/search?q=",
		},
		ProbeURL: "https://www.google.com",
		lookPath: exec.LookPath,
	}
}

type handler func(ctx context.Context, args parser.Args) Result

func (e *Executor) builtin(tool string) (handler, bool) {
	switch tool {
	case "read_file":
		return e.readFile, true
	case "list_dir":
		return e.listDir, true
	case "write_file":
		return e.writeFile, true
	case "append_file":
		return e.appendFile, true
	case "run_shell":
		return e.runShell, true
	case "run_python":
		return e.runPython, true
	case "check_python_syntax":
		return e.checkPythonSyntax, true
	case "fetch_web":
		return e.fetchWeb, true
	case "search_web":
		return e.searchWeb, true
	case "check_capabilities":
		return e.checkCapabilities, true
	}
	return nil, false
}

// Execute runs call and reports the outcome. Unknown tools are not run;
// the result lists the tools that are available.
func (e *Executor) Execute(ctx context.Context, call parser.ToolCall) Result {
	tool := parser.CanonicalToolName(call.Tool)
	args := call.Args
	if args == nil {
		args = parser.Args{}
	}

	var res Result
	if run, ok := e.builtin(tool); ok {
		res = run(ctx, args)
	} else if script, ok := ResolveRegisteredScript(e.WorkDir, tool); ok {
		res = e.runRegistered(ctx, tool, script, args)
	} else {
		return fail(tool, "unknown_tool:"+tool, map[string]any{"allowed_tools": e.SupportedTools()})
	}
	if res.Tool == "" {
		res.Tool = tool
	}
	return res
}

// IsSupported reports whether tool is a built-in or registered tool.
func (e *Executor) IsSupported(tool string) bool {
	tool = parser.CanonicalToolName(tool)
	if _, ok := e.builtin(tool); ok {
		return true
	}
	_, ok := ResolveRegisteredScript(e.WorkDir, tool)
	return ok
}

// SupportedTools returns built-in and registered tool names, sorted.
func (e *Executor) SupportedTools() []string {
	names := slices.Clone(parser.KnownTools)
	for _, name := range RegisteredTools(e.WorkDir) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (e *Executor) allowed(resource, reason string) bool {
	if e.Permissions == nil {
		return false
	}
	return e.Permissions.IsAllowed(resource, reason)
}

func (e *Executor) timeout() time.Duration {
	if e.ProcessTimeout <= 0 {
		return DefaultProcessTimeout
	}
	return e.ProcessTimeout
}

func (e *Executor) python() string {
	if e.Python == "" {
		return "python3"
	}
	return e.Python
}

func (e *Executor) httpClient() *http.Client {
	if e.Client == nil {
		return &http.Client{Timeout: DefaultFetchTimeout}
	}
	return e.Client
}

var _ Permissions = (*permission.Manager)(nil)
