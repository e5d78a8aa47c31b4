package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"regexp"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
)

// syntaxCheckScript compiles the file named by argv[1] and reports a
// syntax error as one JSON line on stdout.
const syntaxCheckScript = `import json, sys
path = sys.argv[1]
with open(path, encoding="utf-8") as fh:
    source = fh.read()
try:
    compile(source, path, "exec")
except SyntaxError as err:
    print(json.dumps({"message": str(err), "line": err.lineno, "offset": err.offset, "text": err.text}))
    sys.exit(1)
`

var fileSuffixRe = regexp.MustCompile(`\.[A-Za-z0-9]{1,8}$`)

type processOutput struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (p processOutput) fields() map[string]any {
	return map[string]any{
		"command":   p.Command,
		"exit_code": p.ExitCode,
		"stdout":    p.Stdout,
		"stderr":    p.Stderr,
	}
}

var errProcessTimeout = errors.New("timeout")

// runProcess runs argv with the executor timeout. A non-zero exit is not
// an error; failing to start and running out of time are.
func (e *Executor) runProcess(ctx context.Context, argv []string) (processOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if isDir(e.WorkDir) {
		cmd.Dir = e.WorkDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := processOutput{Command: argv, Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		out.ExitCode = -1
		return out, errProcessTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}

func processFailure(tool string, out processOutput, err error) Result {
	if errors.Is(err, errProcessTimeout) {
		return fail(tool, "timeout", map[string]any{"command": out.Command, "stdout": out.Stdout, "stderr": out.Stderr})
	}
	return fail(tool, "exec_failed", map[string]any{"command": out.Command, "message": err.Error()})
}

func (e *Executor) runShell(ctx context.Context, args parser.Args) Result {
	const tool = "run_shell"
	command := strings.TrimSpace(args.StringOr("command", ""))
	if command == "" {
		return fail(tool, "missing_command", nil)
	}
	if e.Policy == nil {
		return fail(tool, "policy_rejected:no shell policy configured", nil)
	}
	argv, err := e.Policy.Validate(command)
	if err != nil {
		return fail(tool, "policy_rejected:"+err.Error(), nil)
	}
	if !e.allowed(permission.ProcessExec, "run_shell needs to start a process.") {
		return denied(tool, permission.ProcessExec)
	}
	out, err := e.runProcess(ctx, argv)
	if err != nil {
		return processFailure(tool, out, err)
	}
	return succeed(tool, out.fields())
}

// pathCandidate returns the resolved path for a script argument that looks
// like a path, or "" when it does not.
func pathCandidate(value, workDir string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.HasPrefix(cleaned, "-") {
		return ""
	}
	looksLikePath := strings.ContainsAny(cleaned, `/\`) ||
		strings.HasPrefix(cleaned, ".") ||
		strings.HasPrefix(cleaned, "~") ||
		fileSuffixRe.MatchString(cleaned)
	if !looksLikePath {
		return ""
	}
	return ResolvePath(workDir, cleaned)
}

func (e *Executor) runPython(ctx context.Context, args parser.Args) Result {
	const tool = "run_python"
	path := e.resolve(args.StringOr("path", ""))

	var scriptArgs []string
	if _, present := args["args"]; present {
		list, ok := args["args"].([]any)
		if !ok {
			return fail(tool, "args_must_be_list", nil)
		}
		scriptArgs, ok = parser.Args{"args": list}.StringList("args")
		if !ok {
			return fail(tool, "args_must_be_list", nil)
		}
	}
	if !WithinWorkDir(path, e.WorkDir) {
		return fail(tool, "path_outside_work_dir", map[string]any{"path": path, "work_dir": e.WorkDir})
	}
	var blocked []string
	for _, arg := range scriptArgs {
		if candidate := pathCandidate(arg, e.WorkDir); candidate != "" && !WithinWorkDir(candidate, e.WorkDir) {
			blocked = append(blocked, arg)
		}
	}
	if len(blocked) > 0 {
		return fail(tool, "path_outside_work_dir_in_args", map[string]any{"args": blocked, "work_dir": e.WorkDir})
	}
	if !e.allowed(permission.DiskRead, "run_python needs to read the script.") {
		return denied(tool, permission.DiskRead)
	}
	if !e.allowed(permission.ProcessExec, "run_python needs to start a process.") {
		return denied(tool, permission.ProcessExec)
	}
	if !isFile(path) {
		return fail(tool, "file_not_found", map[string]any{"path": path})
	}
	out, err := e.runProcess(ctx, append([]string{e.python(), path}, scriptArgs...))
	if err != nil {
		return processFailure(tool, out, err)
	}
	return succeed(tool, out.fields())
}

func (e *Executor) checkPythonSyntax(ctx context.Context, args parser.Args) Result {
	const tool = "check_python_syntax"
	path := e.resolve(args.StringOr("path", ""))
	if !e.allowed(permission.DiskRead, "check_python_syntax needs to read the script.") {
		return denied(tool, permission.DiskRead)
	}
	if !isFile(path) {
		return fail(tool, "file_not_found", map[string]any{"path": path})
	}
	out, err := e.runProcess(ctx, []string{e.python(), "-c", syntaxCheckScript, path})
	if err != nil {
		return processFailure(tool, out, err)
	}
	if out.ExitCode == 0 {
		return succeed(tool, map[string]any{"path": path, "syntax_ok": true})
	}

	fields := map[string]any{"path": path, "syntax_ok": false}
	var report struct {
		Message string `json:"message"`
		Line    *int   `json:"line"`
		Offset  *int   `json:"offset"`
		Text    string `json:"text"`
	}
	if json.Unmarshal([]byte(strings.TrimSpace(out.Stdout)), &report) != nil {
		fields["message"] = strings.TrimSpace(out.Stderr)
		return fail(tool, "syntax_check_failed", fields)
	}
	fields["message"] = report.Message
	fields["text"] = report.Text
	if report.Line != nil {
		fields["line"] = *report.Line
	}
	if report.Offset != nil {
		fields["offset"] = *report.Offset
	}
	return fail(tool, "syntax_error", fields)
}

// runRegistered runs a registered tool script with the call args passed as
// one JSON argument.
func (e *Executor) runRegistered(ctx context.Context, tool, script string, args parser.Args) Result {
	if !e.allowed(permission.DiskRead, "Registered tool needs to read its script.") {
		return denied(tool, permission.DiskRead)
	}
	if !e.allowed(permission.ProcessExec, "Registered tool needs to start a process.") {
		return denied(tool, permission.ProcessExec)
	}
	if !isFile(script) {
		return fail(tool, "custom_tool_script_not_found", map[string]any{"path": script})
	}
	if !WithinWorkDir(script, e.WorkDir) {
		return fail(tool, "path_outside_work_dir", map[string]any{"path": script})
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fail(tool, "invalid_args", map[string]any{"message": err.Error()})
	}
	out, err := e.runProcess(ctx, []string{e.python(), script, string(payload)})
	if err != nil {
		return processFailure(tool, out, err)
	}
	fields := out.fields()
	fields["runner"] = "python_custom"
	fields["script_path"] = script
	return Result{OK: out.ExitCode == 0, Tool: tool, Fields: fields}
}
