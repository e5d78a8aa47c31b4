package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
	"github.com/CodexForgeBR/tandem/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePerms grants the resources in allow, or everything when all is set.
type fakePerms struct {
	all       bool
	allow     map[string]bool
	CallCount int
	Asked     []string
}

func (f *fakePerms) IsAllowed(resource, _ string) bool {
	f.CallCount++
	f.Asked = append(f.Asked, resource)
	return f.all || f.allow[resource]
}

// fakePolicy returns argv from ValidateFunc.
type fakePolicy struct {
	ValidateFunc func(command string) ([]string, error)
}

func (f *fakePolicy) Validate(command string) ([]string, error) {
	return f.ValidateFunc(command)
}

func newTestExecutor(t *testing.T) (*Executor, *fakePerms) {
	t.Helper()
	perms := &fakePerms{all: true}
	e := NewExecutor(t.TempDir(), perms, policy.Default())
	return e, perms
}

func call(tool string, args parser.Args) parser.ToolCall {
	return parser.ToolCall{Tool: tool, Args: args, Intent: "test"}
}

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestResultMap(t *testing.T) {
	r := fail("read_file", "file_not_found", map[string]any{"path": "/x"})
	m := r.Map()
	assert.Equal(t, false, m["ok"])
	assert.Equal(t, "read_file", m["tool"])
	assert.Equal(t, "file_not_found", m["error"])
	assert.Equal(t, "/x", m["path"])

	ok := succeed("list_dir", nil).Map()
	assert.Equal(t, true, ok["ok"])
	assert.NotContains(t, ok, "error")
}

func TestExecute_UnknownTool(t *testing.T) {
	e, perms := newTestExecutor(t)

	res := e.Execute(context.Background(), call("foo", parser.Args{}))

	assert.False(t, res.OK)
	assert.Equal(t, "unknown_tool:foo", res.Error)
	assert.Contains(t, res.Field("allowed_tools"), "read_file")
	assert.Equal(t, 0, perms.CallCount, "unknown tools must not ask for permissions")
	assert.False(t, e.IsSupported("foo"))
	assert.True(t, e.IsSupported("run_command"), "aliases resolve to built-ins")
}

func TestExecute_AliasDispatch(t *testing.T) {
	e, _ := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.WorkDir, "a.txt"), []byte("hi"), 0o644))

	res := e.Execute(context.Background(), call("read", parser.Args{"path": "a.txt"}))

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "read_file", res.Tool)
	assert.Equal(t, "hi", res.Field("content"))
}

func TestRunShell(t *testing.T) {
	tests := []struct {
		name    string
		command string
		perms   *fakePerms
		wantErr string
	}{
		{name: "missing command", command: "  ", perms: &fakePerms{all: true}, wantErr: "missing_command"},
		{name: "not on allowlist", command: "rm -rf /", perms: &fakePerms{all: true}, wantErr: `policy_rejected:command "rm" is not on the allowlist`},
		{name: "exec denied", command: "pwd", perms: &fakePerms{}, wantErr: "permission_denied:" + permission.ProcessExec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(t.TempDir(), tt.perms, policy.Default())
			res := e.Execute(context.Background(), call("run_shell", parser.Args{"command": tt.command}))
			assert.False(t, res.OK)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestRunShell_Success(t *testing.T) {
	e, perms := newTestExecutor(t)

	res := e.Execute(context.Background(), call("run_shell", parser.Args{"command": "pwd"}))

	require.True(t, res.OK, res.Error)
	assert.Equal(t, 0, res.Field("exit_code"))
	assert.Equal(t, []string{"pwd"}, res.Field("command"))
	assert.Contains(t, res.Field("stdout"), filepath.Base(e.WorkDir))
	assert.Equal(t, []string{permission.ProcessExec}, perms.Asked)
}

func TestRunShell_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	e, _ := newTestExecutor(t)
	e.Policy = &fakePolicy{ValidateFunc: func(string) ([]string, error) {
		return []string{"sleep", "5"}, nil
	}}
	e.ProcessTimeout = 100 * time.Millisecond

	start := time.Now()
	res := e.Execute(context.Background(), call("run_shell", parser.Args{"command": "sleep 5"}))

	assert.False(t, res.OK)
	assert.Equal(t, "timeout", res.Error)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunPython_Guards(t *testing.T) {
	e, _ := newTestExecutor(t)
	script := filepath.Join(e.WorkDir, "main.py")
	require.NoError(t, os.WriteFile(script, []byte("print('x')\n"), 0o644))

	tests := []struct {
		name    string
		args    parser.Args
		wantErr string
	}{
		{name: "args not a list", args: parser.Args{"path": "main.py", "args": "a b"}, wantErr: "args_must_be_list"},
		{name: "script outside work dir", args: parser.Args{"path": "/etc/passwd"}, wantErr: "path_outside_work_dir"},
		{name: "path arg outside work dir", args: parser.Args{"path": "main.py", "args": []any{"--verbose", "../../etc/shadow"}}, wantErr: "path_outside_work_dir_in_args"},
		{name: "missing script", args: parser.Args{"path": "nope.py"}, wantErr: "file_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute(context.Background(), call("run_python", tt.args))
			assert.False(t, res.OK)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestRunPython_Success(t *testing.T) {
	requirePython(t)
	e, _ := newTestExecutor(t)
	script := filepath.Join(e.WorkDir, "echo.py")
	require.NoError(t, os.WriteFile(script, []byte("import sys\nprint('|'.join(sys.argv[1:]))\n"), 0o644))

	res := e.Execute(context.Background(), call("run_python", parser.Args{"path": "echo.py", "args": []any{"a", int64(2), "data/in.txt"}}))

	require.True(t, res.OK, res.Error)
	assert.Equal(t, 0, res.Field("exit_code"))
	assert.Equal(t, "a|2|data/in.txt\n", res.Field("stdout"))
}

func TestCheckPythonSyntax(t *testing.T) {
	requirePython(t)
	e, _ := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.WorkDir, "good.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(e.WorkDir, "bad.py"), []byte("x = 1\ndef broken(:\n"), 0o644))

	res := e.Execute(context.Background(), call("check_python_syntax", parser.Args{"path": "good.py"}))
	require.True(t, res.OK, res.Error)
	assert.Equal(t, true, res.Field("syntax_ok"))

	res = e.Execute(context.Background(), call("check_python_syntax", parser.Args{"path": "bad.py"}))
	assert.False(t, res.OK)
	assert.Equal(t, "syntax_error", res.Error)
	assert.Equal(t, false, res.Field("syntax_ok"))
	assert.Equal(t, 2, res.Field("line"))
	assert.NotEmpty(t, res.Field("message"))
}

func TestCheckPythonSyntax_MissingFile(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.Execute(context.Background(), call("check_python_syntax", parser.Args{"path": "missing.py"}))
	assert.Equal(t, "file_not_found", res.Error)
}

func TestCheckCapabilities(t *testing.T) {
	e, perms := newTestExecutor(t)
	e.Autonomous = true
	e.lookPath = func(name string) (string, error) {
		if name == "python3" {
			return "/usr/bin/python3", nil
		}
		return "", exec.ErrNotFound
	}

	res := e.Execute(context.Background(), call("check_capabilities", parser.Args{}))

	require.True(t, res.OK)
	assert.Equal(t, true, res.Field("autonomous_mode"))
	assert.Equal(t, "not_checked", res.Field("network_status"))
	binaries := res.Field("binaries").(map[string]bool)
	assert.True(t, binaries["python3"])
	assert.False(t, binaries["curl"])
	readiness := res.Field("tool_readiness").(map[string]bool)
	assert.True(t, readiness["run_python"])
	assert.True(t, readiness["read_file"])
	assert.Equal(t, 0, perms.CallCount)
}

func TestCheckCapabilities_NetworkDenied(t *testing.T) {
	e := NewExecutor(t.TempDir(), &fakePerms{}, policy.Default())

	res := e.Execute(context.Background(), call("check_capabilities", parser.Args{"check_network": true}))

	require.True(t, res.OK)
	assert.Equal(t, "permission_denied:network.internet", res.Field("network_status"))
}

func TestCheckAvailability(t *testing.T) {
	got := CheckAvailability(func(name string) (string, error) {
		if name == "git" {
			return "/usr/bin/git", nil
		}
		return "", exec.ErrNotFound
	}, "git", "definitely-not-installed")

	assert.Equal(t, map[string]bool{"git": true, "definitely-not-installed": false}, got)
}
