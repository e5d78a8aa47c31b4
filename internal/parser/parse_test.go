package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FencedToolCall(t *testing.T) {
	text := "Let me look around.\n```tool_call\n{\"tool\":\"list_dir\",\"args\":{\"path\":\".\"},\"intent\":\"scan\"}\n```"

	calls := Parse(text)
	require.Len(t, calls, 1)
	assert.Equal(t, ToolCall{Tool: "list_dir", Args: Args{"path": "."}, Intent: "scan"}, calls[0])
}

func TestParse_JSONShapes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ToolCall
	}{
		{
			name: "arguments key",
			text: `{"tool": "read_file", "arguments": {"path": "a.txt", "max_chars": 200}}`,
			want: []ToolCall{{Tool: "read_file", Args: Args{"path": "a.txt", "max_chars": int64(200)}}},
		},
		{
			name: "nested tool_call object",
			text: "```json\n{\"tool_call\": {\"name\": \"fetch_web\", \"arguments\": {\"url\": \"https://example.com\"}}, \"intent\": \"docs\"}\n```",
			want: []ToolCall{{Tool: "fetch_web", Args: Args{"url": "https://example.com"}, Intent: "docs"}},
		},
		{
			name: "tool_call string with args",
			text: `{"tool_call": "run_shell", "args": {"command": "pwd"}}`,
			want: []ToolCall{{Tool: "run_shell", Args: Args{"command": "pwd"}}},
		},
		{
			name: "batch",
			text: `{"tool_calls": [{"name": "list_dir", "args": {"path": "."}}, {"tool": "read_file", "arguments": {"path": "b.md"}, "intent": "read"}]}`,
			want: []ToolCall{
				{Tool: "list_dir", Args: Args{"path": "."}},
				{Tool: "read_file", Args: Args{"path": "b.md"}, Intent: "read"},
			},
		},
		{
			name: "root args lifted",
			text: `{"tool": "write_file", "path": "notes/a.md", "content": "hello", "overwrite": true}`,
			want: []ToolCall{{Tool: "write_file", Args: Args{"path": "notes/a.md", "content": "hello", "overwrite": true}}},
		},
		{
			name: "callable tool string",
			text: `{"tool": "read_file(README.md)", "args": {}}`,
			want: []ToolCall{{Tool: "read_file", Args: Args{"path": "README.md"}}},
		},
		{
			name: "alias collapsed",
			text: `{"tool": "run_command", "args": {"command": "whoami"}, "intent": "who"}`,
			want: []ToolCall{{Tool: "run_shell", Args: Args{"command": "whoami"}, Intent: "who"}},
		},
		{
			name: "nested values preserved",
			text: `{"tool": "run_python", "args": {"path": "s.py", "args": ["--n", 3], "env": {"A": "1"}}}`,
			want: []ToolCall{{Tool: "run_python", Args: Args{"path": "s.py", "args": []any{"--n", int64(3)}, "env": map[string]any{"A": "1"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestParse_LegacySyntax(t *testing.T) {
	calls := Parse("[TOOL_CALL](read_file, notes/a.txt, max_chars=500)")
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Tool)
	assert.Equal(t, Args{"path": "notes/a.txt", "max_chars": int64(500)}, calls[0].Args)
	assert.Equal(t, "legacy_tool_call_syntax", calls[0].Intent)
}

func TestParse_ColonSyntax(t *testing.T) {
	text := "tool_call: write_file(path=\"src/main.py\", content='''print(\"hi\")\nprint(1)''', overwrite=true)"

	calls := Parse(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "write_file", calls[0].Tool)
	assert.Equal(t, "src/main.py", calls[0].Args["path"])
	assert.Equal(t, "print(\"hi\")\nprint(1)", calls[0].Args["content"])
	assert.Equal(t, true, calls[0].Args["overwrite"])
	assert.Equal(t, "colon_tool_call_syntax", calls[0].Intent)
}

func TestParse_ColonSyntax_MultipleHeaders(t *testing.T) {
	text := "tool_call: read_file(path='a.txt')\nthen\ntool_call: list_dir(path='docs')"

	calls := Parse(text)
	require.Len(t, calls, 2)
	assert.Equal(t, Args{"path": "a.txt"}, calls[0].Args)
	assert.Equal(t, Args{"path": "docs"}, calls[1].Args)
}

func TestParse_YAMLSyntax(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ToolCall
	}{
		{
			name: "flat with block literal",
			text: "```yaml\ntool: write_file\nargs:\n  path: notes/x.md\n  content: |\n    line one\n    line two\nintent: save\n```",
			want: ToolCall{Tool: "write_file", Args: Args{"path": "notes/x.md", "content": "line one\nline two"}, Intent: "save"},
		},
		{
			name: "nested tool_call",
			text: "```yml\ntool_call:\n  name: read_file\n  args:\n    path: a.txt\n```",
			want: ToolCall{Tool: "read_file", Args: Args{"path": "a.txt"}, Intent: "yaml_tool_call_syntax"},
		},
		{
			name: "args as json string",
			text: "```yaml\ntool_call:\n  tool: fetch_web\n  args: '{\"url\": \"https://go.dev\"}'\n```",
			want: ToolCall{Tool: "fetch_web", Args: Args{"url": "https://go.dev"}, Intent: "yaml_tool_call_syntax"},
		},
		{
			name: "line fallback for invalid yaml",
			text: "```yaml\ntool: read_file\nargs: {\"path\": \"b.txt\"}\nintent: \"look\"\n\t- broken: [\n```",
			want: ToolCall{Tool: "read_file", Args: Args{"path": "b.txt"}, Intent: "look"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := Parse(tt.text)
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0])
		})
	}
}

func TestParse_CallExpressions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ToolCall
	}{
		{
			name: "wrapped call with dict",
			text: `tool_call("read_file", {"path": "a.txt", "max_chars": -1}, intent="peek")`,
			want: ToolCall{Tool: "read_file", Args: Args{"path": "a.txt", "max_chars": int64(-1)}, Intent: "peek"},
		},
		{
			name: "wrapped call with identifier name",
			text: `tool_call(list_dir, {'path': 'src'})`,
			want: ToolCall{Tool: "list_dir", Args: Args{"path": "src"}, Intent: "python_tool_call_syntax"},
		},
		{
			name: "direct keyword call",
			text: "```python\nwrite_file(path=\"out.txt\", content=\"\"\"a\nb\"\"\", overwrite=True)\n```",
			want: ToolCall{Tool: "write_file", Args: Args{"path": "out.txt", "content": "a\nb", "overwrite": true}, Intent: "python_direct_tool_syntax"},
		},
		{
			name: "direct positional call",
			text: `Running run_command("uname -a") now`,
			want: ToolCall{Tool: "run_shell", Args: Args{"command": "uname -a"}, Intent: "python_direct_tool_syntax"},
		},
		{
			name: "none literal",
			text: `run_python(path="x.py", args=["-v"], cwd=None)`,
			want: ToolCall{Tool: "run_python", Args: Args{"path": "x.py", "args": []any{"-v"}, "cwd": nil}, Intent: "python_direct_tool_syntax"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := Parse(tt.text)
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0])
		})
	}
}

func TestParse_RejectsNonLiteralArguments(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "identifier value", text: `write_file(path=some_variable, content="x")`},
		{name: "call value", text: `read_file(path=os.getcwd())`},
		{name: "arithmetic value", text: `read_file(path="a" + suffix)`},
		{name: "wrapped call with variable args", text: `tool_call("read_file", args)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Parse(tt.text))
		})
	}
}

func TestParse_FourDialectsDeduplicate(t *testing.T) {
	dialects := map[string]string{
		"json":     "```tool_call\n{\"tool\": \"list_dir\", \"args\": {\"path\": \".\"}, \"intent\": \"scan\"}\n```",
		"yaml":     "```yaml\ntool: list_dir\nargs:\n  path: \".\"\nintent: scan\n```",
		"colon":    `tool_call: list_dir(path=".", intent="scan")`,
		"callexpr": `tool_call("list_dir", {"path": "."}, intent="scan")`,
	}
	want := ToolCall{Tool: "list_dir", Args: Args{"path": "."}, Intent: "scan"}

	combined := ""
	for name, text := range dialects {
		t.Run(name, func(t *testing.T) {
			calls := Parse(text)
			require.Len(t, calls, 1)
			assert.Equal(t, want, calls[0])
		})
		combined += text + "\n\n"
	}

	t.Run("all together", func(t *testing.T) {
		calls := Parse(combined)
		require.Len(t, calls, 1)
		assert.Equal(t, want, calls[0])
	})
}

func TestParse_DedupIgnoresKeyOrderAndFormatting(t *testing.T) {
	text := `{"tool":"read_file","args":{"path":"a","max_chars":5},"intent":"x"}
and again
{ "intent": "x", "args": { "max_chars": 5, "path": "a" }, "tool": "read_file" }`

	assert.Len(t, Parse(text), 1)
}

func TestParse_DropsCallsMissingRequiredArgs(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "write without content", text: `{"tool": "write_file", "args": {"path": "a.txt"}}`},
		{name: "write without path", text: `{"tool": "write_file", "args": {"content": "x"}}`},
		{name: "shell without command", text: `{"tool": "run_shell", "args": {}}`},
		{name: "fetch with blank url", text: `{"tool": "fetch_web", "args": {"url": "  "}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Parse(tt.text))
		})
	}
}

func TestParse_KeepsUnknownTools(t *testing.T) {
	calls := Parse(`{"tool": "foo", "args": {}}`)
	require.Len(t, calls, 1)
	assert.Equal(t, "foo", calls[0].Tool)
}

func TestParse_WriteFileDataSatisfiesContent(t *testing.T) {
	calls := Parse(`{"tool": "append_file", "args": {"path": "log.txt", "data": "x"}}`)
	require.Len(t, calls, 1)
}

func TestParse_MalformedTextNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"{",
		"```tool_call\n{\"tool\": ",
		"[TOOL_CALL](",
		"tool_call: read_file(path='''never closed",
		"write_file(path=\"a\", content=\"\"\"open",
		"```yaml\n: : :\n```",
		"tool_call(",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) }, in)
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"[TOOL_CALL](read_file, a.txt, max_chars=10)",
		`tool_call: write_file(path="x.py", content='''print(1)''', overwrite=true)`,
		"```yaml\ntool: list_dir\nargs:\n  path: docs\n```",
		`run_shell(command="df -h")`,
		`{"tool": "run_python", "args": {"path": "s.py", "args": ["-x", 1.5]}, "intent": "try"}`,
	}

	for _, in := range inputs {
		first := Parse(in)
		require.NotEmpty(t, first, in)
		for _, call := range first {
			again := Parse(call.Canonical())
			require.Len(t, again, 1, call.Canonical())
			assert.Equal(t, call, again[0])
		}
	}
}

func TestParse_JSONStringsDoNotLeakIntoTextDialects(t *testing.T) {
	text := "```tool_call\n{\"tool\": \"write_file\", \"args\": {\"path\": \"t.py\", \"content\": \"x = read_file('a.txt')\"}}\n```"

	calls := Parse(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "write_file", calls[0].Tool)
}

func TestParseFirst(t *testing.T) {
	call, ok := ParseFirst("nothing here")
	assert.False(t, ok)
	assert.Equal(t, ToolCall{}, call)

	call, ok = ParseFirst(`list_dir(".")`)
	require.True(t, ok)
	assert.Equal(t, "list_dir", call.Tool)
}

func TestCanonical(t *testing.T) {
	call := ToolCall{Tool: "read_file", Args: Args{"path": "<a&b>.txt"}, Intent: "i"}
	assert.Equal(t, "```tool_call\n{\"tool\":\"read_file\",\"args\":{\"path\":\"<a&b>.txt\"},\"intent\":\"i\"}\n```", call.Canonical())
}

func TestArgsAccessors(t *testing.T) {
	args := Args{
		"s":    "text",
		"n":    int64(7),
		"f":    float64(2),
		"ns":   "12",
		"b":    true,
		"bs":   "false",
		"list": []any{"a", int64(1)},
		"nil":  nil,
	}

	s, ok := args.String("n")
	assert.True(t, ok)
	assert.Equal(t, "7", s)
	_, ok = args.String("nil")
	assert.False(t, ok)
	assert.Equal(t, "fallback", args.StringOr("missing", "fallback"))

	assert.Equal(t, 7, args.Int("n", 0))
	assert.Equal(t, 2, args.Int("f", 0))
	assert.Equal(t, 12, args.Int("ns", 0))
	assert.Equal(t, 9, args.Int("s", 9))

	assert.True(t, args.Bool("b", false))
	assert.False(t, args.Bool("bs", true))
	assert.True(t, args.Bool("missing", true))

	list, ok := args.StringList("list")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "1"}, list)
	list, ok = args.StringList("s")
	assert.True(t, ok)
	assert.Equal(t, []string{"text"}, list)
}

func TestParseLiteral(t *testing.T) {
	v, ok := ParseLiteral(`{'tool': 'read_file', 'args': {'path': 'a'}, 'ok': True, 'n': None}`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"tool": "read_file", "args": map[string]any{"path": "a"}, "ok": true, "n": nil}, v)

	_, ok = ParseLiteral(`{'path': p}`)
	assert.False(t, ok)
}
