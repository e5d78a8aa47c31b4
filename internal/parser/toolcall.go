package parser

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Args holds tool arguments. Values are restricted to the JSON value set:
// string, int64, float64, bool, nil, []any and map[string]any. Every
// extractor normalizes its output into this set before a ToolCall is built.
type Args map[string]any

// ToolCall is one structured capability invocation recovered from model text.
type ToolCall struct {
	Tool   string `json:"tool"`
	Args   Args   `json:"args"`
	Intent string `json:"intent"`
}

// String returns the string value for key. Non-string scalars are
// formatted; missing keys, nil and composite values report false.
func (a Args) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// StringOr returns the string value for key or def when absent.
func (a Args) StringOr(key, def string) string {
	if s, ok := a.String(key); ok {
		return s
	}
	return def
}

// Int returns the integer value for key, accepting numeric strings.
func (a Args) Int(key string, def int) int {
	switch t := a[key].(type) {
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean value for key, accepting "true"/"false" strings.
func (a Args) Bool(key string, def bool) bool {
	switch t := a[key].(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	case int64:
		return t != 0
	}
	return def
}

// StringList returns the list value for key with every element formatted
// as a string. A single string value is returned as a one-element list.
func (a Args) StringList(key string) ([]string, bool) {
	switch t := a[key].(type) {
	case []any:
		out := make([]string, 0, len(t))
		for i := range t {
			s, ok := Args{"v": t[i]}.String("v")
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{t}, true
	}
	return nil, false
}

// Canonical renders the call as the single canonical fenced block that
// every downstream consumer understands.
func (c ToolCall) Canonical() string {
	return "```tool_call\n" + c.payloadJSON() + "\n```"
}

// Signature is the structural identity of a call: tool, args with sorted
// keys, and intent. Two calls with equal signatures are duplicates.
func (c ToolCall) Signature() string {
	return c.payloadJSON()
}

func (c ToolCall) payloadJSON() string {
	args := c.Args
	if args == nil {
		args = Args{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Tool   string `json:"tool"`
		Args   Args   `json:"args"`
		Intent string `json:"intent"`
	}{c.Tool, args, c.Intent}); err != nil {
		return `{"tool":` + strconv.Quote(c.Tool) + `,"args":{},"intent":` + strconv.Quote(c.Intent) + `}`
	}
	return strings.TrimRight(buf.String(), "\n")
}

// toolAliases maps alternate spellings to canonical tool names.
var toolAliases = map[string]string{
	"run_command":     "run_shell",
	"execute_command": "run_shell",
	"shell":           "run_shell",
	"file_read":       "read_file",
	"read":            "read_file",
	"dir_list":        "list_dir",
	"web_fetch":       "fetch_web",
	"web_search":      "search_web",
}

// CanonicalToolName trims name and collapses known aliases.
func CanonicalToolName(name string) string {
	cleaned := strings.TrimSpace(name)
	if canonical, ok := toolAliases[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// KnownTools lists the built-in tool names recognized by the direct
// call-expression dialect.
var KnownTools = []string{
	"read_file",
	"list_dir",
	"write_file",
	"append_file",
	"run_shell",
	"run_python",
	"check_python_syntax",
	"fetch_web",
	"search_web",
	"check_capabilities",
}

var pathTools = map[string]bool{
	"read_file":           true,
	"list_dir":            true,
	"write_file":          true,
	"append_file":         true,
	"run_python":          true,
	"check_python_syntax": true,
}

// applyPositional maps positional values onto named args. Existing keys
// win, so keyword arguments take precedence.
func applyPositional(tool string, positional []any, args Args) {
	if len(positional) == 0 {
		return
	}
	setString := func(key string, v any) {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return
		}
		if _, exists := args[key]; !exists {
			args[key] = s
		}
	}
	switch {
	case pathTools[tool]:
		setString("path", positional[0])
		if (tool == "write_file" || tool == "append_file") && len(positional) > 1 {
			if _, exists := args["content"]; !exists {
				args["content"] = positional[1]
			}
		}
	case tool == "run_shell":
		setString("command", positional[0])
	case tool == "fetch_web":
		setString("url", positional[0])
	case tool == "search_web":
		setString("query", positional[0])
	}
}

// hasRequiredArgs reports whether args carry every argument tool needs.
// Unknown tools have no requirements so they can reach unknown-tool handling.
func hasRequiredArgs(tool string, args Args) bool {
	nonEmpty := func(key string) bool {
		s, ok := args[key].(string)
		return ok && strings.TrimSpace(s) != ""
	}
	switch {
	case tool == "write_file" || tool == "append_file":
		if !nonEmpty("path") {
			return false
		}
		if _, ok := args["content"]; ok {
			return true
		}
		_, ok := args["data"]
		return ok
	case pathTools[tool]:
		return nonEmpty("path")
	case tool == "run_shell":
		return nonEmpty("command")
	case tool == "fetch_web":
		return nonEmpty("url")
	case tool == "search_web":
		return nonEmpty("query")
	}
	return true
}

// rootArgKeys are payload keys lifted into args when a JSON payload names
// a tool but carries its arguments at the top level.
var rootArgKeys = map[string]bool{
	"path":        true,
	"max_chars":   true,
	"url":         true,
	"query":       true,
	"engine":      true,
	"max_results": true,
	"output_path": true,
	"command":     true,
	"content":     true,
	"overwrite":   true,
	"args":        true,
	"cwd":         true,
	"timeout":     true,
}

// normalizeValue converts decoded values into the closed JSON value set.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := Args{"k": normalizeValue(k)}.String("k")
			if !ok {
				continue
			}
			out[key] = normalizeValue(val)
		}
		return out
	}
	return nil
}

func normalizeArgs(m map[string]any) Args {
	out := make(Args, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

// newCall builds a ToolCall with a canonical tool name. A tool string of
// the form name(a, b) contributes positional args.
func newCall(tool string, args Args, intent string) (ToolCall, bool) {
	name := strings.TrimSpace(tool)
	if m := callableToolRe.FindStringSubmatch(name); m != nil {
		name = m[1]
		raw := strings.TrimSpace(m[2])
		if raw != "" {
			var positional []any
			for _, tok := range strings.Split(raw, ",") {
				tok = strings.TrimSpace(tok)
				if tok != "" {
					positional = append(positional, coerceLiteral(tok))
				}
			}
			merged := make(Args, len(args)+1)
			for k, v := range args {
				merged[k] = v
			}
			applyPositional(CanonicalToolName(name), positional, merged)
			args = merged
		}
	}
	name = CanonicalToolName(name)
	if name == "" {
		return ToolCall{}, false
	}
	if args == nil {
		args = Args{}
	}
	return ToolCall{Tool: name, Args: args, Intent: strings.TrimSpace(intent)}, true
}

// NewToolCall builds a ToolCall from decoded values. Unlike Parse it does
// not drop calls that miss required arguments.
func NewToolCall(tool string, args map[string]any, intent string) (ToolCall, bool) {
	return newCall(tool, normalizeArgs(args), intent)
}
