package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	yamlToolLineRe   = regexp.MustCompile(`(?m)^\s*tool\s*:\s*([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	yamlArgsLineRe   = regexp.MustCompile(`(?m)^\s*args\s*:\s*(\{.*\})\s*$`)
	yamlIntentLineRe = regexp.MustCompile(`(?m)^\s*intent\s*:\s*(.+?)\s*$`)
)

const yamlDefaultIntent = "yaml_tool_call_syntax"

// yamlExtractor handles ```yaml blocks in the flat form
// (tool/args/intent) and the nested tool_call: {name, args} form.
type yamlExtractor struct{}

func (yamlExtractor) Name() string { return "yaml" }

func (yamlExtractor) Extract(src *source) []ToolCall {
	var calls []ToolCall
	for _, b := range fencedBlocks(src.raw) {
		if b.lang != "yaml" && b.lang != "yml" {
			continue
		}
		if call, ok := decodeYAMLCall(b.body); ok {
			calls = append(calls, call)
			continue
		}
		if call, ok := scanYAMLCall(b.body); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func decodeYAMLCall(body string) (ToolCall, bool) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil || doc == nil {
		return ToolCall{}, false
	}
	fields := doc
	switch tc := doc["tool_call"].(type) {
	case map[string]any:
		fields = tc
	case string:
		fields = map[string]any{"tool": tc, "args": doc["args"], "intent": doc["intent"]}
	}

	tool, _ := fields["tool"].(string)
	if tool == "" {
		tool, _ = fields["name"].(string)
	}
	if strings.TrimSpace(tool) == "" {
		return ToolCall{}, false
	}
	rawArgs, present := fields["args"]
	if !present {
		rawArgs = fields["arguments"]
	}
	args, ok := argsFromValue(normalizeValue(rawArgs))
	if !ok {
		return ToolCall{}, false
	}
	for k, v := range args {
		if s, isString := v.(string); isString && strings.Contains(s, "\n") {
			args[k] = strings.TrimRight(s, "\n")
		}
	}
	intent := yamlDefaultIntent
	if s, ok := fields["intent"].(string); ok && strings.TrimSpace(s) != "" {
		intent = s
	}
	return newCall(tool, args, intent)
}

// scanYAMLCall is the line-oriented fallback for blocks that are not
// valid YAML but still carry tool:, args: {json} and intent: lines.
func scanYAMLCall(body string) (ToolCall, bool) {
	toolMatch := yamlToolLineRe.FindStringSubmatch(body)
	argsMatch := yamlArgsLineRe.FindStringSubmatch(body)
	if toolMatch == nil || argsMatch == nil {
		return ToolCall{}, false
	}
	obj, err := decodeObject(argsMatch[1])
	if err != nil {
		return ToolCall{}, false
	}
	intent := yamlDefaultIntent
	if m := yamlIntentLineRe.FindStringSubmatch(body); m != nil {
		intent = strings.Trim(m[1], `"'`)
	}
	return newCall(toolMatch[1], normalizeArgs(obj), intent)
}
