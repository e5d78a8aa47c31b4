package supervisor

import (
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
)

// NormalizeRepairedAnswer rewrites a repaired answer into the single
// canonical tool_call block when it carries a call. Parser output is
// tried first, then a JSON object, then a literal dict written with single
// quotes or True/False/None. Anything else is returned unchanged.
func NormalizeRepairedAnswer(repaired string) string {
	if call, ok := parser.ParseFirst(repaired); ok {
		return call.Canonical()
	}

	obj := repairedObject(repaired)
	if obj == nil {
		return repaired
	}
	if call, ok := callFromObject(obj); ok {
		return call.Canonical()
	}
	return repaired
}

func repairedObject(text string) map[string]any {
	if obj, err := parser.ExtractJSONObject(text); err == nil {
		return obj
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil
	}
	v, ok := parser.ParseLiteral(trimmed)
	if !ok {
		return nil
	}
	obj, _ := v.(map[string]any)
	return obj
}

func callFromObject(obj map[string]any) (parser.ToolCall, bool) {
	intent, _ := obj["intent"].(string)
	args, argsOK := obj["args"].(map[string]any)

	if tool, ok := obj["tool"].(string); ok && argsOK {
		return parser.NewToolCall(tool, args, intent)
	}
	switch tc := obj["tool_call"].(type) {
	case string:
		if argsOK {
			return parser.NewToolCall(tc, args, intent)
		}
	case map[string]any:
		name, ok := tc["name"].(string)
		if !ok {
			break
		}
		arguments := map[string]any{}
		if raw, present := tc["arguments"]; present {
			if arguments, ok = raw.(map[string]any); !ok {
				break
			}
		}
		return parser.NewToolCall(name, arguments, intent)
	}
	return parser.ToolCall{}, false
}
