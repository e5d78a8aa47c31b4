package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\n?(.*?)```")

type fencedBlock struct {
	lang       string
	body       string
	start, end int
}

// fencedBlocks returns every ``` fenced block in text with its language tag.
func fencedBlocks(text string) []fencedBlock {
	var blocks []fencedBlock
	for _, m := range fencedBlockRe.FindAllStringSubmatchIndex(text, -1) {
		blocks = append(blocks, fencedBlock{
			lang:  strings.ToLower(text[m[2]:m[3]]),
			body:  strings.TrimSpace(text[m[4]:m[5]]),
			start: m[0],
			end:   m[1],
		})
	}
	return blocks
}

// ExtractJSON searches text for a JSON object associated with key.
//
// Strategy:
//  1. Look for a ```json fenced code block that contains key and parse it.
//  2. Fall back to bracket-matching: find the first '{' after key, then
//     walk forward counting nesting depth while respecting string literals
//     (including escaped quotes). Parse the resulting substring.
//
// If key is not found anywhere in text the function returns (nil, nil).
// Malformed JSON that is found but cannot be parsed returns a non-nil error.
func ExtractJSON(text string, key string) (map[string]any, error) {
	if text == "" || !strings.Contains(text, key) {
		return nil, nil
	}
	if result, err := extractFromCodeBlock(text, key); result != nil || err != nil {
		return result, err
	}
	return extractByBracketMatch(text, key)
}

// ExtractJSONObject returns the first JSON object found in text, trying
// fenced blocks before bracket matching. It returns an error when no
// object can be decoded.
func ExtractJSONObject(text string) (map[string]any, error) {
	for _, b := range fencedBlocks(text) {
		if !strings.HasPrefix(b.body, "{") {
			continue
		}
		if obj, err := decodeObject(b.body); err == nil {
			return obj, nil
		}
	}
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := matchBraces(text[i:])
		if !ok {
			continue
		}
		if obj, err := decodeObject(text[i : i+end+1]); err == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("no JSON object found")
}

func decodeObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("not an object")
	}
	return obj, nil
}

// extractFromCodeBlock looks for ```json ... ``` blocks that contain key
// and attempts to parse the JSON object from within.
func extractFromCodeBlock(text string, key string) (map[string]any, error) {
	for _, b := range fencedBlocks(text) {
		if b.lang != "json" || !strings.Contains(b.body, key) {
			continue
		}
		var result map[string]any
		if err := json.Unmarshal([]byte(b.body), &result); err != nil {
			return nil, fmt.Errorf("json in code block: %w", err)
		}
		return result, nil
	}
	return nil, nil
}

// extractByBracketMatch locates the JSON object that contains or
// follows key. It first looks backward from key for a preceding '{',
// then forward. In each case it uses matchBraces to isolate the
// complete object.
func extractByBracketMatch(text string, key string) (map[string]any, error) {
	keyIdx := strings.Index(text, key)
	if keyIdx == -1 {
		return nil, nil
	}

	if braceStart := strings.LastIndex(text[:keyIdx], "{"); braceStart >= 0 {
		raw := text[braceStart:]
		if end, ok := matchBraces(raw); ok {
			jsonStr := raw[:end+1]
			if strings.Contains(jsonStr, key) {
				var result map[string]any
				if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
					return result, nil
				}
			}
		}
	}

	braceStart := strings.Index(text[keyIdx:], "{")
	if braceStart == -1 {
		return nil, nil
	}
	braceStart += keyIdx

	raw := text[braceStart:]
	end, ok := matchBraces(raw)
	if !ok {
		return nil, fmt.Errorf("unmatched braces after key %q", key)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(raw[:end+1]), &result); err != nil {
		return nil, fmt.Errorf("bracket-matched json: %w", err)
	}
	return result, nil
}

// matchBraces returns the index of the closing '}' that matches the
// opening '{' at position 0, correctly handling string literals
// (including escaped quotes), nested objects, and arrays.
// Returns (index, true) on success or (0, false) if unmatched.
func matchBraces(s string) (int, bool) {
	if len(s) == 0 || s[0] != '{' {
		return 0, false
	}

	braceDepth := 0
	bracketDepth := 0
	inString := false
	i := 0

	for i < len(s) {
		ch := s[i]

		if inString {
			if ch == '\\' {
				i += 2
				continue
			}
			if ch == '"' {
				inString = false
			}
			i++
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			braceDepth++
		case '}':
			braceDepth--
			if braceDepth == 0 && bracketDepth == 0 {
				return i, true
			}
		case '[':
			bracketDepth++
		case ']':
			bracketDepth--
		}
		i++
	}

	return 0, false
}

// fencedJSONExtractor recovers calls from JSON payloads: fenced blocks of
// any language and bare top-level objects. Spans that produced calls are
// masked so the text dialects do not read tool-looking strings inside
// JSON values a second time.
type fencedJSONExtractor struct{}

func (fencedJSONExtractor) Name() string { return "json" }

func (fencedJSONExtractor) Extract(src *source) []ToolCall {
	var calls []ToolCall
	for _, b := range fencedBlocks(src.raw) {
		if !strings.HasPrefix(b.body, "{") {
			continue
		}
		obj, err := decodeObject(b.body)
		if err != nil {
			continue
		}
		if found := payloadCalls(obj); len(found) > 0 {
			calls = append(calls, found...)
			src.claim(b.start, b.end)
		}
	}

	text := src.raw
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := matchBraces(text[i:])
		if !ok {
			continue
		}
		obj, err := decodeObject(text[i : i+end+1])
		if err != nil {
			continue
		}
		if found := payloadCalls(obj); len(found) > 0 {
			calls = append(calls, found...)
			src.claim(i, i+end+1)
		}
		i += end
	}
	return calls
}

// payloadCalls maps one decoded JSON payload onto zero or more calls.
func payloadCalls(payload map[string]any) []ToolCall {
	var calls []ToolCall
	if call, ok := singlePayloadCall(payload); ok {
		calls = append(calls, call)
	}
	items, _ := payload["tool_calls"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			name, _ = m["tool"].(string)
		}
		rawArgs, present := m["args"]
		if !present {
			rawArgs = m["arguments"]
		}
		args, ok := argsFromValue(rawArgs)
		if !ok || name == "" {
			continue
		}
		intent := fmt.Sprint(orEmpty(m["intent"]))
		if call, ok := newCall(name, args, intent); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func singlePayloadCall(payload map[string]any) (ToolCall, bool) {
	tool, _ := payload["tool"].(string)
	rawArgs, present := payload["args"]
	if !present {
		rawArgs = payload["arguments"]
	}
	intent, _ := payload["intent"].(string)

	if strings.TrimSpace(tool) == "" {
		switch tc := payload["tool_call"].(type) {
		case map[string]any:
			name, ok := tc["name"].(string)
			if !ok {
				name, ok = tc["tool"].(string)
			}
			if !ok {
				return ToolCall{}, false
			}
			tool = name
			rawArgs = tc["arguments"]
			if rawArgs == nil {
				rawArgs = tc["args"]
			}
			if intent == "" {
				intent, _ = tc["intent"].(string)
			}
		case string:
			tool = tc
		}
	}
	if strings.TrimSpace(tool) == "" {
		return ToolCall{}, false
	}
	args, ok := argsFromValue(rawArgs)
	if !ok {
		return ToolCall{}, false
	}
	call, ok := newCall(tool, args, intent)
	if !ok {
		return ToolCall{}, false
	}
	if len(call.Args) == 0 {
		call.Args = inferRootArgs(payload)
	}
	return call, true
}

// argsFromValue accepts a missing value, an object, or a JSON string that
// decodes to an object.
func argsFromValue(v any) (Args, bool) {
	switch t := v.(type) {
	case nil:
		return Args{}, true
	case map[string]any:
		return normalizeArgs(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return Args{}, true
		}
		obj, err := decodeObject(s)
		if err != nil {
			return nil, false
		}
		return normalizeArgs(obj), true
	}
	return nil, false
}

func inferRootArgs(payload map[string]any) Args {
	args := Args{}
	for k, v := range payload {
		if _, nested := v.(map[string]any); nested && k == "args" {
			continue
		}
		if rootArgKeys[k] {
			args[k] = normalizeValue(v)
		}
	}
	return args
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
