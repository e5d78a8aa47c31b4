package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	callableToolRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)
	legacyRe       = regexp.MustCompile(`(?is)\[TOOL_CALL\]\((.*?)\)`)
	colonHeaderRe  = regexp.MustCompile(`(?i)tool_call[ \t]*:[ \t]*([A-Za-z_][A-Za-z0-9_]*)[ \t]*\(`)
	integerRe      = regexp.MustCompile(`^-?\d+$`)
)

// stripWrappers removes one layer of matching backticks or quotes.
func stripWrappers(value string) string {
	cleaned := strings.TrimSpace(value)
	if len(cleaned) >= 2 {
		first, last := cleaned[0], cleaned[len(cleaned)-1]
		if first == last && (first == '`' || first == '"' || first == '\'') {
			return cleaned[1 : len(cleaned)-1]
		}
	}
	return cleaned
}

// coerceLiteral applies the minimal literal rule used by string-only
// dialects: integers, true/false, otherwise the unwrapped string.
func coerceLiteral(raw string) any {
	value := stripWrappers(raw)
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if integerRe.MatchString(value) {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return value
}

// legacyExtractor handles [TOOL_CALL](tool, positional, key=value).
type legacyExtractor struct{}

func (legacyExtractor) Name() string { return "legacy" }

func (legacyExtractor) Extract(src *source) []ToolCall {
	var calls []ToolCall
	for _, m := range legacyRe.FindAllStringSubmatch(src.masked, -1) {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(body, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		tool := CanonicalToolName(stripWrappers(parts[0]))
		if tool == "" {
			continue
		}
		args := Args{}
		intent := "legacy_tool_call_syntax"
		var positional []any
		for _, tok := range parts[1:] {
			key, value, named := strings.Cut(tok, "=")
			if !named {
				positional = append(positional, coerceLiteral(tok))
				continue
			}
			key = stripWrappers(key)
			if key == "" {
				continue
			}
			if key == "intent" {
				intent = stripWrappers(value)
				continue
			}
			args[key] = coerceLiteral(value)
		}
		applyPositional(tool, positional, args)
		if call, ok := newCall(tool, args, intent); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// colonExtractor handles tool_call: name(key=value, ...) headers. Values
// may use triple quotes and span lines.
type colonExtractor struct{}

func (colonExtractor) Name() string { return "colon" }

func (colonExtractor) Extract(src *source) []ToolCall {
	text := src.masked
	matches := colonHeaderRe.FindAllStringSubmatchIndex(text, -1)
	var calls []ToolCall
	for i, m := range matches {
		tool := CanonicalToolName(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		items := scanArgList(text[m[1]:end])
		args := Args{}
		intent := "colon_tool_call_syntax"
		var positional []any
		for _, it := range items {
			switch {
			case it.key == "":
				positional = append(positional, it.value)
			case it.key == "intent":
				if s, ok := it.value.(string); ok && strings.TrimSpace(s) != "" {
					intent = s
				}
			default:
				args[it.key] = it.value
			}
		}
		applyPositional(tool, positional, args)
		if call, ok := newCall(tool, args, intent); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

type argItem struct {
	key   string
	value any
}

// scanArgList reads a loose key=value argument list that starts right
// after an opening parenthesis. Scanning stops at the closing parenthesis
// or the end of s.
func scanArgList(s string) []argItem {
	var items []argItem
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r' || s[i] == ',') {
			i++
		}
		if i >= len(s) || s[i] == ')' {
			break
		}
		key := ""
		if j := scanIdent(s, i); j > i {
			k := j
			for k < len(s) && (s[k] == ' ' || s[k] == '\t') {
				k++
			}
			if k < len(s) && s[k] == '=' && (k+1 >= len(s) || s[k+1] != '=') {
				key = s[i:j]
				i = k + 1
				for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
					i++
				}
			}
		}
		value, next := scanValue(s, i)
		if next <= i {
			break
		}
		items = append(items, argItem{key: key, value: value})
		i = next
	}
	return items
}

func scanIdent(s string, i int) int {
	j := i
	for j < len(s) {
		c := s[j]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (j > i && c >= '0' && c <= '9') {
			j++
			continue
		}
		break
	}
	return j
}

// scanValue reads one value starting at i and returns it with the index
// just past it.
func scanValue(s string, i int) (any, int) {
	if i >= len(s) {
		return nil, i
	}
	for _, q := range []string{`'''`, `"""`} {
		if strings.HasPrefix(s[i:], q) {
			end := strings.Index(s[i+3:], q)
			if end < 0 {
				return s[i+3:], len(s)
			}
			return s[i+3 : i+3+end], i + 3 + end + 3
		}
	}
	if c := s[i]; c == '\'' || c == '"' {
		var b strings.Builder
		j := i + 1
		for j < len(s) {
			ch := s[j]
			if ch == '\\' && j+1 < len(s) {
				b.WriteByte(unescapeByte(s[j+1]))
				j += 2
				continue
			}
			if ch == c {
				return b.String(), j + 1
			}
			b.WriteByte(ch)
			j++
		}
		return b.String(), j
	}
	depth := 0
	j := i
	for j < len(s) {
		ch := s[j]
		if ch == '{' || ch == '[' {
			depth++
		} else if ch == '}' || ch == ']' {
			depth--
		} else if depth <= 0 && (ch == ',' || ch == ')') {
			break
		}
		j++
	}
	raw := strings.TrimSpace(s[i:j])
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var decoded any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err == nil {
			return normalizeValue(decoded), j
		}
	}
	return coerceLiteral(raw), j
}

func unescapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return c
}
