package parser

import (
	"regexp"
	"strings"

	"go.starlark.net/syntax"
)

var (
	callStartRe     = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*[ \t]*\(`)
	exprFileOptions = &syntax.FileOptions{}
)

const (
	callExprIntent   = "python_tool_call_syntax"
	directExprIntent = "python_direct_tool_syntax"
)

// callExprExtractor handles call expressions written as code:
// tool_call(name, {...}, intent="...") and direct calls such as
// write_file(path="a.txt", content="x"). Only literal arguments are
// accepted; a single non-literal argument rejects the whole call.
type callExprExtractor struct{}

func (callExprExtractor) Name() string { return "callexpr" }

func (callExprExtractor) Extract(src *source) []ToolCall {
	var calls []ToolCall
	for _, snippet := range locateInvocations(src.masked, invocationNames()) {
		expr, err := exprFileOptions.ParseExpr("call", snippet, 0)
		if err != nil {
			continue
		}
		ce, ok := expr.(*syntax.CallExpr)
		if !ok {
			continue
		}
		fn, ok := ce.Fn.(*syntax.Ident)
		if !ok {
			continue
		}
		var call ToolCall
		if fn.Name == "tool_call" {
			call, ok = wrappedInvocation(ce)
		} else {
			call, ok = directInvocation(fn.Name, ce)
		}
		if ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func invocationNames() map[string]bool {
	names := map[string]bool{"tool_call": true}
	for _, n := range KnownTools {
		names[n] = true
	}
	for alias := range toolAliases {
		names[alias] = true
	}
	return names
}

// locateInvocations returns the source text of every name(...) call in
// text whose name is in names. Parentheses inside string literals,
// including triple-quoted ones, do not count.
func locateInvocations(text string, names map[string]bool) []string {
	var snippets []string
	pos := 0
	for pos < len(text) {
		loc := callStartRe.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		open := pos + loc[1] - 1
		name := strings.TrimRight(text[start:open], " \t")
		if !names[name] || skipInvocation(text, start) {
			pos = open + 1
			continue
		}
		end, ok := matchParens(text, open)
		if !ok {
			pos = open + 1
			continue
		}
		snippets = append(snippets, text[start:end+1])
		pos = end + 1
	}
	return snippets
}

// skipInvocation reports whether the call at start is a method call,
// sits inside a quoted string, or is the tail of a tool_call: header
// handled by the colon dialect.
func skipInvocation(text string, start int) bool {
	i := start - 1
	for i >= 0 && (text[i] == ' ' || text[i] == '\t') {
		i--
	}
	if i < 0 {
		return false
	}
	switch text[i] {
	case '.', '"', '\'', '`':
		return true
	case ':':
		head := strings.TrimRight(text[:i], " \t")
		return strings.HasSuffix(strings.ToLower(head), "tool_call")
	}
	return false
}

// matchParens returns the index of the ')' closing the '(' at open.
func matchParens(s string, open int) (int, bool) {
	depth := 0
	i := open
	for i < len(s) {
		ch := s[i]
		if ch == '\'' || ch == '"' {
			if i+2 < len(s) && s[i+1] == ch && s[i+2] == ch {
				q := s[i : i+3]
				end := strings.Index(s[i+3:], q)
				if end < 0 {
					return 0, false
				}
				i += 3 + end + 3
				continue
			}
			j := i + 1
			for j < len(s) && s[j] != ch {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			continue
		}
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

func wrappedInvocation(ce *syntax.CallExpr) (ToolCall, bool) {
	var (
		tool       string
		args       = Args{}
		intent     = callExprIntent
		positional int
	)
	for _, arg := range ce.Args {
		if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
			key, ok := kw.X.(*syntax.Ident)
			if !ok {
				return ToolCall{}, false
			}
			value, ok := literalValue(kw.Y)
			if !ok {
				return ToolCall{}, false
			}
			switch key.Name {
			case "intent":
				if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
					intent = s
				}
			case "args", "arguments":
				m, ok := value.(map[string]any)
				if !ok {
					return ToolCall{}, false
				}
				for k, v := range m {
					args[k] = v
				}
			case "name", "tool":
				s, ok := value.(string)
				if !ok {
					return ToolCall{}, false
				}
				tool = s
			default:
				args[key.Name] = value
			}
			continue
		}
		switch positional {
		case 0:
			if id, ok := arg.(*syntax.Ident); ok {
				tool = id.Name
			} else if v, ok := literalValue(arg); ok {
				s, isString := v.(string)
				if !isString {
					return ToolCall{}, false
				}
				tool = s
			} else {
				return ToolCall{}, false
			}
		case 1:
			v, ok := literalValue(arg)
			if !ok {
				return ToolCall{}, false
			}
			m, ok := v.(map[string]any)
			if !ok {
				return ToolCall{}, false
			}
			for k, val := range m {
				if _, exists := args[k]; !exists {
					args[k] = val
				}
			}
		default:
			return ToolCall{}, false
		}
		positional++
	}
	return newCall(tool, args, intent)
}

func directInvocation(name string, ce *syntax.CallExpr) (ToolCall, bool) {
	tool := CanonicalToolName(name)
	args := Args{}
	intent := directExprIntent
	var positional []any
	for _, arg := range ce.Args {
		if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
			key, ok := kw.X.(*syntax.Ident)
			if !ok {
				return ToolCall{}, false
			}
			value, ok := literalValue(kw.Y)
			if !ok {
				return ToolCall{}, false
			}
			if key.Name == "intent" {
				if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
					intent = s
				}
				continue
			}
			args[key.Name] = value
			continue
		}
		value, ok := literalValue(arg)
		if !ok {
			return ToolCall{}, false
		}
		positional = append(positional, value)
	}
	applyPositional(tool, positional, args)
	return newCall(tool, args, intent)
}

// literalValue evaluates the literal subset of the expression grammar:
// strings, numbers, signed numbers, true/false/none in any case, lists,
// tuples and dicts of literals.
func literalValue(e syntax.Expr) (any, bool) {
	switch x := e.(type) {
	case *syntax.Literal:
		switch v := x.Value.(type) {
		case string:
			return v, true
		case int64:
			return v, true
		case float64:
			return v, true
		}
		return nil, false
	case *syntax.Ident:
		switch strings.ToLower(x.Name) {
		case "true":
			return true, true
		case "false":
			return false, true
		case "none", "null":
			return nil, true
		}
		return nil, false
	case *syntax.UnaryExpr:
		if x.Op != syntax.MINUS && x.Op != syntax.PLUS {
			return nil, false
		}
		v, ok := literalValue(x.X)
		if !ok {
			return nil, false
		}
		sign := int64(1)
		if x.Op == syntax.MINUS {
			sign = -1
		}
		switch n := v.(type) {
		case int64:
			return sign * n, true
		case float64:
			return float64(sign) * n, true
		}
		return nil, false
	case *syntax.ParenExpr:
		return literalValue(x.X)
	case *syntax.ListExpr:
		return literalList(x.List)
	case *syntax.TupleExpr:
		return literalList(x.List)
	case *syntax.DictExpr:
		out := make(map[string]any, len(x.List))
		for _, item := range x.List {
			entry, ok := item.(*syntax.DictEntry)
			if !ok {
				return nil, false
			}
			k, ok := literalValue(entry.Key)
			if !ok {
				return nil, false
			}
			key, ok := Args{"k": k}.String("k")
			if !ok {
				return nil, false
			}
			v, ok := literalValue(entry.Value)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	}
	return nil, false
}

func literalList(items []syntax.Expr) (any, bool) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, ok := literalValue(item)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// ParseLiteral evaluates text as a single literal expression, such as a
// dict written with single quotes and True/False/None.
func ParseLiteral(text string) (any, bool) {
	expr, err := exprFileOptions.ParseExpr("literal", strings.TrimSpace(text), 0)
	if err != nil {
		return nil, false
	}
	return literalValue(expr)
}
