// Package parser recovers structured tool calls from free-form model text.
//
// Models emit tool calls in several dialects: fenced JSON payloads, the
// legacy [TOOL_CALL](...) form, colon headers (tool_call: name(...)),
// fenced YAML blocks and call expressions written as code. Parse runs
// every dialect over the full text, merges the results and removes
// duplicates by structural equality. It never fails; an empty result
// means the text held no recoverable call.
package parser

// source is the text handed to each extractor. masked is raw with the
// spans of already-recovered JSON payloads blanked out.
type source struct {
	raw    string
	masked string
}

func (s *source) claim(start, end int) {
	if start < 0 || end > len(s.masked) || start >= end {
		return
	}
	b := []byte(s.masked)
	for i := start; i < end; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
	s.masked = string(b)
}

// extractor is one dialect strategy.
type extractor interface {
	Name() string
	Extract(src *source) []ToolCall
}

// extractors run in order. The JSON extractor comes first so that its
// claimed spans are masked for the text dialects after it.
var extractors = []extractor{
	fencedJSONExtractor{},
	legacyExtractor{},
	colonExtractor{},
	yamlExtractor{},
	callExprExtractor{},
}

// Parse returns every tool call found in text, in discovery order,
// without duplicates. Calls missing a required argument are dropped.
func Parse(text string) []ToolCall {
	if text == "" {
		return nil
	}
	src := &source{raw: text, masked: text}
	var all []ToolCall
	for _, ex := range extractors {
		all = append(all, ex.Extract(src)...)
	}

	seen := make(map[string]bool, len(all))
	calls := make([]ToolCall, 0, len(all))
	for _, c := range all {
		if c.Tool == "" || !hasRequiredArgs(c.Tool, c.Args) {
			continue
		}
		sig := c.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		calls = append(calls, c)
	}
	return calls
}

// ParseFirst returns the first call Parse would return.
func ParseFirst(text string) (ToolCall, bool) {
	calls := Parse(text)
	if len(calls) == 0 {
		return ToolCall{}, false
	}
	return calls[0], true
}
