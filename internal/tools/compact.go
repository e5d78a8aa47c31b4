package tools

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const (
	// FieldLimit bounds content, stdout and stderr in the payload sent back
	// to the model.
	FieldLimit = 1800

	// PayloadLimit is the size above which the slim payload is used.
	PayloadLimit = 10000

	// TruncatedMarker ends every shortened field.
	TruncatedMarker = "…[truncated]"
)

var compactedFields = []string{"content", "stdout", "stderr"}

// Outcome pairs an executed call with its result.
type Outcome struct {
	Tool   string `json:"tool"`
	Intent string `json:"intent"`
	Result Result `json:"result"`
}

// CompactResult shortens long text fields and records their original size
// in <field>_truncated and <field>_total_chars.
func CompactResult(r Result) map[string]any {
	out := r.Map()
	for _, key := range compactedFields {
		s, ok := out[key].(string)
		if !ok {
			continue
		}
		total := utf8.RuneCountInString(s)
		if total <= FieldLimit {
			continue
		}
		out[key] = string([]rune(s)[:FieldLimit]) + TruncatedMarker
		out[key+"_truncated"] = true
		out[key+"_total_chars"] = total
	}
	return out
}

type payloadItem struct {
	Tool   string         `json:"tool"`
	Intent string         `json:"intent"`
	Result map[string]any `json:"result"`
}

// CompactPayload renders outcomes as {"results":[...]}. When the rendering
// exceeds PayloadLimit characters each result is reduced to its status
// fields and "compact":true is added.
func CompactPayload(outcomes []Outcome) string {
	items := make([]payloadItem, 0, len(outcomes))
	for _, o := range outcomes {
		items = append(items, payloadItem{Tool: o.Tool, Intent: o.Intent, Result: CompactResult(o.Result)})
	}
	full := encode(map[string]any{"results": items})
	if utf8.RuneCountInString(full) <= PayloadLimit {
		return full
	}

	slim := make([]payloadItem, 0, len(items))
	for _, item := range items {
		r := item.Result
		tool, _ := r["tool"].(string)
		if tool == "" {
			tool = item.Tool
		}
		slim = append(slim, payloadItem{
			Tool:   item.Tool,
			Intent: item.Intent,
			Result: map[string]any{
				"ok":                r["ok"],
				"tool":              tool,
				"error":             r["error"],
				"path":              r["path"],
				"url":               r["url"],
				"exit_code":         r["exit_code"],
				"content_truncated": r["content_truncated"] == true,
				"stdout_truncated":  r["stdout_truncated"] == true,
				"stderr_truncated":  r["stderr_truncated"] == true,
			},
		})
	}
	return encode(map[string]any{"results": slim, "compact": true})
}

func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return `{"results":[]}`
	}
	return strings.TrimRight(buf.String(), "\n")
}
