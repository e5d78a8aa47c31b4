package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Review holds the fields of a reviewer verdict.
type Review struct {
	// Status is the lowercased verdict. Known values: ok, repair.
	Status string

	// ReasonCode is the uppercased reason, OTHER when missing.
	ReasonCode string

	// WorkState is the reviewer's view of task progress, uppercased.
	// Validation against the allowed set is left to the caller.
	WorkState string

	// RepairedAnswer is the replacement answer proposed for status=repair.
	RepairedAnswer string

	// Notes is free-form reviewer commentary.
	Notes string
}

// ParseReview extracts a verdict object from reviewer output. A fenced
// wrapper is tolerated; otherwise the object carrying a "status" key is
// located, and as a last resort the text between the first '{' and the
// last '}' is tried. Both snake_case and camelCase keys are accepted.
//
// Returns (nil, error) when no JSON object can be decoded.
func ParseReview(text string) (*Review, error) {
	raw, err := decodeReviewObject(text)
	if err != nil {
		return nil, err
	}

	field := func(keys ...string) (any, bool) {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				return v, true
			}
		}
		return nil, false
	}
	str := func(keys ...string) string {
		v, ok := field(keys...)
		if !ok || v == nil {
			return ""
		}
		if s, isString := v.(string); isString {
			return strings.TrimSpace(s)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return string(b)
	}

	r := &Review{
		ReasonCode:     strings.ToUpper(str("reason_code", "reasonCode")),
		WorkState:      strings.ToUpper(str("work_state", "workState")),
		RepairedAnswer: str("repaired_answer", "repairedAnswer"),
		Notes:          str("notes"),
	}
	if s, ok := raw["status"].(string); ok {
		r.Status = strings.ToLower(strings.TrimSpace(s))
	}
	if r.ReasonCode == "" {
		r.ReasonCode = "OTHER"
	}
	return r, nil
}

func decodeReviewObject(text string) (map[string]any, error) {
	candidate := strings.TrimSpace(text)
	if strings.HasPrefix(candidate, "```") {
		lines := strings.Split(candidate, "\n")
		if len(lines) >= 3 {
			candidate = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
		return obj, nil
	}
	if found, err := ExtractJSON(candidate, `"status"`); err == nil && found != nil {
		return found, nil
	}
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("reviewer output is not JSON")
	}
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("reviewer json: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("reviewer output is not a JSON object")
	}
	return obj, nil
}
