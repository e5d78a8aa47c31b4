package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactResult(t *testing.T) {
	long := strings.Repeat("ż", FieldLimit+10)
	r := succeed("run_shell", map[string]any{"stdout": long, "stderr": "warn", "exit_code": 0})

	got := CompactResult(r)

	assert.Equal(t, strings.Repeat("ż", FieldLimit)+TruncatedMarker, got["stdout"])
	assert.Equal(t, true, got["stdout_truncated"])
	assert.Equal(t, FieldLimit+10, got["stdout_total_chars"])
	assert.Equal(t, "warn", got["stderr"])
	assert.NotContains(t, got, "stderr_truncated")
	assert.Equal(t, long, r.Fields["stdout"], "the original result is not modified")
}

func TestCompactPayload(t *testing.T) {
	small := []Outcome{{Tool: "list_dir", Intent: "look", Result: succeed("list_dir", map[string]any{"items": []string{"a"}})}}

	var decoded struct {
		Results []map[string]any `json:"results"`
		Compact bool             `json:"compact"`
	}
	require.NoError(t, json.Unmarshal([]byte(CompactPayload(small)), &decoded))
	require.Len(t, decoded.Results, 1)
	assert.False(t, decoded.Compact)
	assert.Equal(t, "look", decoded.Results[0]["intent"])
	result := decoded.Results[0]["result"].(map[string]any)
	assert.Equal(t, []any{"a"}, result["items"])
}

func TestCompactPayload_SlimFormWhenLarge(t *testing.T) {
	var outcomes []Outcome
	for range 8 {
		outcomes = append(outcomes, Outcome{
			Tool:   "read_file",
			Intent: "read",
			Result: succeed("read_file", map[string]any{"path": "/w/a.txt", "content": strings.Repeat("x", 5000)}),
		})
	}

	payload := CompactPayload(outcomes)

	var decoded struct {
		Results []struct {
			Result map[string]any `json:"result"`
		} `json:"results"`
		Compact bool `json:"compact"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.True(t, decoded.Compact)
	require.Len(t, decoded.Results, 8)
	slim := decoded.Results[0].Result
	assert.Equal(t, true, slim["ok"])
	assert.Equal(t, "/w/a.txt", slim["path"])
	assert.Equal(t, true, slim["content_truncated"])
	assert.NotContains(t, slim, "content")
	assert.Less(t, len(payload), PayloadLimit)
}
