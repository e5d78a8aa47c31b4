package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReview(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *Review
		wantErr bool
	}{
		{
			name: "plain snake_case",
			text: `{"status": "OK", "reason_code": "ok", "work_state": "running", "repaired_answer": "", "notes": " fine "}`,
			want: &Review{Status: "ok", ReasonCode: "OK", WorkState: "RUNNING", Notes: "fine"},
		},
		{
			name: "fenced camelCase",
			text: "```json\n{\"status\": \"repair\", \"reasonCode\": \"NO_TOOL_CALL\", \"workState\": \"STALLED\", \"repairedAnswer\": \"list_dir('.')\"}\n```",
			want: &Review{Status: "repair", ReasonCode: "NO_TOOL_CALL", WorkState: "STALLED", RepairedAnswer: "list_dir('.')"},
		},
		{
			name: "prose around object",
			text: `Here is my verdict: {"status": "repair", "repaired_answer": "x"} hope it helps`,
			want: &Review{Status: "repair", ReasonCode: "OTHER", RepairedAnswer: "x"},
		},
		{
			name: "non-string repaired answer is re-encoded",
			text: `{"status": "repair", "reason_code": "INVALID_FORMAT", "repaired_answer": {"tool": "list_dir", "args": {"path": "."}}}`,
			want: &Review{Status: "repair", ReasonCode: "INVALID_FORMAT", RepairedAnswer: `{"args":{"path":"."},"tool":"list_dir"}`},
		},
		{
			name: "non-string status",
			text: `{"status": 1}`,
			want: &Review{ReasonCode: "OTHER"},
		},
		{name: "not json", text: "I think it is fine.", wantErr: true},
		{name: "broken json", text: `{"status": "ok",`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReview(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
