package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name        string
		event       string
		detail      string
		wantContain []string
	}{
		{
			name:        "stalled",
			event:       EventStalled,
			detail:      "max tool steps (15) reached",
			wantContain: []string{"⚠️", "/work", "[s-1]", "stalled", "max tool steps (15)"},
		},
		{
			name:        "reactivation capped",
			event:       EventReactivationCapped,
			detail:      "2",
			wantContain: []string{"💤", "after 2 reactivations"},
		},
		{
			name:        "tool design",
			event:       EventToolDesign,
			detail:      "foo",
			wantContain: []string{"🛠️", `"foo"`, "design plan"},
		},
		{
			name:        "transport failed",
			event:       EventTransportFailed,
			detail:      "connection refused",
			wantContain: []string{"❌", "connection refused"},
		},
		{
			name:        "session end",
			event:       EventSessionEnd,
			detail:      "quit",
			wantContain: []string{"✅", "session ended (quit)"},
		},
		{
			name:        "interrupted",
			event:       EventInterrupted,
			wantContain: []string{"⏸️", "--resume"},
		},
		{
			name:        "unknown event",
			event:       "custom",
			detail:      "x",
			wantContain: []string{"ℹ️", "event: custom x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatEvent(tt.event, "/work", "s-1", tt.detail)
			for _, want := range tt.wantContain {
				assert.Contains(t, msg, want)
			}
		})
	}
}
