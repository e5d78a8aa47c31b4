package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"date only", "2026-03-15", time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"date and time", "2026-03-15 09:45", time.Date(2026, time.March, 15, 9, 45, 0, 0, time.UTC)},
		{"iso 8601", "2026-03-15T09:45", time.Date(2026, time.March, 15, 9, 45, 0, 0, time.UTC)},
		{"clock later today", "18:00", time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)},
		{"clock already passed", "09:00", time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)},
		{"clock equal to now", "14:30", time.Date(2026, time.March, 11, 14, 30, 0, 0, time.UTC)},
		{"duration", "45m", fixedNow.Add(45 * time.Minute)},
		{"duration with plus", "+2h", fixedNow.Add(2 * time.Hour)},
		{"surrounding spaces", "  18:00 ", time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.input, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "tomorrow-ish"},
		{"bad hour", "25:00"},
		{"negative duration", "-5m"},
		{"zero duration", "0s"},
		{"bad month", "2026-13-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, fixedNow)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid schedule format")
		})
	}
}

func TestParseIdleUntil(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr string
	}{
		{name: "off clears", input: "off"},
		{name: "off is case insensitive", input: " OFF "},
		{name: "future clock", input: "16:00", want: time.Date(2026, time.March, 10, 16, 0, 0, 0, time.UTC)},
		{name: "past date rejected", input: "2026-03-01", wantErr: "not in the future"},
		{name: "invalid", input: "soon", wantErr: "invalid schedule format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdleUntil(tt.input, fixedNow)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}
