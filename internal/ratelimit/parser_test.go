package ratelimit

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRateLimitPattern(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantTime string
		wantTZ   string
		detected bool
	}{
		{name: "hour only", content: "model busy, resets 6pm (America/Bahia)", wantTime: "6pm", wantTZ: "America/Bahia", detected: true},
		{name: "hour and minutes win", content: "resets 3:45pm (Europe/London)", wantTime: "3:45pm", wantTZ: "Europe/London", detected: true},
		{name: "24 hour", content: "Limit resets 18:00 (UTC)", wantTime: "18:00", wantTZ: "UTC", detected: true},
		{name: "reset without s", content: "quota will reset 9am (UTC)", wantTime: "9am", wantTZ: "UTC", detected: true},
		{name: "bare phrase", content: "Error: Too Many Requests", detected: true},
		{name: "server busy", content: "server busy, try later", detected: true},
		{name: "no match", content: "all good", detected: false},
		{name: "long content ignores bare phrase", content: strings.Repeat("x", BarePatternMaxContentSize) + " rate limited", detected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeStr, tzStr, detected := FindRateLimitPattern(tt.content)
			assert.Equal(t, tt.detected, detected)
			assert.Equal(t, tt.wantTime, timeStr)
			assert.Equal(t, tt.wantTZ, tzStr)
		})
	}
}

func TestParseTimeWithTimezone(t *testing.T) {
	tests := []struct {
		name     string
		timeStr  string
		wantHour int
		wantMin  int
	}{
		{name: "pm hour", timeStr: "6pm", wantHour: 18},
		{name: "pm with minutes", timeStr: "6:30pm", wantHour: 18, wantMin: 30},
		{name: "space before suffix", timeStr: "7 am", wantHour: 7},
		{name: "midnight", timeStr: "12am", wantHour: 0},
		{name: "noon", timeStr: "12pm", wantHour: 12},
		{name: "24 hour", timeStr: "21:15", wantHour: 21, wantMin: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			epoch, human, tz, err := ParseTimeWithTimezone(tt.timeStr, "UTC")
			require.NoError(t, err)
			assert.Equal(t, "UTC", tz)
			assert.NotEmpty(t, human)

			reset := time.Unix(epoch, 0).UTC().Add(-RateLimitBufferSeconds * time.Second)
			assert.Equal(t, tt.wantHour, reset.Hour())
			assert.Equal(t, tt.wantMin, reset.Minute())
			assert.True(t, reset.After(time.Now().Add(-time.Second)))
			assert.True(t, reset.Before(time.Now().Add(25*time.Hour)))
		})
	}
}

func TestParseTimeWithTimezone_Errors(t *testing.T) {
	tests := []struct {
		name    string
		timeStr string
		tz      string
	}{
		{name: "bad timezone", timeStr: "6pm", tz: "Mars/Olympus"},
		{name: "24 hour without colon", timeStr: "18", tz: "UTC"},
		{name: "bad hour", timeStr: "xx:10", tz: "UTC"},
		{name: "bad minute", timeStr: "10:yy", tz: "UTC"},
		{name: "bad 12 hour", timeStr: "abpm", tz: "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := ParseTimeWithTimezone(tt.timeStr, tt.tz)
			assert.Error(t, err)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	info := ParseRetryAfter("30", now)
	require.NotNil(t, info)
	assert.True(t, info.Parseable)
	assert.Equal(t, now.Add(30*time.Second).Unix(), info.ResetEpoch)

	date := now.Add(2 * time.Minute).Format(http.TimeFormat)
	info = ParseRetryAfter(date, now)
	require.NotNil(t, info)
	assert.Equal(t, now.Add(2*time.Minute).Unix(), info.ResetEpoch)

	assert.Nil(t, ParseRetryAfter("", now))
	assert.Nil(t, ParseRetryAfter("soon", now))
	assert.Nil(t, ParseRetryAfter("-5", now))
}

func TestDetect(t *testing.T) {
	t.Run("429 with retry-after", func(t *testing.T) {
		info := Detect(http.StatusTooManyRequests, "10", "")
		require.NotNil(t, info)
		assert.True(t, info.Parseable)
	})

	t.Run("429 without header", func(t *testing.T) {
		info := Detect(http.StatusTooManyRequests, "", "slow down")
		require.NotNil(t, info)
		assert.True(t, info.Detected)
		assert.False(t, info.Parseable)
	})

	t.Run("textual reset in body", func(t *testing.T) {
		info := Detect(http.StatusServiceUnavailable, "", "resets 18:00 (UTC)")
		require.NotNil(t, info)
		assert.True(t, info.Parseable)
		assert.Equal(t, "UTC", info.Timezone)
	})

	t.Run("unparseable timezone", func(t *testing.T) {
		info := Detect(http.StatusOK, "", "resets 6pm (Nowhere/Land)")
		require.NotNil(t, info)
		assert.False(t, info.Parseable)
	})

	t.Run("no limit", func(t *testing.T) {
		assert.Nil(t, Detect(http.StatusInternalServerError, "", "boom"))
	})
}
