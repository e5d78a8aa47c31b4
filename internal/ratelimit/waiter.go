package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotParseable is returned when the reset time of a limit is unknown.
var ErrNotParseable = errors.New("rate limit reset time unknown")

// Until returns how long remains before the limit resets. A zero result
// means the request may be retried now.
func (r *RateLimitInfo) Until(now time.Time) time.Duration {
	if r == nil || !r.Parseable {
		return 0
	}
	d := time.Unix(r.ResetEpoch, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// WaitForReset blocks until the limit resets or ctx is done.
func WaitForReset(ctx context.Context, info *RateLimitInfo) error {
	if info == nil || !info.Parseable {
		return ErrNotParseable
	}
	wait := info.Until(time.Now())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FormatDuration renders seconds as "2h 15m", "45m 30s" or "30s".
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}
