// Package schedule parses the operator's idle-window times.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Off clears an idle window when given to /idle-until or --idle-until.
const Off = "off"

// Parse parses a schedule string into a time.Time in now's location.
// Supported formats:
//   - YYYY-MM-DD → midnight of that date
//   - HH:MM → today if still ahead of now, tomorrow otherwise
//   - "YYYY-MM-DD HH:MM" → exact datetime
//   - YYYY-MM-DDTHH:MM → ISO 8601 format
//   - a Go duration such as 45m or +2h → now plus the duration
func Parse(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	local := now.Location()

	if t, err := time.ParseInLocation("2006-01-02T15:04", input, local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", input, local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", input, local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", input, local); err == nil {
		scheduled := time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), 0, 0, local)
		if !scheduled.After(now) {
			scheduled = scheduled.AddDate(0, 0, 1)
		}
		return scheduled, nil
	}
	if d, err := time.ParseDuration(strings.TrimPrefix(input, "+")); err == nil && d > 0 {
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("invalid schedule format: %q (supported: YYYY-MM-DD, HH:MM, \"YYYY-MM-DD HH:MM\", YYYY-MM-DDTHH:MM, 30m)", input)
}

// ParseIdleUntil parses an idle-window argument. "off" (any case) returns
// the zero time, which clears the window. Times not after now are
// rejected.
func ParseIdleUntil(input string, now time.Time) (time.Time, error) {
	if strings.EqualFold(strings.TrimSpace(input), Off) {
		return time.Time{}, nil
	}
	t, err := Parse(input, now)
	if err != nil {
		return time.Time{}, err
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("idle window end %s is not in the future", t.Format("2006-01-02 15:04"))
	}
	return t, nil
}
