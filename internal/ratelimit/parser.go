// Package ratelimit detects rate limiting on the model endpoint and works
// out when a request may be retried.
package ratelimit

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// RateLimitBufferSeconds is added to textual reset times to avoid
	// retrying a moment too early.
	RateLimitBufferSeconds = 60

	// BarePatternMaxContentSize bounds the body size checked for bare
	// phrases, so long answers that merely discuss rate limits are ignored.
	BarePatternMaxContentSize = 500
)

// RateLimitInfo contains parsed rate limit information.
type RateLimitInfo struct {
	// Detected indicates a rate limit was found.
	Detected bool

	// Parseable indicates the reset time is known.
	Parseable bool

	// ResetEpoch is the Unix timestamp when the limit resets.
	ResetEpoch int64

	// ResetHuman is the human-readable reset time.
	ResetHuman string

	// Timezone is the IANA timezone of a textual reset time.
	Timezone string
}

var (
	// "resets 6:30pm (America/Sao_Paulo)"
	pattern12hMinutes = regexp.MustCompile(`(?i)resets?\s+(\d{1,2}:\d{2}\s*(?:am|pm))\s*\(([^)]+)\)`)

	// "resets 6pm (UTC)"
	pattern12h = regexp.MustCompile(`(?i)resets?\s+(\d{1,2}\s*(?:am|pm))\s*\(([^)]+)\)`)

	// "resets 18:00 (UTC)"
	pattern24h = regexp.MustCompile(`(?i)resets?\s+(\d{1,2}:\d{2})\s*\(([^)]+)\)`)

	barePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)rate limit exceeded`),
		regexp.MustCompile(`(?i)rate limited`),
		regexp.MustCompile(`(?i)too many requests`),
		regexp.MustCompile(`(?i)server busy`),
	}

	spaceRe = regexp.MustCompile(`\s+`)
)

// FindRateLimitPattern searches content for a rate limit notice.
// If detected is true but timeStr/tzStr are empty, the limit was
// detected without a parseable reset time.
func FindRateLimitPattern(content string) (timeStr, tzStr string, detected bool) {
	for _, pattern := range []*regexp.Regexp{pattern12hMinutes, pattern12h, pattern24h} {
		if match := pattern.FindStringSubmatch(content); match != nil {
			return strings.TrimSpace(match[1]), strings.TrimSpace(match[2]), true
		}
	}
	if len(content) <= BarePatternMaxContentSize {
		for _, bare := range barePatterns {
			if bare.MatchString(content) {
				return "", "", true
			}
		}
	}
	return "", "", false
}

// ParseTimeWithTimezone converts a wall-clock reset time in tzStr to an
// epoch. Times already past today are moved to tomorrow.
func ParseTimeWithTimezone(timeStr, tzStr string) (epoch int64, human, tz string, err error) {
	loc, err := time.LoadLocation(tzStr)
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid timezone '%s': %w", tzStr, err)
	}
	now := time.Now().In(loc)

	lower := spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(timeStr)), "")
	pm := strings.HasSuffix(lower, "pm")
	am := strings.HasSuffix(lower, "am")
	clock := strings.TrimSuffix(strings.TrimSuffix(lower, "pm"), "am")

	hourStr, minuteStr, hasMinutes := strings.Cut(clock, ":")
	if !am && !pm && !hasMinutes {
		return 0, "", "", fmt.Errorf("24-hour format requires colon: %s", timeStr)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid hour: %s", hourStr)
	}
	minute := 0
	if hasMinutes {
		if minute, err = strconv.Atoi(minuteStr); err != nil {
			return 0, "", "", fmt.Errorf("invalid minute: %s", minuteStr)
		}
	}
	if pm && hour != 12 {
		hour += 12
	} else if am && hour == 12 {
		hour = 0
	}

	reset := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !reset.After(now) {
		reset = reset.Add(24 * time.Hour)
	}
	reset = reset.Add(RateLimitBufferSeconds * time.Second)
	return reset.Unix(), reset.Format("2006-01-02 15:04:05 MST"), tzStr, nil
}

// ParseRetryAfter interprets a Retry-After header value, either delay
// seconds or an HTTP date. It returns nil for empty or invalid values.
func ParseRetryAfter(value string, now time.Time) *RateLimitInfo {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	var reset time.Time
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		reset = now.Add(time.Duration(secs) * time.Second)
	} else if at, err := http.ParseTime(value); err == nil {
		reset = at
	} else {
		return nil
	}
	return &RateLimitInfo{
		Detected:   true,
		Parseable:  true,
		ResetEpoch: reset.Unix(),
		ResetHuman: reset.Format("2006-01-02 15:04:05 MST"),
		Timezone:   "UTC",
	}
}

// Detect inspects a model endpoint response. A 429 status or a body that
// carries a rate limit notice yields a non-nil result; nil means no limit.
func Detect(statusCode int, retryAfter string, body string) *RateLimitInfo {
	if statusCode == http.StatusTooManyRequests {
		if info := ParseRetryAfter(retryAfter, time.Now()); info != nil {
			return info
		}
	}
	timeStr, tzStr, detected := FindRateLimitPattern(body)
	if !detected && statusCode != http.StatusTooManyRequests {
		return nil
	}
	if timeStr == "" || tzStr == "" {
		return &RateLimitInfo{Detected: true}
	}
	epoch, human, tz, err := ParseTimeWithTimezone(timeStr, tzStr)
	if err != nil {
		return &RateLimitInfo{Detected: true}
	}
	return &RateLimitInfo{
		Detected:   true,
		Parseable:  true,
		ResetEpoch: epoch,
		ResetHuman: human,
		Timezone:   tz,
	}
}
