package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/CodexForgeBR/tandem/internal/ratelimit"
)

var (
	// ErrEmptyResponse is returned when neither content nor thinking is set.
	ErrEmptyResponse = errors.New("model returned empty response")

	// ErrLowVRAM is returned when a supervisor call is skipped for lack of
	// free GPU memory.
	ErrLowVRAM = errors.New("model call skipped: low VRAM")
)

// TransportError is a failed exchange with the model endpoint.
// StatusCode is zero when no HTTP response arrived.
type TransportError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model endpoint returned HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("cannot reach model endpoint: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the endpoint signals a rate limit.
type RateLimitError struct {
	Info          *ratelimit.RateLimitInfo
	UnderlyingErr error
}

func (e *RateLimitError) Error() string {
	if e.Info != nil && e.Info.Parseable {
		return fmt.Sprintf("rate limit detected (resets at %s)", e.Info.ResetHuman)
	}
	return "rate limit detected (reset time unknown)"
}

func (e *RateLimitError) Unwrap() error {
	return e.UnderlyingErr
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"cannot connect",
	"connection refused",
	"connection reset",
	"connection aborted",
	"temporarily unavailable",
}

// IsRetryable reports whether err is worth another attempt: timeouts,
// refused or reset connections, 5xx responses and rate limits. Client
// errors and cancellation are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return isTransient(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classifyStatus turns an HTTP error response into a typed error.
func classifyStatus(statusCode int, retryAfter, body string) error {
	base := &TransportError{
		StatusCode: statusCode,
		Retryable:  statusCode >= http.StatusInternalServerError,
		Err:        errors.New(strings.TrimSpace(body)),
	}
	if info := ratelimit.Detect(statusCode, retryAfter, body); info != nil {
		base.Retryable = true
		return &RateLimitError{Info: info, UnderlyingErr: base}
	}
	return base
}

// classifyNetwork wraps an error raised before any HTTP response arrived.
func classifyNetwork(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransportError{Retryable: isTransient(err), Err: err}
}
