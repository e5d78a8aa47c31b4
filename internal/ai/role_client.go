package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/CodexForgeBR/tandem/internal/admission"
	"github.com/CodexForgeBR/tandem/internal/audit"
	"github.com/CodexForgeBR/tandem/internal/model"
	"github.com/CodexForgeBR/tandem/internal/ratelimit"
	"github.com/google/uuid"
)

// DefaultNumCtx is used when neither the caller nor the VRAM advisor
// provides a context window size.
const DefaultNumCtx = 4096

// RoleClient is the model client for one role (executor or supervisor).
// Queue, Probe, IO and Activity are optional.
type RoleClient struct {
	Role    model.Role
	Model   string
	Backend ChatBackend

	Queue *admission.Queue
	Probe admission.VRAMProbe

	// NumCtx is the default context window; zero means DefaultNumCtx.
	NumCtx int
	Retry  RetryConfig

	IO       *audit.ModelIOLog
	Activity *audit.ActivityLog

	newID func() string
}

// Chat sends messages with systemPrompt and returns the answer text. The
// call holds an admission ticket for its whole duration.
func (c *RoleClient) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	requestID := c.requestID()

	if c.Queue != nil {
		ticket, err := c.Queue.Acquire(ctx, c.Role)
		if err != nil {
			return "", fmt.Errorf("model queue for role=%s: %w", c.Role, err)
		}
		defer c.Queue.Release(ticket)

		if decision := c.Queue.CheckVRAM(ctx, c.Role, c.Probe); !decision.Allowed {
			c.Activity.Log("model.chat.skipped.low_vram", "model call skipped by the VRAM gate", map[string]any{
				"request_id":  requestID,
				"client_role": string(c.Role),
				"free_mb":     decision.FreeMB,
			})
			return "", fmt.Errorf("role=%s free_mb=%d: %w", c.Role, decision.FreeMB, ErrLowVRAM)
		}
	}

	numCtx := c.NumCtx
	if numCtx <= 0 {
		numCtx = DefaultNumCtx
	}
	req := ChatRequest{Model: c.Model, SystemPrompt: systemPrompt, Messages: messages, NumCtx: numCtx}

	baseURL, path := c.Backend.Endpoint()
	ex := audit.Exchange{RequestID: requestID, Model: c.Model, BaseURL: baseURL, Endpoint: path}

	c.Activity.Log("model.chat.request", "send chat request", map[string]any{
		"request_id":  requestID,
		"num_ctx":     numCtx,
		"messages":    len(messages),
		"client_role": string(c.Role),
	})
	c.IO.Input(ex, map[string]any{
		"model":    c.Model,
		"stream":   false,
		"messages": wireMessages(req),
		"options":  map[string]any{"num_ctx": numCtx},
	})

	retryCfg := c.Retry
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.Activity.Log("model.chat.retry", "retry after transient model error", map[string]any{
			"request_id":  requestID,
			"attempt":     attempt,
			"max_retries": c.Retry.MaxRetries,
			"delay_ms":    delay.Milliseconds(),
			"error":       err.Error(),
			"client_role": string(c.Role),
		})
	}
	retryCfg.OnRateLimit = func(info *ratelimit.RateLimitInfo) {
		details := map[string]any{"request_id": requestID, "client_role": string(c.Role)}
		if info != nil && info.Parseable {
			details["resets_at"] = info.ResetHuman
		}
		c.Activity.Log("model.chat.rate_limited", "wait for rate limit reset", details)
	}
	backend := &RetryBackend{Inner: c.Backend, RetryCfg: retryCfg}

	resp, err := backend.Chat(ctx, req)
	if err != nil {
		c.IO.Error(ex, err)
		c.Activity.Log("model.chat.error", "model call failed", map[string]any{
			"request_id":  requestID,
			"retryable":   IsRetryable(err),
			"error":       err.Error(),
			"client_role": string(c.Role),
		})
		return "", err
	}

	c.IO.Output(ex, resp.Raw)
	text, usedThinking, err := resp.Text()
	c.Activity.Log("model.chat.response", "model answered", map[string]any{
		"request_id":  requestID,
		"has_message": err == nil,
		"client_role": string(c.Role),
	})
	if err != nil {
		return "", err
	}
	if usedThinking {
		c.Activity.Log("model.chat.response.fallback", "content empty, thinking used", map[string]any{
			"request_id":  requestID,
			"client_role": string(c.Role),
		})
	}
	return text, nil
}

func (c *RoleClient) requestID() string {
	if c.newID != nil {
		return c.newID()
	}
	return uuid.NewString()
}
