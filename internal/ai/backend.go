// Package ai is the client side of the model endpoint.
//
// A ChatBackend speaks one wire protocol (native Ollama or the OpenAI
// chat completions API). RoleClient layers the runtime policy on top:
// admission tickets, the supervisor VRAM gate, request ids, retries and
// the model IO audit trail.
package ai

import (
	"context"
	"strings"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single non-streaming chat call.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	// NumCtx is the context window hint; zero leaves the server default.
	NumCtx int
}

// ChatResponse carries the model answer. Thinking holds the reasoning
// channel of models that separate it from the content.
type ChatResponse struct {
	Content  string
	Thinking string
	Raw      any
}

// Text returns the content, falling back to the thinking channel when the
// content is blank. usedThinking reports the fallback.
func (r *ChatResponse) Text() (text string, usedThinking bool, err error) {
	if r == nil {
		return "", false, ErrEmptyResponse
	}
	if strings.TrimSpace(r.Content) != "" {
		return r.Content, false, nil
	}
	if strings.TrimSpace(r.Thinking) != "" {
		return r.Thinking, true, nil
	}
	return "", false, ErrEmptyResponse
}

// ChatBackend defines the interface for model endpoints.
type ChatBackend interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Endpoint reports where requests go, for audit records.
	Endpoint() (baseURL, path string)
}

// wireMessages prepends the system prompt.
func wireMessages(req ChatRequest) []Message {
	out := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, Message{Role: "system", Content: req.SystemPrompt})
	}
	return append(out, req.Messages...)
}
