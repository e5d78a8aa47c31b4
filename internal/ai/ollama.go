package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaChatPath = "/api/chat"

// OllamaBackend speaks the native Ollama chat API.
type OllamaBackend struct {
	baseURL string
	client  *http.Client
}

type ollamaMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []ollamaMessage `json:"messages"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// NewOllamaBackend creates a backend for baseURL. timeout bounds each
// request; zero means 300s.
func NewOllamaBackend(baseURL string, timeout time.Duration) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Endpoint implements ChatBackend.
func (o *OllamaBackend) Endpoint() (string, string) {
	return o.baseURL, ollamaChatPath
}

// Chat implements ChatBackend.
func (o *OllamaBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	payload := ollamaChatRequest{Model: req.Model}
	for _, m := range wireMessages(req) {
		payload.Messages = append(payload.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	if req.NumCtx > 0 {
		payload.Options = map[string]any{"num_ctx": req.NumCtx}
	}

	body, err := o.do(ctx, http.MethodPost, ollamaChatPath, payload)
	if err != nil {
		return nil, err
	}
	var resp ollamaChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	return &ChatResponse{
		Content:  resp.Message.Content,
		Thinking: resp.Message.Thinking,
		Raw:      raw,
	}, nil
}

// ListModels returns the distinct model names the server has pulled.
func (o *OllamaBackend) ListModels(ctx context.Context) ([]string, error) {
	body, err := o.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, m := range tags.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func (o *OllamaBackend) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, classifyNetwork(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetwork(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), string(body))
	}
	return body, nil
}
