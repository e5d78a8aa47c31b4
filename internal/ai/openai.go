package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend speaks the OpenAI chat completions API. It also serves
// OpenAI-compatible local servers such as Ollama's /v1 endpoint.
type OpenAIBackend struct {
	client  *openai.Client
	baseURL string
}

// NewOpenAIBackend creates a backend. An empty apiKey is allowed for local
// servers; timeout bounds each request (zero means 300s).
func NewOpenAIBackend(baseURL, apiKey string, timeout time.Duration) *OpenAIBackend {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(config),
		baseURL: config.BaseURL,
	}
}

// Endpoint implements ChatBackend.
func (o *OpenAIBackend) Endpoint() (string, string) {
	return o.baseURL, "/chat/completions"
}

// Chat implements ChatBackend. NumCtx has no equivalent in this API and is
// ignored.
func (o *OpenAIBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := wireMessages(req)
	openaiMessages := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: openaiMessages,
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	msg := resp.Choices[0].Message
	return &ChatResponse{
		Content:  msg.Content,
		Thinking: msg.ReasoningContent,
		Raw:      resp,
	}, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return classifyStatus(apiErr.HTTPStatusCode, "", apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return classifyStatus(reqErr.HTTPStatusCode, "", string(reqErr.Body))
	}
	return classifyNetwork(err)
}
