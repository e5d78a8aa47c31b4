package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaBackend_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"hello","thinking":"t"},"done":true}`))
	}))
	defer srv.Close()

	backend := NewOllamaBackend(srv.URL+"/", time.Second)
	resp, err := backend.Chat(context.Background(), ChatRequest{
		Model:        "cogito:14b",
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: "user", Content: "hi"}},
		NumCtx:       2048,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "t", resp.Thinking)

	assert.Equal(t, "cogito:14b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, float64(2048), got.Options["num_ctx"])

	base, path := backend.Endpoint()
	assert.Equal(t, srv.URL, base)
	assert.Equal(t, "/api/chat", path)
}

func TestOllamaBackend_OmitsZeroNumCtx(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"message":{"content":"x"}}`))
	}))
	defer srv.Close()

	_, err := NewOllamaBackend(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.NotContains(t, raw, "options")
}

func TestOllamaBackend_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		retryAfter    string
		wantRetryable bool
		wantRateLimit bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"error":"model not found"}`},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantRetryable: true},
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "1", wantRetryable: true, wantRateLimit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllamaBackend(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Model: "m"})
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, IsRetryable(err))
			var rl *RateLimitError
			assert.Equal(t, tt.wantRateLimit, errors.As(err, &rl))
		})
	}
}

func TestOllamaBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewOllamaBackend(url, time.Second).Chat(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestOllamaBackend_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"a:1"},{"name":""},{"name":"b:2"},{"name":"a:1"}]}`))
	}))
	defer srv.Close()

	backend := NewOllamaBackend(srv.URL, time.Second)
	models, err := backend.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, models)
}
