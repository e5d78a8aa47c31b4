package ai

import "context"

// RetryBackend wraps any ChatBackend with RetryWithBackoff retry logic.
type RetryBackend struct {
	Inner    ChatBackend
	RetryCfg RetryConfig
}

// Chat delegates to the inner backend, retrying transient failures.
func (r *RetryBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	err := RetryWithBackoff(ctx, r.RetryCfg, func() error {
		var err error
		resp, err = r.Inner.Chat(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Endpoint implements ChatBackend.
func (r *RetryBackend) Endpoint() (string, string) {
	return r.Inner.Endpoint()
}
