package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBackend(t *testing.T) {
	assert.NoError(t, ValidateBackend(Ollama))
	assert.NoError(t, ValidateBackend(OpenAI))
	assert.Error(t, ValidateBackend("claude"))
	assert.Error(t, ValidateBackend(""))
}

func TestValidateModelBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		model   string
		wantErr bool
	}{
		{name: "empty model", backend: Ollama, model: ""},
		{name: "ollama tag", backend: Ollama, model: "cogito:14b"},
		{name: "hf registry", backend: Ollama, model: DefaultExecutorModel},
		{name: "gpt on ollama", backend: Ollama, model: "gpt-4o", wantErr: true},
		{name: "o-series on ollama", backend: Ollama, model: "o3-mini", wantErr: true},
		{name: "gpt on openai", backend: OpenAI, model: "gpt-4o"},
		{name: "ollama tag on openai", backend: OpenAI, model: "qwen3:14b"},
		{name: "whitespace", backend: OpenAI, model: "gpt 4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModelBackend(tt.backend, tt.model, "executor-model")
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "executor-model")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestModelHints(t *testing.T) {
	assert.True(t, IsOpenAIModelHint("GPT-4o"))
	assert.True(t, IsOpenAIModelHint("ft:gpt-3.5-turbo"))
	assert.False(t, IsOpenAIModelHint("cogito:14b"))

	assert.True(t, IsOllamaModelHint("cogito:14b"))
	assert.True(t, IsOllamaModelHint("hf.co/org/model"))
	assert.False(t, IsOllamaModelHint("ft:gpt-3.5-turbo"))
	assert.False(t, IsOllamaModelHint("gpt-4o"))
	assert.False(t, IsOllamaModelHint("llama3:"))
}
