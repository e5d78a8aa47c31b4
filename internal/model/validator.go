package model

import (
	"fmt"
	"regexp"
	"strings"
)

// openAIModelRe matches OpenAI-family model prefixes: o1, o3, gpt-*, etc.
var openAIModelRe = regexp.MustCompile(`^(o[0-9]|gpt|chatgpt|text-|ft:)`)

// ValidateBackend reports whether backend is a supported identifier.
func ValidateBackend(backend string) error {
	switch backend {
	case Ollama, OpenAI:
		return nil
	}
	return fmt.Errorf("invalid backend %q (expected %s or %s)", backend, Ollama, OpenAI)
}

// ValidateModelBackend checks whether model can be served by backend.
// label names the flag being validated (e.g. "executor-model").
//
// Rules:
//   - Empty model is always allowed (the caller will apply defaults).
//   - Model names never contain whitespace.
//   - OpenAI-style names (gpt-*, o1, chatgpt-*) are invalid with ollama.
//   - The openai backend accepts anything, since it is also used for
//     OpenAI-compatible local servers.
func ValidateModelBackend(backend, model, label string) error {
	if model == "" {
		return nil
	}
	if strings.ContainsAny(model, " \t\n") {
		return fmt.Errorf("%s %q must not contain whitespace", label, model)
	}
	if backend == Ollama && IsOpenAIModelHint(model) {
		return fmt.Errorf("%s %q looks like an openai model but backend=%s", label, model, backend)
	}
	return nil
}

// IsOpenAIModelHint returns true when model appears to target the hosted
// OpenAI API.
func IsOpenAIModelHint(model string) bool {
	return openAIModelRe.MatchString(strings.ToLower(model))
}

// IsOllamaModelHint returns true when model carries an ollama tag
// (name:tag) or a hf.co/ registry prefix.
func IsOllamaModelHint(model string) bool {
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "hf.co/") {
		return true
	}
	name, tag, ok := strings.Cut(lower, ":")
	return ok && name != "" && tag != "" && !strings.HasPrefix(lower, "ft:")
}
