// Package chat holds the executor conversation: bounded history, the
// system prompt with plan and memory context, and session summaries.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/CodexForgeBR/tandem/internal/ai"
	"github.com/CodexForgeBR/tandem/internal/audit"
	"github.com/CodexForgeBR/tandem/internal/memory"
	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/CodexForgeBR/tandem/internal/prompt"
)

const (
	// DefaultMaxHistory is how many messages are replayed to the executor.
	DefaultMaxHistory = 24

	// planPreviewChars bounds the plan JSON shown in the system prompt.
	planPreviewChars = 1800
)

// Client sends one chat request.
type Client interface {
	Chat(ctx context.Context, systemPrompt string, messages []ai.Message) (string, error)
}

// Session is the conversation with the executor model. Plan, Memory,
// Tools and Activity are optional.
type Session struct {
	Client  Client
	WorkDir string
	Plan    *plan.Store
	Memory  *memory.Store

	// Tools lists registered script tools for the protocol guide.
	Tools func() []string

	MaxHistory      int
	ContextMemories int

	Activity *audit.ActivityLog

	mu      sync.Mutex
	history []ai.Message
}

// New returns a session with default limits.
func New(client Client, workDir string, planStore *plan.Store, mem *memory.Store) *Session {
	return &Session{
		Client:          client,
		WorkDir:         workDir,
		Plan:            planStore,
		Memory:          mem,
		MaxHistory:      DefaultMaxHistory,
		ContextMemories: memory.DefaultContextLimit,
	}
}

// Ask sends userMessage with the running history and records the answer.
// On error the user message stays in the history and no answer is added.
func (s *Session) Ask(ctx context.Context, userMessage string) (string, error) {
	s.mu.Lock()
	s.appendLocked(ai.Message{Role: "user", Content: userMessage})
	messages := append([]ai.Message(nil), s.history...)
	s.mu.Unlock()

	s.Activity.Log("chat.ask", "send user turn to the executor", map[string]any{
		"user_message_chars": len(userMessage),
		"history":            len(messages),
	})

	answer, err := s.Client.Chat(ctx, s.SystemPrompt(userMessage), messages)
	if err != nil {
		return "", fmt.Errorf("executor chat: %w", err)
	}

	s.mu.Lock()
	s.appendLocked(ai.Message{Role: "assistant", Content: answer})
	s.mu.Unlock()

	if note := memory.ExtractNote(answer); note != "" && s.Memory != nil {
		if err := s.Memory.Add(memory.KindNote, "executor", note); err == nil {
			s.Activity.Log("memory.note", "executor asked to remember a note", map[string]any{"chars": len(note)})
		}
	}
	return answer, nil
}

func (s *Session) appendLocked(m ai.Message) {
	s.history = append(s.history, m)
	limit := s.MaxHistory
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	if over := len(s.history) - limit; over > 0 {
		s.history = append([]ai.Message(nil), s.history[over:]...)
	}
}

// History returns a copy of the replayed messages.
func (s *Session) History() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Message(nil), s.history...)
}

// Reset clears the history.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// SystemPrompt renders the executor system prompt for userMessage.
func (s *Session) SystemPrompt(userMessage string) string {
	var tools []string
	if s.Tools != nil {
		tools = s.Tools()
	}
	var mem string
	if s.Memory != nil {
		mem = s.Memory.Context(userMessage, s.ContextMemories)
	}
	return prompt.BuildExecutorSystemPrompt(prompt.ExecutorContext{
		WorkDir:         s.WorkDir,
		RegisteredTools: tools,
		Plan:            s.PlanContext(),
		Memory:          mem,
	})
}

// PlanContext summarizes the plan file for the system prompt.
func (s *Session) PlanContext() string {
	if s.Plan == nil {
		return ""
	}
	snap := s.Plan.Snapshot()
	switch {
	case !snap.Exists:
		return fmt.Sprintf("- path: %s\n- status: missing", snap.Path)
	case snap.ParseError:
		return fmt.Sprintf("- path: %s\n- status: invalid JSON", snap.Path)
	}
	p, err := s.Plan.Load()
	if err != nil || p == nil {
		return fmt.Sprintf("- path: %s\n- status: unreadable", snap.Path)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	preview := []rune(string(data))
	text := string(preview)
	if len(preview) > planPreviewChars {
		text = string(preview[:planPreviewChars]) + "...[truncated]"
	}
	return fmt.Sprintf("- path: %s\n- tasks_done: %d/%d\n- payload: %s", snap.Path, snap.TasksDone, snap.TasksTotal, text)
}

// Remember stores an operator note.
func (s *Session) Remember(note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("empty note")
	}
	if s.Memory == nil {
		return fmt.Errorf("memory is not configured")
	}
	s.Activity.Log("memory.remember", "store operator note", map[string]any{"chars": len(note)})
	return s.Memory.Add(memory.KindNote, "manual", note)
}

// Summarize asks the executor model to summarize the history and stores
// the result as the session summary. An empty history is not summarized.
func (s *Session) Summarize(ctx context.Context) (string, error) {
	history := s.History()
	if len(history) == 0 {
		return "", nil
	}
	history = append(history, ai.Message{Role: "user", Content: "Summarize the session now."})
	summary, err := s.Client.Chat(ctx, strings.TrimSpace(prompt.SessionSummaryPrompt), history)
	if err != nil {
		return "", fmt.Errorf("summarize session: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if s.Memory != nil && summary != "" {
		if err := s.Memory.Replace(memory.KindSessionSummary, "session_end", summary); err != nil {
			return summary, err
		}
	}
	s.Activity.Log("memory.session_summary", "store session summary for the next start", map[string]any{"chars": len(summary)})
	return summary, nil
}
