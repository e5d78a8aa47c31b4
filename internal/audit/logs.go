package audit

import (
	"log/slog"
	"sort"

	"github.com/CodexForgeBR/tandem/internal/model"
)

// ActivityLog records runtime actions as
// {timestamp, action, intent, details}.
type ActivityLog struct {
	sink *Sink
}

// NewActivityLog wraps sink.
func NewActivityLog(sink *Sink) *ActivityLog {
	return &ActivityLog{sink: sink}
}

// Log appends one activity record. A nil receiver is a no-op.
func (l *ActivityLog) Log(action, intent string, details map[string]any) {
	if l == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	l.sink.write(action, slog.String("intent", intent), slog.Any("details", details))
}

// DialogueLog records supervisor exchanges as
// {timestamp, type, stage, attempt, ...payload}.
type DialogueLog struct {
	sink *Sink
}

// NewDialogueLog wraps sink.
func NewDialogueLog(sink *Sink) *DialogueLog {
	return &DialogueLog{sink: sink}
}

// Log appends one dialogue record. A nil receiver is a no-op.
func (l *DialogueLog) Log(stage string, attempt int, typ string, payload map[string]any) {
	if l == nil {
		return
	}
	attrs := []slog.Attr{slog.String("stage", stage), slog.Int("attempt", attempt)}
	l.sink.write(typ, append(attrs, flatten(payload)...)...)
}

// ModelIOLog records raw model traffic for one role as
// {timestamp, event, model_role, request_id, ...}.
type ModelIOLog struct {
	sink *Sink
	role model.Role
}

// NewModelIOLog wraps sink for role.
func NewModelIOLog(sink *Sink, role model.Role) *ModelIOLog {
	return &ModelIOLog{sink: sink, role: role}
}

// Exchange identifies one model request.
type Exchange struct {
	RequestID string
	Model     string
	BaseURL   string
	Endpoint  string
}

func (l *ModelIOLog) write(event string, ex Exchange, extra slog.Attr) {
	if l == nil {
		return
	}
	l.sink.write(event,
		slog.String("model_role", string(l.role)),
		slog.String("request_id", ex.RequestID),
		slog.String("model", ex.Model),
		slog.String("base_url", ex.BaseURL),
		slog.String("endpoint", ex.Endpoint),
		extra,
	)
}

// Input records the request payload.
func (l *ModelIOLog) Input(ex Exchange, payload any) {
	l.write("model_input", ex, slog.Any("payload", payload))
}

// Output records the response.
func (l *ModelIOLog) Output(ex Exchange, response any) {
	l.write("model_output", ex, slog.Any("response", response))
}

// Error records a failed request.
func (l *ModelIOLog) Error(ex Exchange, err error) {
	l.write("model_error", ex, slog.String("error", err.Error()))
}

// flatten turns payload into attrs in key order so records are stable.
func flatten(payload map[string]any) []slog.Attr {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, payload[k]))
	}
	return attrs
}
