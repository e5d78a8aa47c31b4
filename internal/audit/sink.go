// Package audit writes the machine-readable JSONL logs of a session: the
// activity log, the supervisor dialogue log and the model IO logs.
//
// Each log is a slog.Logger whose JSON handler writes one object per line.
// Records may also be fanned out to the systemd journal. Writes are fire
// and forget; a failing sink never interrupts the caller.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options configures a Sink.
type Options struct {
	// Journal additionally sends records to the systemd journal when a
	// journal socket is available.
	Journal bool
}

// Sink is one JSONL audit destination.
type Sink struct {
	logger *slog.Logger
	closer io.Closer
}

// Open creates (or appends to) the JSONL file at path. The slog message
// becomes the field named msgKey.
func Open(path, msgKey string, opts Options) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	sink := NewSink(f, msgKey, opts)
	sink.closer = f
	return sink, nil
}

// NewSink builds a sink over w.
func NewSink(w io.Writer, msgKey string, opts Options) *Sink {
	handlers := []slog.Handler{
		slog.NewJSONHandler(w, &slog.HandlerOptions{ReplaceAttr: recordKeys(msgKey)}),
	}
	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			ReplaceGroup: toJournalKey,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err == nil {
			handlers = append(handlers, journal)
		}
	}
	return &Sink{logger: slog.New(slogmulti.Fanout(handlers...))}
}

// Nop returns a sink that discards everything.
func Nop() *Sink {
	return &Sink{logger: slog.New(slog.DiscardHandler)}
}

func recordKeys(msgKey string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339Nano))
		case slog.LevelKey:
			return slog.Attr{}
		case slog.MessageKey:
			a.Key = msgKey
		}
		return a
	}
}

func toJournalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}

func (s *Sink) write(msg string, attrs ...slog.Attr) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

// Close closes the underlying file, if any.
func (s *Sink) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
