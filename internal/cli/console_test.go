package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodexForgeBR/tandem/internal/admission"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// syncBuffer is a bytes.Buffer safe for the Ask goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole() (*Console, chan orchestrator.Input, *syncBuffer) {
	inputs := make(chan orchestrator.Input, InputBuffer)
	out := &syncBuffer{}
	c := NewConsole(inputs, out)
	c.now = func() time.Time { return time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) }
	return c, inputs, out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
		ok   bool
	}{
		{"help", "/help", Command{Name: CmdHelp}, true},
		{"upper case", "/STATUS", Command{Name: CmdStatus}, true},
		{"argument", "/idle-until  18:30 ", Command{Name: CmdIdleUntil, Arg: "18:30"}, true},
		{"note with spaces", "/remember the tests use port 8080", Command{Name: CmdRemember, Arg: "the tests use port 8080"}, true},
		{"exit alias", "/exit", Command{Name: CmdQuit}, true},
		{"plain text", "hello", Command{}, false},
		{"lone slash", "/", Command{}, false},
		{"absolute path", "/etc/hosts is readable?", Command{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsoleSubmit_Message(t *testing.T) {
	c, inputs, _ := newTestConsole()

	assert.False(t, c.Submit("  list the files  "))
	assert.False(t, c.Submit("   "))

	require.Len(t, inputs, 1)
	in := <-inputs
	assert.Equal(t, orchestrator.InputMessage, in.Kind)
	assert.Equal(t, "list the files", in.Text)
}

func TestConsoleSubmit_Commands(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		quit      bool
		wantInput *orchestrator.Input
		wantOut   string
	}{
		{name: "help", line: "/help", wantOut: "/remember <note>"},
		{name: "quit", line: "/quit", quit: true},
		{name: "status", line: "/status", wantInput: &orchestrator.Input{Kind: orchestrator.InputStatus}},
		{
			name:      "idle until",
			line:      "/idle-until 15:30",
			wantInput: &orchestrator.Input{Kind: orchestrator.InputIdleUntil, Until: time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)},
		},
		{name: "idle until off", line: "/idle-until off", wantInput: &orchestrator.Input{Kind: orchestrator.InputIdleUntil}},
		{name: "idle until missing arg", line: "/idle-until", wantOut: "Usage: /idle-until"},
		{name: "idle until invalid", line: "/idle-until whenever", wantOut: "invalid schedule format"},
		{name: "queue disabled", line: "/queue", wantOut: "queue is disabled"},
		{name: "remember without memory", line: "/remember x", wantOut: "Memory is not configured"},
		{name: "unknown", line: "/frobnicate", wantOut: "Unknown command /frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, inputs, out := newTestConsole()
			assert.Equal(t, tt.quit, c.Submit(tt.line))
			if tt.wantInput != nil {
				require.Len(t, inputs, 1)
				got := <-inputs
				assert.Equal(t, tt.wantInput.Kind, got.Kind)
				assert.True(t, tt.wantInput.Until.Equal(got.Until), "until %s, got %s", tt.wantInput.Until, got.Until)
			} else {
				assert.Empty(t, inputs)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func TestConsoleSubmit_Queue(t *testing.T) {
	c, _, out := newTestConsole()
	c.Queue = admission.NewQueue(time.Second, 3000)

	c.Submit("/queue")
	assert.Contains(t, out.String(), "Queue length: 0")
}

func TestConsoleSubmit_Remember(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantOut string
	}{
		{"stored", nil, "Noted."},
		{"failed", errors.New("empty note"), "Could not remember: empty note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, out := newTestConsole()
			var notes []string
			c.Remember = func(note string) error {
				notes = append(notes, note)
				return tt.err
			}
			c.Submit("/remember deploy with make release")
			assert.Equal(t, []string{"deploy with make release"}, notes)
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestConsoleAsk_AnsweredBySubmit(t *testing.T) {
	c, inputs, out := newTestConsole()

	type result struct {
		answer string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		a, err := c.Ask("Allow disk.write? [y/N/a] ")
		done <- result{a, err}
	}()

	require.Eventually(t, c.AwaitingAnswer, time.Second, 5*time.Millisecond)
	assert.False(t, c.Submit("/quit"), "a pending question takes the line verbatim")

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "/quit", r.answer)
	assert.Empty(t, inputs)
	assert.Contains(t, out.String(), "Allow disk.write?")
	assert.False(t, c.AwaitingAnswer())
}

func TestConsoleAsk_Closed(t *testing.T) {
	c, _, _ := newTestConsole()
	done := make(chan error, 1)
	go func() {
		_, err := c.Ask("question? ")
		done <- err
	}()
	require.Eventually(t, c.AwaitingAnswer, time.Second, 5*time.Millisecond)

	c.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Ask did not return after Close")
	}
	c.Close() // idempotent
}

func TestConsoleObserve_StatusOnlyOnRequest(t *testing.T) {
	c, inputs, out := newTestConsole()
	st := orchestrator.Status{Actors: []orchestrator.ActorState{{Actor: orchestrator.ActorRouter, Label: "ACTIVE"}}}

	c.Observe(orchestrator.Event{Kind: orchestrator.EventStatus, Status: &st})
	assert.NotContains(t, out.String(), "ROUTER")

	c.Submit("/status")
	<-inputs
	c.Observe(orchestrator.Event{Kind: orchestrator.EventStatus, Status: &st})
	assert.Contains(t, out.String(), "ROUTER")
	assert.False(t, c.TakeStatusRequest(), "request is consumed")
}

func TestConsoleReadLoop(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantInputs []string
	}{
		{"until eof", "first\n\nsecond\n", []string{"first", "second"}},
		{"stops at quit", "first\n/quit\nnever\n", []string{"first"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, inputs, _ := newTestConsole()
			require.NoError(t, c.ReadLoop(context.Background(), strings.NewReader(tt.input)))

			var got []string
			for len(inputs) > 0 {
				got = append(got, (<-inputs).Text)
			}
			assert.Equal(t, tt.wantInputs, got)

			select {
			case <-c.Done():
			default:
				t.Fatal("ReadLoop should close the console")
			}
		})
	}
}

func TestConsoleSend_AfterCloseDoesNotBlock(t *testing.T) {
	inputs := make(chan orchestrator.Input) // unbuffered, nobody reads
	c := NewConsole(inputs, io.Discard)
	c.Close()

	done := make(chan struct{})
	go func() {
		c.Submit("hello")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after Close")
	}
}
