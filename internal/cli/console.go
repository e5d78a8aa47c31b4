package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodexForgeBR/tandem/internal/admission"
	"github.com/CodexForgeBR/tandem/internal/banner"
	"github.com/CodexForgeBR/tandem/internal/logging"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/schedule"
)

// InputBuffer is the capacity of the orchestrator input channel.
const InputBuffer = 64

// Console routes operator lines. A line answers a pending permission
// question if there is one, runs a slash command, or goes to the
// orchestrator as a message. The plain console and the TUI share it.
//
// Queue and Remember are optional.
type Console struct {
	Inputs   chan<- orchestrator.Input
	Out      io.Writer
	Queue    *admission.Queue
	Remember func(note string) error
	Verbose  bool

	now             func() time.Time
	mu              sync.Mutex
	pending         chan string
	done            chan struct{}
	closeOnce       sync.Once
	statusRequested atomic.Bool
}

// NewConsole returns a console that sends to inputs and prints to out.
func NewConsole(inputs chan<- orchestrator.Input, out io.Writer) *Console {
	return &Console{
		Inputs: inputs,
		Out:    out,
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Close stops the console. Pending and future questions fail with io.EOF.
func (c *Console) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed by Close.
func (c *Console) Done() <-chan struct{} {
	return c.done
}

// Ask is a permission.AskFunc. It prints prompt and blocks until the
// next submitted line.
func (c *Console) Ask(prompt string) (string, error) {
	ch := make(chan string, 1)
	c.mu.Lock()
	c.pending = ch
	c.mu.Unlock()

	fmt.Fprint(c.Out, prompt)
	select {
	case answer := <-ch:
		return answer, nil
	case <-c.done:
		c.mu.Lock()
		if c.pending == ch {
			c.pending = nil
		}
		c.mu.Unlock()
		return "", io.EOF
	}
}

// AwaitingAnswer reports whether a permission question is pending.
func (c *Console) AwaitingAnswer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Submit routes one line and reports whether the operator asked to quit.
func (c *Console) Submit(line string) bool {
	c.mu.Lock()
	ch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if ch != nil {
		ch <- line
		return false
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if cmd, ok := ParseCommand(line); ok {
		return c.run(cmd)
	}
	c.send(orchestrator.Input{Kind: orchestrator.InputMessage, Text: line})
	return false
}

func (c *Console) send(in orchestrator.Input) {
	select {
	case c.Inputs <- in:
	case <-c.done:
	}
}

func (c *Console) run(cmd Command) bool {
	switch cmd.Name {
	case CmdHelp:
		fmt.Fprint(c.Out, commandHelp)
	case CmdStatus:
		c.statusRequested.Store(true)
		c.send(orchestrator.Input{Kind: orchestrator.InputStatus})
	case CmdIdleUntil:
		if cmd.Arg == "" {
			fmt.Fprintln(c.Out, "Usage: /idle-until <time|off>")
			return false
		}
		until, err := schedule.ParseIdleUntil(cmd.Arg, c.now())
		if err != nil {
			fmt.Fprintln(c.Out, err.Error())
			return false
		}
		c.send(orchestrator.Input{Kind: orchestrator.InputIdleUntil, Until: until})
	case CmdQueue:
		if c.Queue == nil {
			fmt.Fprintln(c.Out, "Model admission queue is disabled.")
			return false
		}
		banner.PrintQueue(c.Out, c.Queue.Snapshot())
	case CmdRemember:
		if c.Remember == nil {
			fmt.Fprintln(c.Out, "Memory is not configured.")
			return false
		}
		if err := c.Remember(cmd.Arg); err != nil {
			fmt.Fprintf(c.Out, "Could not remember: %v\n", err)
			return false
		}
		fmt.Fprintln(c.Out, "Noted.")
	case CmdQuit:
		return true
	default:
		fmt.Fprintf(c.Out, "Unknown command /%s. Type /help.\n", cmd.Name)
	}
	return false
}

// TakeStatusRequest reports whether /status was used since the last call.
func (c *Console) TakeStatusRequest() bool {
	return c.statusRequested.Swap(false)
}

// Observe prints orchestrator events for the plain console. Status
// snapshots are only printed in reply to /status.
func (c *Console) Observe(ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.EventActor:
		if c.Verbose {
			logging.Actor(string(ev.Actor.Actor), ev.Actor.Label, ev.Actor.LastEvent)
		}
	case orchestrator.EventAnswer:
		logging.Model(ev.Text)
	case orchestrator.EventNotice:
		logging.System(ev.Text)
	case orchestrator.EventError:
		logging.Error(ev.Text)
	case orchestrator.EventStatus:
		if ev.Status != nil && c.TakeStatusRequest() {
			banner.PrintBoard(c.Out, *ev.Status, ev.Time)
		}
	}
}

// ReadLoop submits lines from r until EOF, /quit or ctx is done. It
// closes the console before returning.
func (c *Console) ReadLoop(ctx context.Context, r io.Reader) error {
	defer c.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if c.Submit(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}
