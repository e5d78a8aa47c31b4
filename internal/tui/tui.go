// Package tui is the full-screen status view: an actor board, the plan
// summary, a scrolling transcript and an input line. It never touches
// orchestrator state. Events arrive as messages and input leaves through
// the shared cli.Console.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CodexForgeBR/tandem/internal/banner"
	"github.com/CodexForgeBR/tandem/internal/cli"
	"github.com/CodexForgeBR/tandem/internal/orchestrator"
	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	actorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	actorNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	eventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1)
)

const maxTranscriptLines = 2000

// EventMsg carries one orchestrator event into Update.
type EventMsg struct {
	Event orchestrator.Event
}

// PlanMsg carries a plan snapshot from the plan watcher.
type PlanMsg struct {
	Snapshot plan.Snapshot
}

type flushMsg struct{}

// Outbox collects console output. It is the cli.Console writer in TUI
// mode; each write schedules a flush through notify.
type Outbox struct {
	mu     sync.Mutex
	buf    strings.Builder
	notify func()
}

// Write implements io.Writer.
func (o *Outbox) Write(p []byte) (int, error) {
	o.mu.Lock()
	o.buf.Write(p)
	notify := o.notify
	o.mu.Unlock()
	if notify != nil {
		notify()
	}
	return len(p), nil
}

func (o *Outbox) drain() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.buf.String()
	o.buf.Reset()
	return s
}

// Model is the bubbletea model of the status view.
type Model struct {
	console *cli.Console
	outbox  *Outbox
	pause   func()
	title   string
	now     func() time.Time

	actors   map[orchestrator.Actor]orchestrator.ActorState
	status   *orchestrator.Status
	plan     plan.Snapshot
	lines    []string
	viewport viewport.Model
	input    textinput.Model
	width    int
	ready    bool
}

// New returns a model that submits through console. pause is called on
// Esc and may be nil.
func New(console *cli.Console, outbox *Outbox, pause func(), title string) Model {
	in := textinput.New()
	in.Placeholder = "Message or /help"
	in.CharLimit = 4000
	in.Focus()

	actors := make(map[orchestrator.Actor]orchestrator.ActorState, len(orchestrator.Actors))
	for _, a := range orchestrator.Actors {
		actors[a] = orchestrator.ActorState{Actor: a, Label: "READY"}
	}
	return Model{
		console: console,
		outbox:  outbox,
		pause:   pause,
		title:   title,
		now:     time.Now,
		actors:  actors,
		input:   in,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - m.chromeHeight()
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - 6
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			m.console.Close()
			return m, tea.Quit
		case "esc":
			if m.pause != nil {
				m.pause()
				m.appendLine(noticeStyle.Render("Pause requested."))
			}
			return m, nil
		case "enter":
			line := m.input.Value()
			m.input.Reset()
			if !m.console.AwaitingAnswer() && strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.appendLine(userStyle.Render("> " + line))
			quit := m.console.Submit(line)
			m.flush()
			if quit {
				m.console.Close()
				return m, tea.Quit
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case EventMsg:
		m.apply(msg.Event)
		return m, nil

	case PlanMsg:
		m.plan = msg.Snapshot
		return m, nil

	case flushMsg:
		m.flush()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) apply(ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.EventActor:
		m.actors[ev.Actor.Actor] = ev.Actor
	case orchestrator.EventAnswer:
		m.appendLine(answerStyle.Render("[model]") + "\n" + m.wrap(ev.Text))
	case orchestrator.EventNotice:
		m.appendLine(noticeStyle.Render("[system] ") + m.wrap(ev.Text))
	case orchestrator.EventError:
		m.appendLine(errorStyle.Render("[error] ") + m.wrap(ev.Text))
	case orchestrator.EventStatus:
		if ev.Status == nil {
			return
		}
		m.status = ev.Status
		m.plan = ev.Status.Plan
		for _, a := range ev.Status.Actors {
			m.actors[a.Actor] = a
		}
		if m.console.TakeStatusRequest() {
			var b strings.Builder
			banner.PrintBoard(&b, *ev.Status, m.now())
			m.appendLine(strings.TrimRight(b.String(), "\n"))
		}
	}
}

func (m *Model) flush() {
	if m.outbox == nil {
		return
	}
	if out := strings.TrimRight(m.outbox.drain(), "\n"); out != "" {
		m.appendLine(out)
	}
}

func (m *Model) appendLine(s string) {
	m.lines = append(m.lines, s)
	if len(m.lines) > maxTranscriptLines {
		m.lines = m.lines[len(m.lines)-maxTranscriptLines:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) wrap(text string) string {
	width := m.viewport.Width - 2
	if width < 20 {
		width = 80
	}
	return wordwrap.String(text, width)
}

// chromeHeight is the number of rows outside the transcript: title, the
// bordered actor board, the plan line, the bordered input and help.
func (m Model) chromeHeight() int {
	return 1 + 4 + 1 + 3 + 1
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting tandem..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.title),
		m.renderBoard(),
		m.renderPlan(),
		m.viewport.View(),
		inputStyle.Render(m.input.View()),
		helpStyle.Render("enter: send • esc: pause • pgup/pgdown: scroll • ctrl+c: quit"),
	)
}

func (m Model) renderBoard() string {
	boxWidth := m.width/len(orchestrator.Actors) - 2
	if boxWidth < 14 {
		boxWidth = 14
	}
	boxes := make([]string, 0, len(orchestrator.Actors))
	for _, a := range orchestrator.Actors {
		st := m.actors[a]
		event := st.LastEvent
		if limit := boxWidth - 2; len(event) > limit && limit > 3 {
			event = event[:limit-3] + "..."
		}
		boxes = append(boxes, actorStyle.Width(boxWidth).Render(
			actorNameStyle.Render(strings.ToUpper(string(a)))+" "+st.Label+"\n"+eventStyle.Render(event)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m Model) renderPlan() string {
	p := m.plan
	var parts []string
	switch {
	case !p.Exists:
		parts = append(parts, "plan: none")
	case p.ParseError:
		parts = append(parts, errorStyle.Render("plan: unreadable"))
	default:
		parts = append(parts, fmt.Sprintf("plan: %d/%d done", p.TasksDone, p.TasksTotal))
		if p.CurrentStage != "" {
			parts = append(parts, "stage: "+p.CurrentStage)
		}
	}
	if p.Goal != "" {
		parts = append(parts, "goal: "+p.Goal)
	}
	if st := m.status; st != nil {
		parts = append(parts, "work: "+string(st.WorkState))
		if st.Paused {
			parts = append(parts, noticeStyle.Render("PAUSED"))
		}
		if st.Watchdog.SuspendedUntilNewInput {
			parts = append(parts, noticeStyle.Render("watchdog suspended"))
		}
	}
	return eventStyle.Render(strings.Join(parts, " │ "))
}

// Run starts the program and blocks until it quits or ctx is done. events
// and plans are forwarded into the program until they close; either may
// be nil.
func Run(ctx context.Context, m Model, events <-chan orchestrator.Event, plans <-chan plan.Snapshot) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if m.outbox != nil {
		m.outbox.mu.Lock()
		m.outbox.notify = func() { go p.Send(flushMsg{}) }
		m.outbox.mu.Unlock()
	}
	if events != nil {
		go func() {
			for ev := range events {
				p.Send(EventMsg{Event: ev})
			}
		}()
	}
	if plans != nil {
		go func() {
			for snap := range plans {
				p.Send(PlanMsg{Snapshot: snap})
			}
		}()
	}
	_, err := p.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
