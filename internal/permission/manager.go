// Package permission asks the operator before the runtime touches a
// resource class on the executor's behalf.
package permission

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// Resource kinds.
const (
	DiskRead        = "disk.read"
	DiskWrite       = "disk.write"
	NetworkLocal    = "network.local"
	NetworkInternet = "network.internet"
	ProcessExec     = "process.exec"
)

// AskFunc shows prompt to the operator and returns the raw answer.
type AskFunc func(prompt string) (string, error)

// Manager remembers grants for the lifetime of a session. Once a resource
// is granted it is never asked for again.
type Manager struct {
	mu       sync.Mutex
	ask      AskFunc
	notify   func(string)
	allowAll bool
	granted  map[string]bool
}

// NewManager returns a manager that asks through ask. notify receives
// status lines and may be nil.
func NewManager(ask AskFunc, notify func(string)) *Manager {
	if notify == nil {
		notify = func(string) {}
	}
	return &Manager{ask: ask, notify: notify, granted: map[string]bool{}}
}

// NewAutonomous returns a manager that grants everything without asking.
func NewAutonomous() *Manager {
	m := NewManager(nil, nil)
	m.allowAll = true
	return m
}

// IsAllowed reports whether resource may be used, asking the operator if
// it has not been granted yet. Answers: y/yes remembers the resource,
// a/all grants every resource, anything else denies this request only.
func (m *Manager) IsAllowed(resource, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allowAll || m.granted[resource] {
		return true
	}
	if m.ask == nil {
		return false
	}

	answer, err := m.ask(fmt.Sprintf("Permission required for resource '%s'. %s\nChoose: [y]es (remember for this resource) / [n]o / [a]ll (grant everything): ", resource, reason))
	if err != nil {
		m.notify(fmt.Sprintf("Access denied to resource: %s (%v)", resource, err))
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "a", "all":
		m.allowAll = true
		m.notify("Global grant enabled for all resources.")
		return true
	case "y", "yes":
		m.granted[resource] = true
		return true
	}
	m.notify("Access denied to resource: " + resource)
	return false
}

// AllowAll reports whether a global grant is active.
func (m *Manager) AllowAll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowAll
}

// Granted returns the individually granted resources, sorted.
func (m *Manager) Granted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.granted))
	for r := range m.granted {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// ConsoleAsk prompts on w and reads one line from r.
func ConsoleAsk(r io.Reader, w io.Writer) AskFunc {
	reader := bufio.NewReader(r)
	return func(prompt string) (string, error) {
		fmt.Fprint(w, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return line, nil
	}
}
