package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kinds of memory entries.
const (
	KindNote           = "note"
	KindGoal           = "goal"
	KindToolDesign     = "tool_design"
	KindInteraction    = "interaction"
	KindSessionSummary = "session_summary"
)

const (
	// DefaultContextLimit is how many entries are injected into a prompt.
	DefaultContextLimit = 5

	// MaxEntryChars bounds one entry in the prompt context.
	MaxEntryChars = 1200

	fileHeader = "# Tandem Memory\n"
)

var headerRe = regexp.MustCompile(`^## ([a-z_]+) \| ([A-Za-z0-9_.-]+) \| (\S+)$`)

// Entry is one remembered item.
type Entry struct {
	Kind      string
	Source    string
	Content   string
	CreatedAt time.Time
}

// Store is an append-only markdown file of memory entries.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore returns a store backed by path. The file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func formatEntry(e Entry) string {
	return fmt.Sprintf("\n## %s | %s | %s\n\n%s\n", e.Kind, e.Source, e.CreatedAt.UTC().Format(time.RFC3339), strings.TrimSpace(e.Content))
}

// Add appends an entry. Blank content is ignored.
func (s *Store) Add(kind, source, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open memory file: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		if _, err := f.WriteString(fileHeader); err != nil {
			return fmt.Errorf("failed to write memory header: %w", err)
		}
	}
	entry := Entry{Kind: kind, Source: source, Content: content, CreatedAt: s.now()}
	if _, err := f.WriteString(formatEntry(entry)); err != nil {
		return fmt.Errorf("failed to append memory: %w", err)
	}
	return nil
}

// Replace drops every entry with the same kind and source and appends the
// new content.
func (s *Store) Replace(kind, source, content string) error {
	s.mu.Lock()
	entries := s.readLocked()
	var b strings.Builder
	b.WriteString(fileHeader)
	for _, e := range entries {
		if e.Kind == kind && e.Source == source {
			continue
		}
		b.WriteString(formatEntry(e))
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create memory directory: %w", err)
	}
	err := os.WriteFile(s.path, []byte(b.String()), 0o644)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to rewrite memory file: %w", err)
	}
	return s.Add(kind, source, content)
}

// Entries returns every entry in file order. A missing or unreadable file
// has no entries.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var entries []Entry
	var cur *Entry
	var body []string
	flush := func() {
		if cur == nil {
			return
		}
		cur.Content = strings.TrimSpace(strings.Join(body, "\n"))
		entries = append(entries, *cur)
		cur, body = nil, nil
	}
	for _, line := range strings.Split(string(data), "\n") {
		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			created, _ := time.Parse(time.RFC3339, m[3])
			cur = &Entry{Kind: m[1], Source: m[2], CreatedAt: created}
			continue
		}
		if cur != nil {
			body = append(body, line)
		}
	}
	flush()
	return entries
}

// Latest returns the newest entry of kind.
func (s *Store) Latest(kind string) (Entry, bool) {
	entries := s.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == kind {
			return entries[i], true
		}
	}
	return Entry{}, false
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// Relevant returns up to limit entries ranked by word overlap with query,
// newest first among equals. Interactions and session summaries are not
// candidates.
func (s *Store) Relevant(query string, limit int) []Entry {
	if limit <= 0 {
		return nil
	}
	entries := s.Entries()
	q := wordSet(query)
	type scored struct {
		entry Entry
		score int
		order int
	}
	var candidates []scored
	for i, e := range entries {
		if e.Content == "" || e.Kind == KindInteraction || e.Kind == KindSessionSummary {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: overlap(q, wordSet(e.Content)), order: i})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order > candidates[j].order
	})
	out := make([]Entry, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.entry)
	}
	return out
}

func truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxEntryChars {
		return content
	}
	return string(runes[:MaxEntryChars]) + "\n...[truncated]"
}

// Context renders the latest session summary and the entries most relevant
// to query as a numbered list for the system prompt. It returns "" when
// nothing is remembered.
func (s *Store) Context(query string, limit int) string {
	summary, hasSummary := s.Latest(KindSessionSummary)
	selected := s.Relevant(query, limit)
	if !hasSummary && len(selected) == 0 {
		return ""
	}
	lines := []string{}
	if hasSummary {
		lines = append(lines, fmt.Sprintf("0. (%s/%s) %s", summary.Kind, summary.Source, truncate(summary.Content)))
	}
	for i, e := range selected {
		lines = append(lines, fmt.Sprintf("%d. (%s/%s) %s", i+1, e.Kind, e.Source, truncate(e.Content)))
	}
	return strings.Join(lines, "\n")
}
