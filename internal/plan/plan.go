// Package plan owns the durable main plan file, notes/main_plan.json.
//
// The executor model writes the plan itself through write_file, so the file
// may hold anything. Reads are lenient: snapshots, fingerprints and the
// persistence check work on the raw JSON document, and unknown keys survive
// every rewrite done here.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RelPath is the plan location relative to the work dir.
const RelPath = "notes/main_plan.json"

// Task statuses.
const (
	StatusStarted    = "started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// StageGoalReset is set when a different goal replaces the current one.
const StageGoalReset = "goal_reset_required"

// Task is one plan step.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	NextStep string `json:"next_step,omitempty"`
}

// Plan is the typed view of the plan document.
type Plan struct {
	Goal           string `json:"goal"`
	KeyAchievement string `json:"key_achievement"`
	CurrentStage   string `json:"current_stage"`
	Tasks          []Task `json:"tasks"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	RepairNote     string `json:"repair_note,omitempty"`
}

// Store reads and writes the plan file of one work dir.
type Store struct {
	workDir string
	path    string
	now     func() time.Time
}

// NewStore returns the store for workDir.
func NewStore(workDir string) *Store {
	return &Store{
		workDir: workDir,
		path:    filepath.Join(workDir, filepath.FromSlash(RelPath)),
		now:     time.Now,
	}
}

// Path returns the absolute plan file path.
func (s *Store) Path() string {
	return s.path
}

// IsPlanPath reports whether p (absolute, or relative to the work dir)
// names the plan file.
func (s *Store) IsPlanPath(p string) bool {
	if p == "" {
		return false
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.workDir, p)
	}
	return filepath.Clean(p) == filepath.Clean(s.path)
}

// errNotObject marks a plan file that parses but is not a JSON object.
var errNotObject = errors.New("plan is not a JSON object")

// readDoc returns the raw document. exists is false when the file is
// missing; err is non-nil when it exists but is not a JSON object.
func (s *Store) readDoc() (doc map[string]any, exists bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, true, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, true, errNotObject
	}
	return doc, true, nil
}

func (s *Store) writeDoc(doc map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create plan dir: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000000Z")
}

// Load returns the typed plan. Missing files yield (nil, nil).
func (s *Store) Load() (*Plan, error) {
	doc, exists, err := s.readDoc()
	if !exists {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p := &Plan{
		Goal:           stringField(doc, "goal"),
		KeyAchievement: stringField(doc, "key_achievement"),
		CurrentStage:   stringField(doc, "current_stage"),
		UpdatedAt:      stringField(doc, "updated_at"),
		RepairNote:     stringField(doc, "repair_note"),
	}
	if tasks, ok := doc["tasks"].([]any); ok {
		for _, item := range tasks {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			p.Tasks = append(p.Tasks, Task{
				ID:       stringField(m, "id"),
				Title:    stringField(m, "title"),
				Status:   stringField(m, "status"),
				NextStep: stringField(m, "next_step"),
			})
		}
	}
	return p, nil
}

// Save writes p, replacing the file, and stamps UpdatedAt.
func (s *Store) Save(p *Plan) error {
	p.UpdatedAt = s.timestamp()
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return s.writeDoc(doc)
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}
