package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Snapshot summarizes the plan for prompts and status displays.
type Snapshot struct {
	Path         string `json:"path"`
	Exists       bool   `json:"exists"`
	ParseError   bool   `json:"parse_error,omitempty"`
	Goal         string `json:"goal"`
	CurrentStage string `json:"current_stage"`
	TasksTotal   int    `json:"tasks_total"`
	TasksDone    int    `json:"tasks_done"`
	TasksActive  int    `json:"tasks_active"`
}

// Actionable reports whether at least one task is started or in progress.
func (s Snapshot) Actionable() bool {
	return s.Exists && !s.ParseError && s.TasksActive > 0
}

// Persistence is the plan-persistence check run after goal-bearing turns.
type Persistence struct {
	Exists   bool `json:"exists"`
	Valid    bool `json:"valid"`
	HasTasks bool `json:"has_tasks"`
	Required bool `json:"required"`
}

// Snapshot reads the plan file.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Path: s.path}
	doc, exists, err := s.readDoc()
	if !exists {
		return snap
	}
	snap.Exists = true
	if err != nil {
		snap.ParseError = true
		return snap
	}
	snap.Goal = stringField(doc, "goal")
	snap.CurrentStage = stringField(doc, "current_stage")
	snap.TasksTotal, snap.TasksDone, snap.TasksActive = countTasks(doc)
	return snap
}

// countTasks returns the number of tasks, how many are completed and how
// many are started or in progress.
func countTasks(doc map[string]any) (total, done, active int) {
	tasks, ok := doc["tasks"].([]any)
	if !ok {
		return 0, 0, 0
	}
	for _, item := range tasks {
		total++
		task, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch taskStatus(task) {
		case StatusCompleted:
			done++
		case StatusStarted, StatusInProgress:
			active++
		}
	}
	return total, done, active
}

// taskStatus returns the normalized status of task, so "In Progress" and
// "in-progress" both read as in_progress.
func taskStatus(task map[string]any) string {
	status, _ := task["status"].(string)
	status = strings.ToLower(strings.TrimSpace(status))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(status)
}

// wellFormedTask reports whether item has a non-empty id and title and an
// allowed status. next_step is free-form.
func wellFormedTask(item any) bool {
	task, ok := item.(map[string]any)
	if !ok || stringField(task, "id") == "" || stringField(task, "title") == "" {
		return false
	}
	switch taskStatus(task) {
	case StatusStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Persistence reports whether the plan holds at least one task and every
// task is well-formed. Required is true until it does.
func (s *Store) Persistence() Persistence {
	doc, exists, err := s.readDoc()
	if !exists || err != nil {
		return Persistence{Required: true}
	}
	tasks, isList := doc["tasks"].([]any)
	hasTasks := isList && len(tasks) > 0
	for _, task := range tasks {
		hasTasks = hasTasks && wellFormedTask(task)
	}
	header := stringField(doc, "goal") != "" && stringField(doc, "current_stage") != ""
	return Persistence{
		Exists:   true,
		Valid:    header && isList,
		HasTasks: hasTasks,
		Required: !hasTasks,
	}
}

// Fingerprint returns the SHA-256 of the canonical JSON form of the plan
// (keys sorted), or "" when the plan is missing or unreadable.
func (s *Store) Fingerprint() string {
	doc, exists, err := s.readDoc()
	if !exists || err != nil {
		return ""
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
