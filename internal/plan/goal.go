package plan

import (
	"regexp"
	"strings"
)

// MinGoalLength is the shortest accepted goal candidate.
const MinGoalLength = 8

var (
	goalMarkers = []string{
		"your goal",
		"your task",
		"your objective",
		"goal:",
	}
	goalLeadRe = regexp.MustCompile(`^[\s:=-]+`)
	goalVerbRe = regexp.MustCompile(`(?i)^(is|will be)\b`)

	confirmations = map[string]bool{
		"yes": true, "y": true, "confirm": true, "confirmed": true,
		"correct": true, "exactly": true,
	}
	rejections = map[string]bool{
		"no": true, "n": true, "cancel": true, "change": true,
		"wrong": true, "not that": true,
	}
)

// ExtractGoalCandidate finds a goal statement such as "your goal is to
// build X". ok is false when no marker is present or the candidate is
// shorter than MinGoalLength.
func ExtractGoalCandidate(message string) (goal string, ok bool) {
	lower := strings.ToLower(message)
	start, marker := -1, ""
	for _, m := range goalMarkers {
		if i := strings.Index(lower, m); i >= 0 {
			start, marker = i, m
			break
		}
	}
	if start < 0 {
		return "", false
	}
	segment := strings.TrimSpace(message[start+len(marker):])
	segment = strings.TrimSpace(goalLeadRe.ReplaceAllString(segment, ""))
	segment = strings.TrimSpace(goalVerbRe.ReplaceAllString(segment, ""))
	segment = strings.TrimSpace(goalLeadRe.ReplaceAllString(segment, ""))
	segment = strings.Trim(segment, `'" `)
	if len(segment) < MinGoalLength {
		return "", false
	}
	return segment, true
}

// IsConfirmation reports whether message confirms a pending goal.
func IsConfirmation(message string) bool {
	return confirmations[strings.ToLower(strings.TrimSpace(message))]
}

// IsRejection reports whether message rejects a pending goal.
func IsRejection(message string) bool {
	return rejections[strings.ToLower(strings.TrimSpace(message))]
}

// UpsertGoal records goal in the plan. A materially different goal resets
// key_achievement and tasks and sets current_stage to StageGoalReset; the
// same goal keeps the existing progress. Unknown keys are preserved.
func (s *Store) UpsertGoal(goal string) error {
	doc, _, err := s.readDoc()
	if err != nil || doc == nil {
		doc = map[string]any{}
	}

	previous := stringField(doc, "goal")
	doc["goal"] = goal
	if previous != "" && previous != goal {
		doc["key_achievement"] = ""
		doc["current_stage"] = StageGoalReset
		doc["tasks"] = []any{}
	} else {
		if _, ok := doc["key_achievement"]; !ok {
			doc["key_achievement"] = ""
		}
		if _, ok := doc["current_stage"]; !ok {
			doc["current_stage"] = "planning"
		}
		if _, ok := doc["tasks"].([]any); !ok {
			doc["tasks"] = []any{}
		}
	}
	doc["updated_at"] = s.timestamp()
	return s.writeDoc(doc)
}

// EnsureSeedTask makes the plan hold only well-formed tasks, at least one.
// Malformed tasks are dropped; when none remain, task T1 titled after goal
// is added. seeded reports whether a write happened.
func (s *Store) EnsureSeedTask(goal string) (seeded bool, err error) {
	if s.Persistence().HasTasks {
		return false, nil
	}
	doc, _, readErr := s.readDoc()
	if readErr != nil || doc == nil {
		doc = map[string]any{}
	}
	if g := stringField(doc, "goal"); g != "" {
		goal = g
	}
	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "Continue the user's main goal"
	}
	title := goal
	if runes := []rune(title); len(runes) > 200 {
		title = string(runes[:200])
	}

	doc["goal"] = goal
	if stringField(doc, "key_achievement") == "" {
		doc["key_achievement"] = "Plan initialized with a first operational step."
	}
	if stage := stringField(doc, "current_stage"); stage == "" || stage == StageGoalReset {
		doc["current_stage"] = "plan_initialized"
	}
	kept := []any{}
	if tasks, ok := doc["tasks"].([]any); ok {
		for _, task := range tasks {
			if wellFormedTask(task) {
				kept = append(kept, task)
			}
		}
	}
	if len(kept) == 0 {
		kept = append(kept, map[string]any{
			"id":        "T1",
			"title":     title,
			"status":    StatusStarted,
			"next_step": "Run the first tool step for this goal.",
		})
	}
	doc["tasks"] = kept
	doc["updated_at"] = s.timestamp()
	if err := s.writeDoc(doc); err != nil {
		return false, err
	}
	return true, nil
}
