package plan

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// RepairNote marks a plan rebuilt from a malformed file.
const RepairNote = "main_plan_auto_repaired_from_malformed_json"

var (
	goalRe        = regexp.MustCompile(`"goal"\s*:\s*"([^"]*)"`)
	stageRe       = regexp.MustCompile(`"current_stage"\s*:\s*"([^"]*)"`)
	achievementRe = regexp.MustCompile(`"key_achievement"\s*:\s*"([^"]*)"`)
)

// RepairResult describes a repair attempt.
type RepairResult struct {
	Repaired     bool
	Reason       string
	BackupPath   string
	Goal         string
	CurrentStage string
}

// Repair rebuilds a malformed plan file. Goal, current stage and key
// achievement are recovered by pattern; tasks are discarded. The original
// bytes are kept in main_plan.json.broken. Well-formed or missing files are
// left alone.
func (s *Store) Repair() (RepairResult, error) {
	_, exists, parseErr := s.readDoc()
	if !exists {
		return RepairResult{Reason: "missing_file"}, nil
	}
	if parseErr == nil {
		return RepairResult{Reason: "well_formed"}, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return RepairResult{}, fmt.Errorf("read plan: %w", err)
	}
	text := string(raw)

	result := RepairResult{
		Repaired:     true,
		Goal:         firstGroup(goalRe, text),
		CurrentStage: firstGroup(stageRe, text),
	}
	backup := s.path + ".broken"
	if err := os.WriteFile(backup, raw, 0o644); err == nil {
		result.BackupPath = backup
	}

	doc := map[string]any{
		"goal":            result.Goal,
		"key_achievement": firstGroup(achievementRe, text),
		"current_stage":   result.CurrentStage,
		"tasks":           []any{},
		"updated_at":      s.timestamp(),
		"repair_note":     RepairNote,
	}
	if err := s.writeDoc(doc); err != nil {
		return RepairResult{}, err
	}
	return result, nil
}

func firstGroup(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
