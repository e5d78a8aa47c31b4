package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func writePlan(t *testing.T, s *Store, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))
}

func readRaw(t *testing.T, s *Store) map[string]any {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestStore_PathHelpers(t *testing.T) {
	s := NewStore("/work")
	assert.Equal(t, filepath.Join("/work", "notes", "main_plan.json"), s.Path())
	assert.True(t, s.IsPlanPath("notes/main_plan.json"))
	assert.True(t, s.IsPlanPath("./notes/../notes/main_plan.json"))
	assert.True(t, s.IsPlanPath("/work/notes/main_plan.json"))
	assert.False(t, s.IsPlanPath("notes/other.json"))
	assert.False(t, s.IsPlanPath(""))
}

func TestStore_SaveLoad(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.Save(&Plan{
		Goal:         "ship the parser",
		CurrentStage: "coding",
		Tasks:        []Task{{ID: "T1", Title: "write tests", Status: StatusInProgress}},
	}))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "ship the parser", loaded.Goal)
	assert.Equal(t, "2026-05-01T10:00:00.000000Z", loaded.UpdatedAt)
	require.Len(t, loaded.Tasks, 1)
	assert.Equal(t, StatusInProgress, loaded.Tasks[0].Status)
}

func TestStore_LoadMalformed(t *testing.T) {
	s := newTestStore(t)
	writePlan(t, s, `{"goal": "x",`)
	_, err := s.Load()
	assert.Error(t, err)
}

func TestStore_Snapshot(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		want           Snapshot
		wantActionable bool
	}{
		{name: "missing", content: "", want: Snapshot{}},
		{name: "malformed", content: `{"goal": `, want: Snapshot{Exists: true, ParseError: true}},
		{name: "not an object", content: `[1, 2]`, want: Snapshot{Exists: true, ParseError: true}},
		{
			name:           "open tasks",
			content:        `{"goal": " g ", "current_stage": "s", "tasks": [{"status": "completed"}, {"status": "started"}, "junk"]}`,
			want:           Snapshot{Exists: true, Goal: "g", CurrentStage: "s", TasksTotal: 3, TasksDone: 1, TasksActive: 1},
			wantActionable: true,
		},
		{
			name:           "in progress spelled loosely",
			content:        `{"goal": "g", "current_stage": "s", "tasks": [{"status": "In Progress"}]}`,
			want:           Snapshot{Exists: true, Goal: "g", CurrentStage: "s", TasksTotal: 1, TasksActive: 1},
			wantActionable: true,
		},
		{
			name:    "unknown status is not actionable",
			content: `{"goal": "g", "current_stage": "s", "tasks": [{"status": "blocked"}, {"note": "x"}]}`,
			want:    Snapshot{Exists: true, Goal: "g", CurrentStage: "s", TasksTotal: 2},
		},
		{
			name:    "all done",
			content: `{"goal": "g", "current_stage": "s", "tasks": [{"status": "Completed"}]}`,
			want:    Snapshot{Exists: true, Goal: "g", CurrentStage: "s", TasksTotal: 1, TasksDone: 1},
		},
		{
			name:    "tasks not a list",
			content: `{"goal": "g", "current_stage": "s", "tasks": {}}`,
			want:    Snapshot{Exists: true, Goal: "g", CurrentStage: "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if tt.content != "" {
				writePlan(t, s, tt.content)
			}
			got := s.Snapshot()
			tt.want.Path = s.Path()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantActionable, got.Actionable())
		})
	}
}

func TestStore_Persistence(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Persistence
	}{
		{name: "missing", want: Persistence{Required: true}},
		{name: "malformed", content: "{", want: Persistence{Required: true}},
		{name: "no tasks", content: `{"goal": "g", "current_stage": "s", "tasks": []}`, want: Persistence{Exists: true, Valid: true, Required: true}},
		{
			name:    "with tasks",
			content: `{"goal": "g", "current_stage": "s", "tasks": [{"id": "T1", "title": "t", "status": "started"}]}`,
			want:    Persistence{Exists: true, Valid: true, HasTasks: true},
		},
		{
			name:    "missing header",
			content: `{"tasks": [{"id": "T1", "title": "t", "status": "completed"}]}`,
			want:    Persistence{Exists: true, HasTasks: true},
		},
		{
			name:    "task without fields",
			content: `{"goal": "g", "current_stage": "s", "tasks": [{"note": "x"}]}`,
			want:    Persistence{Exists: true, Valid: true, Required: true},
		},
		{
			name:    "unknown status",
			content: `{"goal": "g", "current_stage": "s", "tasks": [{"id": "T1", "title": "t", "status": "blocked"}]}`,
			want:    Persistence{Exists: true, Valid: true, Required: true},
		},
		{
			name:    "one malformed task among good ones",
			content: `{"goal": "g", "current_stage": "s", "tasks": [{"id": "T1", "title": "t", "status": "in_progress"}, {"id": "", "title": "u", "status": "started"}]}`,
			want:    Persistence{Exists: true, Valid: true, Required: true},
		},
		{
			name:    "task is not an object",
			content: `{"goal": "g", "current_stage": "s", "tasks": ["T1"]}`,
			want:    Persistence{Exists: true, Valid: true, Required: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if tt.content != "" {
				writePlan(t, s, tt.content)
			}
			assert.Equal(t, tt.want, s.Persistence())
		})
	}
}

func TestStore_Fingerprint(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.Fingerprint())

	writePlan(t, s, `{"goal": "g", "tasks": [], "current_stage": "s"}`)
	first := s.Fingerprint()
	assert.Len(t, first, 64)

	writePlan(t, s, "{\n  \"current_stage\": \"s\",\n  \"goal\": \"g\",\n  \"tasks\": []\n}")
	assert.Equal(t, first, s.Fingerprint(), "key order and whitespace do not matter")

	writePlan(t, s, `{"goal": "g", "tasks": [], "current_stage": "t"}`)
	assert.NotEqual(t, first, s.Fingerprint())

	writePlan(t, s, `not json`)
	assert.Empty(t, s.Fingerprint())
}

func TestStore_Repair(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Repair()
	require.NoError(t, err)
	assert.False(t, res.Repaired)
	assert.Equal(t, "missing_file", res.Reason)

	broken := `{"goal": "build a crawler", "key_achievement": "fetched page", "current_stage": "fetch", "tasks": [ {"id": "T1", `
	writePlan(t, s, broken)

	res, err = s.Repair()
	require.NoError(t, err)
	assert.True(t, res.Repaired)
	assert.Equal(t, "build a crawler", res.Goal)
	assert.Equal(t, "fetch", res.CurrentStage)
	assert.Equal(t, s.Path()+".broken", res.BackupPath)

	backup, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, broken, string(backup))

	doc := readRaw(t, s)
	assert.Equal(t, "fetched page", doc["key_achievement"])
	assert.Equal(t, []any{}, doc["tasks"])
	assert.Equal(t, RepairNote, doc["repair_note"])

	res, err = s.Repair()
	require.NoError(t, err)
	assert.False(t, res.Repaired)
	assert.Equal(t, "well_formed", res.Reason)
}

func TestStore_UpsertGoal(t *testing.T) {
	t.Run("new plan", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.UpsertGoal("write a scraper"))

		doc := readRaw(t, s)
		assert.Equal(t, "write a scraper", doc["goal"])
		assert.Equal(t, "planning", doc["current_stage"])
		assert.Equal(t, []any{}, doc["tasks"])
		assert.Equal(t, "2026-05-01T10:00:00.000000Z", doc["updated_at"])
	})

	t.Run("same goal keeps progress and unknown keys", func(t *testing.T) {
		s := newTestStore(t)
		writePlan(t, s, `{"goal": "g1", "current_stage": "coding", "tasks": [{"id": "T1"}], "owner": "me"}`)
		require.NoError(t, s.UpsertGoal("g1"))

		doc := readRaw(t, s)
		assert.Equal(t, "coding", doc["current_stage"])
		assert.Len(t, doc["tasks"], 1)
		assert.Equal(t, "me", doc["owner"])
	})

	t.Run("different goal resets", func(t *testing.T) {
		s := newTestStore(t)
		writePlan(t, s, `{"goal": "g1", "key_achievement": "k", "current_stage": "coding", "tasks": [{"id": "T1"}]}`)
		require.NoError(t, s.UpsertGoal("g2 entirely new"))

		doc := readRaw(t, s)
		assert.Equal(t, "g2 entirely new", doc["goal"])
		assert.Equal(t, StageGoalReset, doc["current_stage"])
		assert.Equal(t, "", doc["key_achievement"])
		assert.Equal(t, []any{}, doc["tasks"])
	})

	t.Run("malformed file replaced", func(t *testing.T) {
		s := newTestStore(t)
		writePlan(t, s, `{{{`)
		require.NoError(t, s.UpsertGoal("recover the plan"))
		assert.Equal(t, "recover the plan", readRaw(t, s)["goal"])
	})
}

func TestStore_EnsureSeedTask(t *testing.T) {
	t.Run("seeds empty plan", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.UpsertGoal("analyse the logs"))

		seeded, err := s.EnsureSeedTask("ignored because plan has a goal")
		require.NoError(t, err)
		assert.True(t, seeded)

		p, err := s.Load()
		require.NoError(t, err)
		require.Len(t, p.Tasks, 1)
		assert.Equal(t, Task{ID: "T1", Title: "analyse the logs", Status: StatusStarted, NextStep: "Run the first tool step for this goal."}, p.Tasks[0])
		assert.Equal(t, "planning", p.CurrentStage)
		assert.Equal(t, "Plan initialized with a first operational step.", p.KeyAchievement)
		assert.True(t, s.Persistence().HasTasks)
		assert.Empty(t, ValidateSchema(mustRead(t, s.Path())))
	})

	t.Run("missing plan uses given goal", func(t *testing.T) {
		s := newTestStore(t)
		seeded, err := s.EnsureSeedTask("count the words")
		require.NoError(t, err)
		assert.True(t, seeded)
		doc := readRaw(t, s)
		assert.Equal(t, "count the words", doc["goal"])
		assert.Equal(t, "plan_initialized", doc["current_stage"])
	})

	t.Run("existing tasks untouched", func(t *testing.T) {
		s := newTestStore(t)
		writePlan(t, s, `{"goal": "g", "current_stage": "s", "tasks": [{"id": "A", "title": "a", "status": "started"}]}`)
		seeded, err := s.EnsureSeedTask("g")
		require.NoError(t, err)
		assert.False(t, seeded)
	})

	t.Run("malformed tasks replaced by seed", func(t *testing.T) {
		s := newTestStore(t)
		writePlan(t, s, `{"goal": "g", "current_stage": "s", "tasks": [{"note": "x"}]}`)
		seeded, err := s.EnsureSeedTask("g")
		require.NoError(t, err)
		assert.True(t, seeded)

		p, err := s.Load()
		require.NoError(t, err)
		require.Len(t, p.Tasks, 1)
		assert.Equal(t, "T1", p.Tasks[0].ID)
		assert.False(t, s.Persistence().Required)
	})

	t.Run("malformed tasks dropped next to good ones", func(t *testing.T) {
		s := newTestStore(t)
		writePlan(t, s, `{"goal": "g", "current_stage": "s", "tasks": [{"id": "A", "title": "a", "status": "in_progress"}, {"title": "no id"}]}`)
		seeded, err := s.EnsureSeedTask("g")
		require.NoError(t, err)
		assert.True(t, seeded)

		p, err := s.Load()
		require.NoError(t, err)
		require.Len(t, p.Tasks, 1)
		assert.Equal(t, "A", p.Tasks[0].ID)
		assert.Equal(t, "s", p.CurrentStage)
	})
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
