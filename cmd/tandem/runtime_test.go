package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodexForgeBR/tandem/internal/audit"
	"github.com/CodexForgeBR/tandem/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartupNotesPath(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "notes", "startup.md"), []byte("hi"), 0o644))
	abs := filepath.Join(t.TempDir(), "elsewhere.md")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "absolute kept", raw: abs, want: abs},
		{name: "found in work dir", raw: "notes/startup.md", want: filepath.Join(workDir, "notes", "startup.md")},
		{name: "missing stays raw", raw: "notes/none.md", want: "notes/none.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, startupNotesPath(tt.raw, workDir))
		})
	}
}

func TestSeedStartup(t *testing.T) {
	dir := t.TempDir()

	t.Run("seeds once", func(t *testing.T) {
		notes := filepath.Join(t.TempDir(), "startup.md")
		require.NoError(t, os.WriteFile(notes, []byte("We ship on Friday.\n```\nmake\n```\n"), 0o644))
		var buf bytes.Buffer
		store := memory.NewStore(filepath.Join(t.TempDir(), "memory.md"))
		activity := audit.NewActivityLog(audit.NewSink(&buf, "action", audit.Options{}))

		seedStartup(store, activity, notes, false)
		require.NoError(t, os.WriteFile(notes, []byte("Changed."), 0o644))
		seedStartup(store, activity, notes, false)

		e, ok := store.LatestFrom(memory.KindSessionSummary, memory.SourceStartupSeed)
		require.True(t, ok)
		assert.Equal(t, "We ship on Friday.", e.Content)
		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("startup.seed.done")))
	})

	t.Run("cold start replaces", func(t *testing.T) {
		store := memory.NewStore(filepath.Join(t.TempDir(), "memory.md"))
		require.NoError(t, store.Replace(memory.KindSessionSummary, memory.SourceStartupSeed, "Old plan."))
		other := filepath.Join(t.TempDir(), "other.md")
		require.NoError(t, os.WriteFile(other, []byte("New plan."), 0o644))

		seedStartup(store, nil, other, true)

		e, _ := store.LatestFrom(memory.KindSessionSummary, memory.SourceStartupSeed)
		assert.Equal(t, "New plan.", e.Content)
	})

	t.Run("missing file is skipped", func(t *testing.T) {
		var buf bytes.Buffer
		store := memory.NewStore(filepath.Join(t.TempDir(), "memory.md"))
		activity := audit.NewActivityLog(audit.NewSink(&buf, "action", audit.Options{}))

		seedStartup(store, activity, filepath.Join(dir, "none.md"), false)

		assert.Empty(t, store.Entries())
		assert.Contains(t, buf.String(), "startup.seed.skip")
	})
}
