package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
)

// truncateRunes cuts s to max runes and reports the total rune count.
func truncateRunes(s string, max int) (string, bool, int) {
	runes := []rune(s)
	if len(runes) <= max {
		return s, false, len(runes)
	}
	return string(runes[:max]), true, len(runes)
}

func maxChars(args parser.Args) int {
	n := args.Int("max_chars", DefaultMaxChars)
	if n <= 0 {
		return DefaultMaxChars
	}
	return n
}

func (e *Executor) readFile(_ context.Context, args parser.Args) Result {
	const tool = "read_file"
	path := e.resolve(args.StringOr("path", ""))
	if !e.allowed(permission.DiskRead, "read_file needs to read a file from disk.") {
		return denied(tool, permission.DiskRead)
	}
	if !isFile(path) {
		return fail(tool, "file_not_found", map[string]any{"path": path})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(tool, "read_failed", map[string]any{"path": path, "message": err.Error()})
	}
	content, truncated, total := truncateRunes(strings.ToValidUTF8(string(data), "�"), maxChars(args))
	return succeed(tool, map[string]any{
		"path":        path,
		"content":     content,
		"truncated":   truncated,
		"total_chars": total,
	})
}

func (e *Executor) listDir(_ context.Context, args parser.Args) Result {
	const tool = "list_dir"
	path := e.resolve(args.StringOr("path", ""))
	if !e.allowed(permission.DiskRead, "list_dir needs to read a directory.") {
		return denied(tool, permission.DiskRead)
	}
	if !isDir(path) {
		return fail(tool, "dir_not_found", map[string]any{"path": path})
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fail(tool, "read_failed", map[string]any{"path": path, "message": err.Error()})
	}
	items := make([]string, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entry.Name())
	}
	slices.Sort(items)
	return succeed(tool, map[string]any{"path": path, "items": items})
}

// fileContent returns the text to write. content wins over data; non-string
// values are written as indented JSON.
func fileContent(args parser.Args) string {
	raw, ok := args["content"]
	if !ok {
		raw = args["data"]
	}
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any, map[string]any:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return ""
		}
		return string(data)
	}
	s, _ := parser.Args{"v": raw}.String("v")
	return s
}

func (e *Executor) writeFile(_ context.Context, args parser.Args) Result {
	const tool = "write_file"
	path := e.resolve(args.StringOr("path", ""))
	content := fileContent(args)
	overwrite := args.Bool("overwrite", false) || (e.PlanPath != "" && realPath(path) == realPath(e.PlanPath))

	if !WithinWorkDir(path, e.WorkDir) {
		return fail(tool, "path_outside_work_dir", map[string]any{"path": path, "work_dir": e.WorkDir})
	}
	if !e.allowed(permission.DiskWrite, "write_file needs to write a file to disk.") {
		return denied(tool, permission.DiskWrite)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if (ext == ".json" || ext == ".jsonl") && strings.TrimSpace(content) == "" {
		return fail(tool, "empty_content_not_allowed_for_json", map[string]any{"path": path})
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fail(tool, "file_exists_overwrite_required", map[string]any{"path": path})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(tool, "write_failed", map[string]any{"path": path, "message": err.Error()})
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fail(tool, "write_failed", map[string]any{"path": path, "message": err.Error()})
	}
	return succeed(tool, map[string]any{"path": path, "chars": len([]rune(content))})
}

func (e *Executor) appendFile(_ context.Context, args parser.Args) Result {
	const tool = "append_file"
	path := e.resolve(args.StringOr("path", ""))
	content := fileContent(args)

	if !WithinWorkDir(path, e.WorkDir) {
		return fail(tool, "path_outside_work_dir", map[string]any{"path": path, "work_dir": e.WorkDir})
	}
	if !e.allowed(permission.DiskWrite, "append_file needs to write a file to disk.") {
		return denied(tool, permission.DiskWrite)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(tool, "write_failed", map[string]any{"path": path, "message": err.Error()})
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fail(tool, "write_failed", map[string]any{"path": path, "message": err.Error()})
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fail(tool, "write_failed", map[string]any{"path": path, "message": err.Error()})
	}
	return succeed(tool, map[string]any{"path": path, "chars": len([]rune(content))})
}
