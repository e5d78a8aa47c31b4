package tools

import (
	"os"
	"path/filepath"
	"strings"
)

// workDirAliases returns the names a model may use for the work directory
// itself, e.g. "my-work" and "my_work".
func workDirAliases(workDir string) map[string]bool {
	base := filepath.Base(filepath.Clean(workDir))
	return map[string]bool{
		base:                               true,
		strings.ReplaceAll(base, "-", "_"): true,
		strings.ReplaceAll(base, "_", "-"): true,
	}
}

// ResolvePath maps a tool path argument onto the file system. Empty paths
// mean the work directory. Relative paths are joined to the work directory
// after dropping a leading segment that names the work directory. Runs of
// repeated work-directory segments collapse into one.
func ResolvePath(workDir, raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return filepath.Clean(workDir)
	}
	aliases := workDirAliases(workDir)

	if filepath.IsAbs(cleaned) {
		return collapseAliases(filepath.Clean(cleaned), aliases)
	}

	parts := strings.Split(filepath.ToSlash(filepath.Clean(cleaned)), "/")
	if len(parts) > 0 && aliases[parts[0]] {
		parts = parts[1:]
	}
	joined := filepath.Join(append([]string{workDir}, parts...)...)
	return collapseAliases(joined, aliases)
}

func collapseAliases(path string, aliases map[string]bool) string {
	abs := filepath.IsAbs(path)
	parts := strings.Split(filepath.ToSlash(path), "/")
	kept := make([]string, 0, len(parts))
	prevAlias := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		isAlias := aliases[part]
		if isAlias && prevAlias {
			continue
		}
		kept = append(kept, part)
		prevAlias = isAlias
	}
	out := filepath.FromSlash(strings.Join(kept, "/"))
	if abs {
		return string(filepath.Separator) + out
	}
	if out == "" {
		return "."
	}
	return out
}

// realPath resolves symlinks in the longest existing prefix of path.
func realPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	dir, rest := filepath.Split(abs)
	if dir == abs || dir == "" {
		return abs
	}
	parent := filepath.Clean(dir)
	if parent == abs {
		return abs
	}
	return filepath.Join(realPath(parent), rest)
}

// WithinWorkDir reports whether path is the work directory or lies below it.
func WithinWorkDir(path, workDir string) bool {
	p := realPath(path)
	w := realPath(workDir)
	if p == w {
		return true
	}
	rel, err := filepath.Rel(w, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (e *Executor) resolve(raw string) string {
	return ResolvePath(e.WorkDir, raw)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
