package orchestrator

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/tools"
)

const directiveMaxChars = 12000

var (
	readFileDirectiveRe = regexp.MustCompile(`(?i)^(?:please\s+)?(?:read|show|display|print|open)\s+(?:me\s+)?(?:the\s+)?(?:contents?\s+of\s+)?(?:the\s+)?file\s+("[^"]+"|'[^']+'|` + "`[^`]+`" + `|\S+)\s*[.!?]*$`)
	readThisFileRe      = regexp.MustCompile(`(?i)^(?:please\s+)?(?:read|show|display|print|open)\s+(?:me\s+)?(?:the\s+contents?\s+of\s+)?(?:this|that|the\s+same)\s+file\s*[.!?]*$`)
	fileRefRe           = regexp.MustCompile(`[\w./-]+\.[A-Za-z0-9]+`)
)

// ParseReadDirective recognizes a message that only asks to see a file,
// e.g. `read file notes/todo.md` or `show the contents of file "a b.txt"`.
// this is true for "read this file", which refers to the last file the
// user mentioned.
func ParseReadDirective(text string) (path string, this bool, ok bool) {
	text = strings.TrimSpace(text)
	if readThisFileRe.MatchString(text) {
		return "", true, true
	}
	m := readFileDirectiveRe.FindStringSubmatch(text)
	if m == nil {
		return "", false, false
	}
	path = strings.Trim(m[1], "\"'`")
	path = strings.TrimRight(path, ",.;")
	if path == "" {
		return "", false, false
	}
	return path, false, true
}

// noteFileRefs remembers the last existing regular file named in text.
func (o *Orchestrator) noteFileRefs(text string) {
	for _, token := range fileRefRe.FindAllString(text, -1) {
		path := tools.ResolvePath(o.WorkDir, token)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			o.lastFileRef = path
		}
	}
}

// readDirective shows a file to the user without a model round trip. It
// reports whether text was a read directive.
func (o *Orchestrator) readDirective(ctx context.Context, text string) bool {
	o.noteFileRefs(text)
	path, this, ok := ParseReadDirective(text)
	if !ok {
		return false
	}
	if this {
		if o.lastFileRef == "" {
			return false
		}
		path = o.lastFileRef
	}

	o.Activity.Log("framework.read_file.request", "show a file the user asked for", map[string]any{"path": path})
	call, _ := parser.NewToolCall("read_file", map[string]any{
		"path":      path,
		"max_chars": directiveMaxChars,
	}, "user_directive")
	res := o.Tools.Execute(ctx, call)

	switch {
	case res.OK:
		content, _ := res.Fields["content"].(string)
		truncated, _ := res.Fields["truncated"].(bool)
		shown, _ := res.Fields["path"].(string)
		if truncated {
			content += "\n\n[TRUNCATED]"
		}
		o.Activity.Log("framework.read_file.done", "returned the file content to the user", map[string]any{
			"path":        shown,
			"total_chars": res.Fields["total_chars"],
			"truncated":   truncated,
		})
		o.emit(Event{Kind: EventAnswer, Text: fmt.Sprintf("--- %s ---\n%s", shown, content)})
	case strings.HasPrefix(res.Error, "permission_denied"):
		o.Activity.Log("framework.read_file.denied", "user denied reading the file", map[string]any{"path": path})
		o.emit(Event{Kind: EventError, Text: "Reading " + path + " was not allowed."})
	case res.Error == "file_not_found":
		o.Activity.Log("framework.read_file.missing", "the file does not exist or is not a regular file", map[string]any{"path": path})
		o.emit(Event{Kind: EventError, Text: "File not found: " + path})
	default:
		o.Activity.Log("framework.read_file.error", "reading the file failed", map[string]any{"path": path, "error": res.Error})
		o.emit(Event{Kind: EventError, Text: fmt.Sprintf("Could not read %s: %s", path, res.Error)})
	}
	st := o.Status()
	o.emit(Event{Kind: EventStatus, Status: &st})
	return true
}
