// Package memory keeps durable notes across sessions in a markdown file
// and pulls notes out of model output.
package memory

import (
	"strings"
)

// NoteMarker introduces a note the executor wants remembered.
const NoteMarker = "MEMORY_NOTE:"

// ExtractNote returns the content of a MEMORY_NOTE block in output.
// Content on the marker line is returned as is. Otherwise the following
// lines are collected until a blank line, a code fence or the end of the
// text. Blocks holding only dashes or whitespace yield "".
func ExtractNote(output string) string {
	lines := strings.Split(output, "\n")
	start := -1
	for i, line := range lines {
		idx := strings.Index(line, NoteMarker)
		if idx < 0 {
			continue
		}
		if after := strings.TrimSpace(line[idx+len(NoteMarker):]); after != "" {
			return after
		}
		start = i + 1
		break
	}
	if start == -1 {
		return ""
	}

	var collected []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			break
		}
		collected = append(collected, line)
	}

	for _, line := range collected {
		if t := strings.TrimSpace(line); t != "" && t != "-" {
			return strings.TrimSpace(strings.Join(collected, "\n"))
		}
	}
	return ""
}
