package parser

import (
	"regexp"
	"strings"
)

var (
	pseudoToolUsageRe = regexp.MustCompile(`(?i)\b(read_file|list_dir|run_shell|run_command|run_python|check_python_syntax|fetch_web|search_web|write_file|append_file)\s*\(`)
	codeBlockRe       = regexp.MustCompile("(?is)```(?:python|py)?\\s*.*?(?:def\\s+\\w+\\(|class\\s+\\w+\\(|import\\s+\\w+|from\\s+\\w+\\s+import|print\\()")
)

// Defect names a recognized malformed-answer pattern.
type Defect string

const (
	DefectNone            Defect = ""
	DefectUnparsedCall    Defect = "unparsed_tool_call"
	DefectPlaceholder     Defect = "placeholder"
	DefectCodeBlock       Defect = "python_code_block"
	DefectPseudoToolUsage Defect = "pseudo_tool_usage"
)

// Classify reports which malformed pattern an answer without parseable
// calls matches. Patterns are checked in a fixed order and the first
// match wins.
func Classify(answer string) Defect {
	switch {
	case LooksLikeUnparsedToolCall(answer):
		return DefectUnparsedCall
	case IsPlaceholder(answer):
		return DefectPlaceholder
	case HasCodeBlock(answer):
		return DefectCodeBlock
	case HasPseudoToolUsage(answer):
		return DefectPseudoToolUsage
	}
	return DefectNone
}

// LooksLikeUnparsedToolCall reports text that mentions tool_call in a
// YAML-ish shape the parser could not turn into a call.
func LooksLikeUnparsedToolCall(answer string) bool {
	lower := strings.ToLower(answer)
	if !strings.Contains(lower, "tool_call") {
		return false
	}
	yamlLike := strings.Contains(lower, "tool_call:") && (strings.Contains(lower, "name:") || strings.Contains(lower, "args:"))
	fencedYAML := strings.Contains(lower, "```yaml") || strings.Contains(lower, "```yml")
	return yamlLike || fencedYAML
}

// IsPlaceholder reports an empty or none/null style non-answer.
func IsPlaceholder(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), "`")))
	switch normalized {
	case "", "none", "null", "n/a", "nil":
		return true
	}
	return false
}

// HasCodeBlock reports source code shown to the user instead of a call.
func HasCodeBlock(answer string) bool {
	return codeBlockRe.MatchString(answer)
}

// HasPseudoToolUsage reports text that mimics a tool invocation.
func HasPseudoToolUsage(answer string) bool {
	return pseudoToolUsageRe.MatchString(answer)
}

var questionMarkers = []string{
	"do you want",
	"would you like",
	"should i",
	"shall i",
	"what should i do",
	"what do you expect",
	"please decide",
	"your decision",
	"waiting for your",
	"awaiting your",
	"let me know how",
	"what next",
}

// AwaitsUser reports whether an answer without a call asks the user
// something: its last line ends with a question mark or it contains a
// question directed at the user.
func AwaitsUser(answer string) bool {
	stripped := strings.TrimRight(answer, " \t\r\n")
	if stripped == "" {
		return false
	}
	if len(Parse(stripped)) > 0 {
		return false
	}
	lines := strings.Split(stripped, "\n")
	if strings.HasSuffix(strings.TrimSpace(lines[len(lines)-1]), "?") {
		return true
	}
	normalized := strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
	for _, m := range questionMarkers {
		if strings.Contains(normalized, m) {
			return true
		}
	}
	return false
}
