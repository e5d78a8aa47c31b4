package parser

import (
	"regexp"
	"strings"
)

// Address targets. Senders use the same names except TargetAll.
const (
	TargetExecutor   = "executor"
	TargetSupervisor = "supervisor"
	TargetRouter     = "router"
	TargetUser       = "user"
	TargetAll        = "all"
)

var (
	addressHeaderRe = regexp.MustCompile(`(?i)\[\s*(executor|supervisor|router|user)\s*->\s*(executor|supervisor|router|user|all)\s*\]`)
	unreadableRe    = regexp.MustCompile("```|\"tool\":|\"args\":|\"tool_call\"|\"status\":\\s*\"ok\"|\"reason_code\"")
)

// AddressedBlock is one "[Sender -> Target]" segment of an answer. Text
// before the first header has an empty Sender and Target.
type AddressedBlock struct {
	Sender  string
	Target  string
	Content string
}

// ForUser reports whether the block is meant for the user.
func (b AddressedBlock) ForUser() bool {
	return b.Target == TargetUser || b.Target == TargetAll
}

// HasAddressHeader reports whether text carries at least one valid header.
func HasAddressHeader(text string) bool {
	return addressHeaderRe.MatchString(text)
}

// ParseAddressedBlocks splits text at its address headers. Names are
// lowercased. Blocks with no content are dropped.
func ParseAddressedBlocks(text string) []AddressedBlock {
	matches := addressHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		if s := strings.TrimSpace(text); s != "" {
			return []AddressedBlock{{Content: s}}
		}
		return nil
	}

	var blocks []AddressedBlock
	if prefix := strings.TrimSpace(text[:matches[0][0]]); prefix != "" {
		blocks = append(blocks, AddressedBlock{Content: prefix})
	}
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[m[1]:end])
		if content == "" {
			continue
		}
		blocks = append(blocks, AddressedBlock{
			Sender:  strings.ToLower(text[m[2]:m[3]]),
			Target:  strings.ToLower(text[m[4]:m[5]]),
			Content: content,
		})
	}
	return blocks
}

// IsUserReadable reports whether content reads as prose rather than raw
// tool JSON or fenced code.
func IsUserReadable(content string) bool {
	if strings.TrimSpace(content) == "" {
		return true
	}
	if strings.Count(content, "{")+strings.Count(content, "}") > 4 {
		return false
	}
	return !unreadableRe.MatchString(content)
}
