package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   Defect
	}{
		{name: "yaml-ish tool call", answer: "tool_call:\n  name: read_file\n  args: path", want: DefectUnparsedCall},
		{name: "fenced yaml mention", answer: "```yaml\ntool_call = maybe\n```", want: DefectUnparsedCall},
		{name: "none placeholder", answer: "`None`", want: DefectPlaceholder},
		{name: "empty", answer: "   ", want: DefectPlaceholder},
		{name: "python code", answer: "```python\nimport os\nprint(os.listdir())\n```", want: DefectCodeBlock},
		{name: "pseudo call", answer: "I will now call read_file (with the path) to see.", want: DefectPseudoToolUsage},
		{name: "plain prose", answer: "The directory contains three files.", want: DefectNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.answer))
		})
	}
}

func TestAwaitsUser(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "trailing question", answer: "I found two options.\nWhich one should I pick?", want: true},
		{name: "question marker", answer: "Both work. Please decide which approach you prefer.", want: true},
		{name: "statement", answer: "Done. The file was written.", want: false},
		{name: "question with tool call", answer: "list_dir(\".\")\nAnything else?", want: false},
		{name: "empty", answer: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AwaitsUser(tt.answer))
		})
	}
}
