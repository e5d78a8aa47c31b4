package plan

import (
	"encoding/json"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// planSchema is the expected shape of a plan written by the executor.
const planSchema = `
#Task: {
	id:         string & !=""
	title:      string & !=""
	status:     "started" | "in_progress" | "completed"
	next_step?: string
	...
}

goal:             string & !=""
key_achievement?: string
current_stage:    string & !=""
tasks: [...#Task]
updated_at?:  string
repair_note?: string
...
`

// A cue.Context is not safe for concurrent use.
var (
	schemaMu  sync.Mutex
	schemaCtx *cue.Context
	schemaVal cue.Value
)

// ValidateSchema checks plan JSON against the plan schema and returns one
// message per violation. An empty result means the document conforms.
func ValidateSchema(data []byte) []string {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if schemaCtx == nil {
		schemaCtx = cuecontext.New()
		schemaVal = schemaCtx.CompileString(planSchema, cue.Filename("main_plan.cue"))
	}
	ctx, schema := schemaCtx, schemaVal
	value := ctx.CompileBytes(data, cue.Filename(RelPath))
	if err := value.Err(); err != nil {
		return messages(err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return messages(err)
	}
	return nil
}

// SchemaIssues validates the current plan file. A missing or unreadable
// plan has no issues; Persistence and Repair deal with those.
func (s *Store) SchemaIssues() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var v any
	if json.Unmarshal(data, &v) != nil {
		return nil
	}
	return ValidateSchema(data)
}

func messages(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		out = append(out, e.Error())
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
