package orchestrator

import (
	"strings"
)

// Decision is the operator's answer while the plan is paused.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionContinue Decision = "continue"
	DecisionStop     Decision = "stop"
	DecisionNewTask  Decision = "new_task"
)

// IdentityReply answers identity questions without involving the executor.
const IdentityReply = "I am the executor model of the tandem runtime."

const pauseQuestion = " Do you want me to continue the plan, stop it, or start a new task (new task: <goal>)?"

var (
	identityMarkers = []string{
		"who are you",
		"what is your name",
		"what's your name",
		"introduce yourself",
	}
	metaMarkers = []string{
		"what can you do",
		"how do you work",
		"how does this work",
		"how does the runtime work",
		"what are you doing",
	}
	pauseSignals     = map[string]bool{"pause": true, "wait": true, "hold on": true}
	continueSignals  = map[string]bool{"continue": true, "resume": true, "go on": true, "continue plan": true, "resume plan": true}
	stopSignals      = map[string]bool{"stop": true, "stop plan": true, "halt": true, "abort": true}
	newTaskPrefix    = "new task"
	markerNormalizer = strings.NewReplacer("?", " ", "!", " ", ",", " ")
)

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func containsAny(text string, markers []string) bool {
	padded := " " + normalize(markerNormalizer.Replace(text)) + " "
	for _, m := range markers {
		if strings.Contains(padded, " "+m+" ") {
			return true
		}
	}
	return false
}

// IsIdentityQuery reports a question about who the executor is.
func IsIdentityQuery(text string) bool {
	return containsAny(text, identityMarkers)
}

// IsConversationalInterrupt reports a meta-question that pauses the plan
// instead of being executed. Decision words are not interrupts.
func IsConversationalInterrupt(text string) bool {
	if ParseDecision(text) != DecisionNone {
		return false
	}
	return IsIdentityQuery(text) || containsAny(text, metaMarkers)
}

// IsPauseSignal reports an explicit request to pause.
func IsPauseSignal(text string) bool {
	return pauseSignals[normalize(text)]
}

// ParseDecision maps text onto a pause decision.
func ParseDecision(text string) Decision {
	n := normalize(text)
	switch {
	case continueSignals[n]:
		return DecisionContinue
	case stopSignals[n]:
		return DecisionStop
	case isNewTask(n):
		return DecisionNewTask
	}
	return DecisionNone
}

// isNewTask accepts "new task" alone or followed by ":" and a goal.
func isNewTask(n string) bool {
	rest, ok := strings.CutPrefix(n, newTaskPrefix)
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	return rest == "" || strings.HasPrefix(rest, ":")
}

// NewTaskGoal returns the goal after "new task:". ok is false when none
// was given.
func NewTaskGoal(text string) (string, bool) {
	_, after, found := strings.Cut(text, ":")
	goal := strings.TrimSpace(after)
	if !found || goal == "" {
		return "", false
	}
	if runes := []rune(goal); len(runes) > 200 {
		goal = string(runes[:200])
	}
	return goal, true
}

// firstSentence returns the first sentence of text, or its first 220
// characters when it has no sentence end.
func firstSentence(text string) string {
	compact := strings.Join(strings.Fields(text), " ")
	if compact == "" {
		return IdentityReply
	}
	if i := strings.IndexAny(compact, ".!?"); i >= 0 {
		return compact[:i+1]
	}
	if runes := []rune(compact); len(runes) > 220 {
		return string(runes[:220])
	}
	return compact
}
