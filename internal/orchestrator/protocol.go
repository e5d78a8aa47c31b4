package orchestrator

import (
	"fmt"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/prompt"
)

const (
	addressingReminderThreshold = 2
	maxAddressingReminders      = 5
)

// routeAnswer returns the part of answer the user should see. Addressed
// blocks for other actors are shown as notices. An answer with no block
// for the user is shown whole.
func (o *Orchestrator) routeAnswer(answer string) string {
	if !parser.HasAddressHeader(answer) {
		if len(parser.Parse(answer)) == 0 {
			o.noteUnaddressed()
		}
		return answer
	}
	o.unaddressedTurns = 0

	blocks := parser.ParseAddressedBlocks(answer)
	var user, others []parser.AddressedBlock
	for _, b := range blocks {
		switch {
		case b.ForUser():
			user = append(user, b)
		case b.Target != "":
			others = append(others, b)
		}
	}
	if len(user) == 0 {
		return answer
	}

	parts := make([]string, 0, len(user))
	for _, b := range user {
		if !parser.IsUserReadable(b.Content) {
			o.Activity.Log("protocol.unreadable", "user-facing block contains raw JSON or code", map[string]any{
				"sender": b.Sender,
				"target": b.Target,
			})
		}
		parts = append(parts, b.Content)
	}
	for _, b := range others {
		o.Activity.Log("protocol.block", "route an addressed block", map[string]any{
			"sender": b.Sender,
			"target": b.Target,
		})
		o.notice(fmt.Sprintf("[%s -> %s] %s", b.Sender, b.Target, b.Content))
	}
	return strings.Join(parts, "\n\n")
}

// noteUnaddressed counts an answer without a header and queues a reminder
// for the next executor prompt once the threshold is reached.
func (o *Orchestrator) noteUnaddressed() {
	o.unaddressedTurns++
	if o.unaddressedTurns < addressingReminderThreshold || o.remindersSent >= maxAddressingReminders {
		return
	}
	o.unaddressedTurns = 0
	o.remindersSent++
	o.pendingReminder = strings.TrimSpace(prompt.AddressingReminder)
	o.Activity.Log("protocol.reminder", "remind the executor to address its messages", map[string]any{
		"reminder": o.remindersSent,
	})
	o.setActor(ActorRouter, "REMINDING", "addressing reminder queued")
}

// withReminder prepends a queued addressing reminder to message.
func (o *Orchestrator) withReminder(message string) string {
	if o.pendingReminder == "" {
		return message
	}
	message = o.pendingReminder + "\n\n" + message
	o.pendingReminder = ""
	return message
}
