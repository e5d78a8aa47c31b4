package orchestrator

import (
	"time"

	"github.com/CodexForgeBR/tandem/internal/plan"
	"github.com/CodexForgeBR/tandem/internal/supervisor"
)

// Actor names one lane of the status board.
type Actor string

const (
	ActorRouter     Actor = "router"
	ActorExecutor   Actor = "executor"
	ActorSupervisor Actor = "supervisor"
	ActorTerminal   Actor = "terminal"
)

// Actors lists the board lanes in display order.
var Actors = []Actor{ActorRouter, ActorExecutor, ActorSupervisor, ActorTerminal}

// ActorState is the observable state of one actor. It is only changed by
// the orchestrator goroutine and handed to observers by value.
type ActorState struct {
	Actor          Actor     `json:"actor"`
	Label          string    `json:"label"`
	LastEvent      string    `json:"last_event"`
	LastTransition time.Time `json:"last_transition"`
}

// EventKind classifies observer events.
type EventKind string

const (
	// EventActor carries an actor state change.
	EventActor EventKind = "actor"
	// EventAnswer carries the answer shown to the user at the end of a turn.
	EventAnswer EventKind = "answer"
	// EventNotice carries a runtime message such as a goal confirmation request.
	EventNotice EventKind = "notice"
	// EventError carries a turn-level failure.
	EventError EventKind = "error"
	// EventStatus carries a full Status snapshot.
	EventStatus EventKind = "status"
)

// Event is one immutable observer notification.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Actor  ActorState
	Text   string
	Status *Status
}

// Observer receives events on the orchestrator goroutine and must not block.
type Observer func(Event)

// Status is a point-in-time view of the runtime.
type Status struct {
	Actors          []ActorState         `json:"actors"`
	Watchdog        Watchdog             `json:"watchdog"`
	WorkState       supervisor.WorkState `json:"work_state"`
	Paused          bool                 `json:"paused"`
	PausedAt        time.Time            `json:"paused_at,omitzero"`
	PendingGoal     string               `json:"pending_goal,omitempty"`
	Goal            string               `json:"goal,omitempty"`
	LastUserMessage string               `json:"last_user_message,omitempty"`
	UnchangedPlan   int                  `json:"unchanged_plan_turns"`
	PlanFingerprint string               `json:"plan_fingerprint,omitempty"`
	Plan            plan.Snapshot        `json:"plan"`
	Stalled         bool                 `json:"stalled"`
	TransportFailed bool                 `json:"transport_failed"`
}

func (o *Orchestrator) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = o.now()
	}
	for _, obs := range o.observers {
		obs(ev)
	}
}

// setActor records a transition and publishes it.
func (o *Orchestrator) setActor(actor Actor, label, event string) {
	st := ActorState{Actor: actor, Label: label, LastEvent: event, LastTransition: o.now()}
	o.actors[actor] = st
	o.emit(Event{Kind: EventActor, Actor: st})
}

func (o *Orchestrator) notice(text string) {
	o.emit(Event{Kind: EventNotice, Text: text})
}
