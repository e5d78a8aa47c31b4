// Package admission serializes access to the shared model endpoint.
//
// Executor and supervisor requests take FIFO tickets from a Queue; a
// request proceeds only while its ticket is at the head. Supervisor calls
// are additionally gated on free GPU memory.
package admission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CodexForgeBR/tandem/internal/model"
)

const (
	// DefaultMaxWait is how long Acquire waits for the head of the queue.
	DefaultMaxWait = time.Second

	// MinMaxWait is the floor applied to configured wait times.
	MinMaxWait = 50 * time.Millisecond

	// DefaultSupervisorMinFreeVRAMMB is the free memory a supervisor call needs.
	DefaultSupervisorMinFreeVRAMMB = 3000

	recentDecisionLimit = 30
	pollInterval        = 10 * time.Millisecond
)

// ErrQueueTimeout is returned when a ticket does not reach the head in time.
var ErrQueueTimeout = errors.New("model queue timeout")

// Decision records one admission outcome.
type Decision struct {
	Timestamp  time.Time  `json:"timestamp"`
	Decision   string     `json:"decision"`
	Role       model.Role `json:"role"`
	QueueLen   int        `json:"queue_len"`
	FreeMB     int        `json:"free_mb,omitempty"`
	RequiredMB int        `json:"required_mb,omitempty"`
}

// Ticket is a place in the queue. It is released exactly once.
type Ticket struct {
	id         uint64
	Role       model.Role
	EnqueuedAt time.Time
}

// Snapshot is a point-in-time copy of the queue for status displays.
type Snapshot struct {
	MaxWait                 time.Duration `json:"max_wait"`
	SupervisorMinFreeVRAMMB int           `json:"supervisor_min_free_vram_mb"`
	QueueLength             int           `json:"queue_length"`
	Queue                   []model.Role  `json:"queue"`
	RecentDecisions         []Decision    `json:"recent_decisions"`
}

// Queue is a mutex-guarded FIFO of model tickets.
type Queue struct {
	mu        sync.Mutex
	maxWait   time.Duration
	minFreeMB int
	nextID    uint64
	tickets   []*Ticket
	recent    []Decision
	now       func() time.Time
}

// NewQueue creates a queue. maxWait is raised to MinMaxWait when smaller;
// a negative supervisorMinFreeMB is treated as zero.
func NewQueue(maxWait time.Duration, supervisorMinFreeMB int) *Queue {
	if maxWait < MinMaxWait {
		maxWait = MinMaxWait
	}
	if supervisorMinFreeMB < 0 {
		supervisorMinFreeMB = 0
	}
	return &Queue{
		maxWait:   maxWait,
		minFreeMB: supervisorMinFreeMB,
		now:       time.Now,
	}
}

// Acquire enqueues a ticket for role and waits until it reaches the head.
// On timeout or cancellation the ticket removes itself and an error is
// returned; the caller must not Release it.
func (q *Queue) Acquire(ctx context.Context, role model.Role) (*Ticket, error) {
	q.mu.Lock()
	q.nextID++
	ticket := &Ticket{id: q.nextID, Role: role, EnqueuedAt: q.now()}
	q.tickets = append(q.tickets, ticket)
	q.mu.Unlock()

	deadline := time.NewTimer(q.maxWait)
	defer deadline.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		q.mu.Lock()
		if q.tickets[0] == ticket {
			q.recordLocked(Decision{Decision: "acquire_ok", Role: role})
			q.mu.Unlock()
			return ticket, nil
		}
		q.mu.Unlock()

		select {
		case <-poll.C:
		case <-deadline.C:
			q.abandon(ticket, "acquire_timeout")
			return nil, ErrQueueTimeout
		case <-ctx.Done():
			q.abandon(ticket, "acquire_cancelled")
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) abandon(ticket *Ticket, decision string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(ticket)
	q.recordLocked(Decision{Decision: decision, Role: ticket.Role})
}

// Release removes ticket from the queue, letting the next ticket proceed.
func (q *Queue) Release(ticket *Ticket) {
	if ticket == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case len(q.tickets) > 0 && q.tickets[0] == ticket:
		q.tickets = q.tickets[1:]
		q.recordLocked(Decision{Decision: "release_head", Role: ticket.Role})
	case q.removeLocked(ticket):
		q.recordLocked(Decision{Decision: "release_removed", Role: ticket.Role})
	default:
		q.recordLocked(Decision{Decision: "release_not_found", Role: ticket.Role})
	}
}

func (q *Queue) removeLocked(ticket *Ticket) bool {
	for i, t := range q.tickets {
		if t == ticket {
			q.tickets = append(q.tickets[:i], q.tickets[i+1:]...)
			return true
		}
	}
	return false
}

// recordLocked appends to the bounded decision ring. Caller holds q.mu.
func (q *Queue) recordLocked(d Decision) {
	d.Timestamp = q.now().UTC()
	d.QueueLen = len(q.tickets)
	q.recent = append(q.recent, d)
	if len(q.recent) > recentDecisionLimit {
		q.recent = q.recent[len(q.recent)-recentDecisionLimit:]
	}
}

// Snapshot returns a copy of the queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	roles := make([]model.Role, len(q.tickets))
	for i, t := range q.tickets {
		roles[i] = t.Role
	}
	return Snapshot{
		MaxWait:                 q.maxWait,
		SupervisorMinFreeVRAMMB: q.minFreeMB,
		QueueLength:             len(q.tickets),
		Queue:                   roles,
		RecentDecisions:         append([]Decision(nil), q.recent...),
	}
}
