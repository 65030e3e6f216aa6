package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/agriexport/dispatchboard/core/capacity"
	"github.com/agriexport/dispatchboard/core/model"
)

// AttemptRecord is an immutable copy of an attempt.
type AttemptRecord struct {
	ID         string               `json:"id"`
	State      State                `json:"state"`
	Notice     model.DispatchNotice `json:"notice"`
	Assessment capacity.Assessment  `json:"assessment"`
	StartedAt  time.Time            `json:"started_at"`
	ResolvedAt time.Time            `json:"resolved_at"`
	// Reason explains a failed attempt.
	Reason string `json:"reason,omitempty"`
	// Note is set when completion was assumed, e.g. "ack timeout".
	Note string `json:"note,omitempty"`
}

// Latency is the time between send and resolution, zero while sending.
func (r AttemptRecord) Latency() time.Duration {
	if r.ResolvedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.ResolvedAt.Sub(r.StartedAt)
}

// Attempt is one commit of a selection to a vehicle. Its selection snapshot
// is fixed at creation; later edits of the board do not affect it.
type Attempt struct {
	mu      sync.RWMutex
	rec     AttemptRecord
	machine *fsm.FSM
	done    chan struct{}
}

func newAttempt(id string, notice model.DispatchNotice, assess capacity.Assessment) *Attempt {
	a := &Attempt{
		rec:  AttemptRecord{ID: id, State: StateIdle, Notice: notice, Assessment: assess},
		done: make(chan struct{}),
	}
	a.machine = newMachine(a)
	return a
}

// ID returns the attempt id.
func (a *Attempt) ID() string { return a.rec.ID }

// State returns the current lifecycle state.
func (a *Attempt) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rec.State
}

// Done is closed once the attempt is resolved and every resolution hook
// has run.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Wait blocks until the attempt resolves or ctx ends.
func (a *Attempt) Wait(ctx context.Context) (AttemptRecord, error) {
	select {
	case <-a.done:
		return a.Snapshot(), nil
	case <-ctx.Done():
		return a.Snapshot(), ctx.Err()
	}
}

// Snapshot returns a deep copy of the attempt record.
func (a *Attempt) Snapshot() AttemptRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r := a.rec
	r.Notice.UnitIDs = append([]string(nil), a.rec.Notice.UnitIDs...)
	if a.rec.Assessment.StaleUnitIDs != nil {
		r.Assessment.StaleUnitIDs = append([]string(nil), a.rec.Assessment.StaleUnitIDs...)
	}
	return r
}

func (a *Attempt) resolved() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// fire runs one lifecycle event. Args are the event time and an optional
// reason or note.
func (a *Attempt) fire(event string, at time.Time, text string) error {
	return a.machine.Event(context.Background(), event, at, text)
}

func (a *Attempt) onEnterState(_ context.Context, e *fsm.Event) error {
	a.mu.Lock()
	a.rec.State = State(e.Dst)
	a.mu.Unlock()
	return nil
}

func (a *Attempt) onEnterSending(_ context.Context, e *fsm.Event) error {
	at := eventTime(e)
	a.mu.Lock()
	a.rec.StartedAt = at
	a.rec.Notice.SentAt = at
	a.mu.Unlock()
	return nil
}

func (a *Attempt) onEnterCompleted(_ context.Context, e *fsm.Event) error {
	a.mu.Lock()
	a.rec.ResolvedAt = eventTime(e)
	a.rec.Note = eventText(e)
	a.mu.Unlock()
	return nil
}

func (a *Attempt) onEnterFailed(_ context.Context, e *fsm.Event) error {
	a.mu.Lock()
	a.rec.ResolvedAt = eventTime(e)
	a.rec.Reason = eventText(e)
	if a.rec.Reason == "" {
		a.rec.Reason = "unknown error"
	}
	a.mu.Unlock()
	return nil
}
