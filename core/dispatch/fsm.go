package dispatch

import (
	"context"
	"time"

	"github.com/looplab/fsm"
)

// State is the lifecycle position of one dispatch attempt.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

const (
	EventDispatch = "dispatch"
	EventComplete = "complete"
	EventFail     = "fail"
)

// newMachine builds the attempt lifecycle. Terminal states have no outgoing
// events, so an attempt resolves exactly once.
func newMachine(a *Attempt) *fsm.FSM {
	events := fsm.Events{
		{Name: EventDispatch, Src: []string{string(StateIdle)}, Dst: string(StateSending)},
		{Name: EventComplete, Src: []string{string(StateSending)}, Dst: string(StateCompleted)},
		{Name: EventFail, Src: []string{string(StateSending)}, Dst: string(StateFailed)},
	}
	callbacks := fsm.Callbacks{
		"enter_state":                     wrapEvent(a.onEnterState),
		"enter_" + string(StateSending):   wrapEvent(a.onEnterSending),
		"enter_" + string(StateCompleted): wrapEvent(a.onEnterCompleted),
		"enter_" + string(StateFailed):    wrapEvent(a.onEnterFailed),
	}
	return fsm.NewFSM(string(StateIdle), events, callbacks)
}

func wrapEvent(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

// eventTime returns the time passed as first event argument, or now.
func eventTime(e *fsm.Event) time.Time {
	if len(e.Args) > 0 {
		if t, ok := e.Args[0].(time.Time); ok {
			return t
		}
	}
	return time.Now()
}

// eventText returns the string passed as second event argument.
func eventText(e *fsm.Event) string {
	if len(e.Args) > 1 {
		switch v := e.Args[1].(type) {
		case string:
			return v
		case error:
			if v != nil {
				return v.Error()
			}
		}
	}
	return ""
}
