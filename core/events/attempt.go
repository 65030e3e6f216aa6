package events

import (
	"time"

	"github.com/agriexport/dispatchboard/core/model"
)

// Event is implemented by every event published on the board bus.
type Event interface {
	EventName() string
}

// AttemptStarted is published when an attempt enters the sending state.
type AttemptStarted struct {
	AttemptID string
	Notice    model.DispatchNotice
	StartedAt time.Time
}

// AttemptCompleted carries the completion record for the notification layer.
// Note is set when completion was assumed after a timeout.
type AttemptCompleted struct {
	AttemptID   string
	Notice      model.DispatchNotice
	Note        string
	CompletedAt time.Time
	Latency     time.Duration
}

// AttemptFailed reports an undeliverable notice together with its reason.
type AttemptFailed struct {
	AttemptID   string
	Notice      model.DispatchNotice
	Reason      string
	Err         error
	CompletedAt time.Time
	Latency     time.Duration
}

func (AttemptStarted) EventName() string   { return "attempt_started" }
func (AttemptCompleted) EventName() string { return "attempt_completed" }
func (AttemptFailed) EventName() string    { return "attempt_failed" }
