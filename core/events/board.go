package events

import "github.com/agriexport/dispatchboard/core/model"

// SelectionChanged is emitted after any mutation of the working selection so
// renderers can refresh highlights. Cause is the operation name.
type SelectionChanged struct {
	Cause     string
	Highlight model.Highlight
}

// FocusChanged is emitted when the informational trip focus is set or
// cleared. TripID is empty when cleared.
type FocusChanged struct {
	TripID string
}

func (SelectionChanged) EventName() string { return "selection_changed" }
func (FocusChanged) EventName() string     { return "focus_changed" }

// DispatchRejected is emitted when a dispatch request is refused before an
// attempt starts. Reason is a capacity blocker or "in_flight".
type DispatchRejected struct {
	Mode   model.Mode
	Reason string
}

// IntentResolved is emitted after a deep-link intent was reconciled.
type IntentResolved struct {
	Action  string
	Outcome string
}

func (DispatchRejected) EventName() string { return "dispatch_rejected" }
func (IntentResolved) EventName() string   { return "intent_resolved" }
