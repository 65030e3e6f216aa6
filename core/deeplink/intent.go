// Package deeplink turns externally supplied intents, such as a
// notification that pre-selects a farm or focuses a trip, into board
// mutations. Unresolvable intents degrade to no-ops.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Action is what an intent asks the board to do.
type Action string

const (
	ActionNone   Action = ""
	ActionAssign Action = "assign"
	ActionFocus  Action = "focus"
)

// ErrConflictingIntent is returned when both an assign and a focus target
// are present.
var ErrConflictingIntent = errors.New("deeplink: intent sets both an assign and a focus target")

// Intent is a typed deep-link descriptor. At most one target is set.
type Intent struct {
	Action       Action `json:"action"`
	AssignUnitID string `json:"assign_unit_id,omitempty"`
	FocusTripID  string `json:"focus_trip_id,omitempty"`
}

// Assign builds an intent pre-selecting unitID.
func Assign(unitID string) Intent { return Intent{Action: ActionAssign, AssignUnitID: unitID} }

// Focus builds an intent focusing tripID.
func Focus(tripID string) Intent { return Intent{Action: ActionFocus, FocusTripID: tripID} }

// Empty reports whether the intent carries nothing to apply.
func (i Intent) Empty() bool { return i.Action == ActionNone }

// Validate checks that at most one target is set and that it matches the
// action.
func (i Intent) Validate() error {
	if i.AssignUnitID != "" && i.FocusTripID != "" {
		return ErrConflictingIntent
	}
	switch i.Action {
	case ActionNone:
		if i.AssignUnitID != "" || i.FocusTripID != "" {
			return fmt.Errorf("deeplink: target without action")
		}
	case ActionAssign:
		if i.FocusTripID != "" {
			return fmt.Errorf("deeplink: assign intent with focus target")
		}
	case ActionFocus:
		if i.AssignUnitID != "" {
			return fmt.Errorf("deeplink: focus intent with assign target")
		}
	default:
		return fmt.Errorf("deeplink: unknown action %q", i.Action)
	}
	return nil
}

func (i Intent) String() string {
	switch i.Action {
	case ActionAssign:
		return "assign:" + i.AssignUnitID
	case ActionFocus:
		return "focus:" + i.FocusTripID
	default:
		return "none"
	}
}

// The explicit key comes first so it wins over its aliases.
var (
	assignKeys = []string{"assign", "unit", "farm", "lot"}
	focusKeys  = []string{"focus", "trip", "vehicle"}
)

// ParseQuery reads an intent from query parameters. Accepted forms:
//
//	action=assign&unit=<id>   (aliases farm, lot)
//	action=focus&trip=<id>    (alias vehicle)
//	assign=<id>   (or a bare unit, farm, lot)
//	focus=<id>    (or a bare trip, vehicle)
//
// Without an action the target decides it. An unknown action yields an
// empty intent.
func ParseQuery(q url.Values) (Intent, error) {
	assign := first(q, assignKeys)
	focus := first(q, focusKeys)
	action := Action(strings.ToLower(strings.TrimSpace(q.Get("action"))))

	if assign != "" && focus != "" {
		return Intent{}, ErrConflictingIntent
	}
	switch action {
	case ActionAssign:
		if assign == "" {
			return Intent{}, nil
		}
		return Assign(assign), nil
	case ActionFocus:
		if focus == "" {
			return Intent{}, nil
		}
		return Focus(focus), nil
	case ActionNone:
		switch {
		case assign != "":
			return Assign(assign), nil
		case focus != "":
			return Focus(focus), nil
		}
	}
	return Intent{}, nil
}

func first(q url.Values, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
