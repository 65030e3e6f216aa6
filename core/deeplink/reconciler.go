package deeplink

import (
	"github.com/agriexport/dispatchboard/core/logger"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/core/selection"
)

// Outcome reports what Apply did.
type Outcome string

const (
	OutcomeNone            Outcome = "none"
	OutcomeSelected        Outcome = "selected"
	OutcomeAlreadySelected Outcome = "already_selected"
	OutcomeFocused         Outcome = "focused"
	OutcomeIgnored         Outcome = "ignored"
)

// Changed reports whether the selection or focus was mutated.
func (o Outcome) Changed() bool { return o == OutcomeSelected || o == OutcomeFocused }

// Target is the board state an intent is applied to. Implementations are
// called with their own lock held.
type Target interface {
	Unit(id string) (model.DemandUnit, bool)
	Selection() *selection.Selection
	SetFocus(tripID string)
}

// Reconciler applies intents to a Target.
type Reconciler struct {
	log logger.Logger
}

func NewReconciler(log logger.Logger) *Reconciler {
	return &Reconciler{log: logger.OrNop(log)}
}

// Apply mutates t according to in. An assign intent for a known unit
// switches to the unit's mode when needed and selects the unit unless it
// is already selected, so applying it twice keeps it selected. A focus
// intent only sets the focus flag. Unknown units are ignored.
func (r *Reconciler) Apply(t Target, in Intent) Outcome {
	switch in.Action {
	case ActionAssign:
		u, ok := t.Unit(in.AssignUnitID)
		if !ok {
			r.log.Debugf("deep link: unit %q not in catalog", in.AssignUnitID)
			return OutcomeIgnored
		}
		sel := t.Selection()
		if sel.Mode() != u.Kind {
			sel.SetMode(u.Kind)
		}
		if sel.Has(u.ID) {
			return OutcomeAlreadySelected
		}
		sel.ToggleUnit(u)
		return OutcomeSelected
	case ActionFocus:
		if in.FocusTripID == "" {
			return OutcomeIgnored
		}
		t.SetFocus(in.FocusTripID)
		return OutcomeFocused
	default:
		return OutcomeNone
	}
}
