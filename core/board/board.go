// Package board is the dispatcher's session: the working selection, the
// focus flag and the current dispatch attempt, kept consistent with the
// catalogs behind one mutex.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agriexport/dispatchboard/core/capacity"
	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/deeplink"
	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/events"
	"github.com/agriexport/dispatchboard/core/logger"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/core/selection"
	"github.com/agriexport/dispatchboard/internal/eventbus"
)

// Dispatcher starts dispatch attempts. *dispatch.Controller implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sel *selection.Selection, snap catalog.Snapshot) (*dispatch.Attempt, error)
	Current() *dispatch.Attempt
	OnResolved(fn func(dispatch.AttemptRecord))
}

// Focus is the informational trip banner.
type Focus struct {
	TripID  string         `json:"trip_id"`
	Vehicle *model.Vehicle `json:"vehicle,omitempty"`
}

// View is the complete read model of the board.
type View struct {
	Mode       model.Mode              `json:"mode"`
	Demand     []model.DemandUnit      `json:"demand"`
	Vehicles   []model.Vehicle         `json:"vehicles"`
	Selection  model.Highlight         `json:"selection"`
	Assessment capacity.Assessment     `json:"assessment"`
	Suggested  *model.Vehicle          `json:"suggested_vehicle,omitempty"`
	Focus      *Focus                  `json:"focus,omitempty"`
	Attempt    *dispatch.AttemptRecord `json:"attempt,omitempty"`
}

// Board serialises every mutation of the session state.
type Board struct {
	mu         sync.Mutex
	catalog    catalog.Catalog
	sel        selection.Selection
	focus      string
	dispatcher Dispatcher
	reconciler *deeplink.Reconciler
	bus        *eventbus.Bus[events.Event]
	log        logger.Logger
}

// New creates a board in the given mode. The bus may be nil. A resolved
// attempt clears the selection.
func New(cat catalog.Catalog, d Dispatcher, mode model.Mode, log logger.Logger, bus *eventbus.Bus[events.Event]) (*Board, error) {
	if cat == nil {
		return nil, fmt.Errorf("board: nil catalog provided to New")
	}
	if d == nil {
		return nil, fmt.Errorf("board: nil dispatcher provided to New")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("board: invalid mode %q", mode)
	}
	log = logger.OrNop(log)
	b := &Board{
		catalog:    cat,
		sel:        selection.New(mode),
		dispatcher: d,
		reconciler: deeplink.NewReconciler(log),
		bus:        bus,
		log:        log,
	}
	d.OnResolved(b.onResolved)
	return b, nil
}

// Mode returns the current workflow.
func (b *Board) Mode() model.Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel.Mode()
}

// SetMode switches the workflow and clears the selection.
func (b *Board) SetMode(mode model.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("board: invalid mode %q", mode)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.SetMode(mode)
	b.selectionChanged("set_mode")
	return nil
}

// ToggleUnit flips membership of id. Unknown ids, and units whose kind no
// longer matches the mode, are ignored unless they are selected, in which
// case they are removed.
func (b *Board) ToggleUnit(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var changed bool
	if u, ok := b.catalog.Snapshot().Unit(id); ok && u.Kind == b.sel.Mode() {
		changed = b.sel.ToggleUnit(u)
	} else {
		changed = b.sel.RemoveUnit(id)
	}
	if changed {
		b.selectionChanged("toggle_unit")
	}
	return changed
}

// SelectVehicle selects an available vehicle by id.
func (b *Board) SelectVehicle(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.catalog.Snapshot().Vehicle(id)
	if !ok || !b.sel.SelectVehicle(v) {
		return false
	}
	b.selectionChanged("select_vehicle")
	return true
}

// ClearVehicle detaches the vehicle and keeps the units.
func (b *Board) ClearVehicle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sel.VehicleID() == "" {
		return
	}
	b.sel.ClearVehicle()
	b.selectionChanged("clear_vehicle")
}

// Discard clears units and vehicle.
func (b *Board) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.Discard()
	b.selectionChanged("discard")
}

// Assessment validates the selection against a fresh snapshot.
func (b *Board) Assessment() capacity.Assessment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return capacity.Assess(&b.sel, b.catalog.Snapshot())
}

// Dispatch commits the selection. It returns dispatch.ErrNotDispatchable or
// dispatch.ErrInFlight without side effects on the selection.
func (b *Board) Dispatch(ctx context.Context) (*dispatch.Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.catalog.Snapshot()
	a, err := b.dispatcher.Dispatch(ctx, &b.sel, snap)
	switch {
	case errors.Is(err, dispatch.ErrNotDispatchable):
		reason := string(capacity.Assess(&b.sel, snap).Blocker)
		b.publish(events.DispatchRejected{Mode: b.sel.Mode(), Reason: reason})
		b.log.Debugf("dispatch rejected: %s", reason)
	case errors.Is(err, dispatch.ErrInFlight):
		b.publish(events.DispatchRejected{Mode: b.sel.Mode(), Reason: "in_flight"})
	}
	return a, err
}

// SetFocus sets the trip banner. It never touches the selection.
func (b *Board) SetFocus(tripID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setFocus(tripID)
}

// ClearFocus removes the trip banner.
func (b *Board) ClearFocus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setFocus("")
}

// Focus returns the banner or nil. The vehicle is resolved when the trip id
// names a known vehicle.
func (b *Board) Focus() *Focus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focusView(b.catalog.Snapshot())
}

// Highlights returns what the map renderer draws.
func (b *Board) Highlights() model.Highlight {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel.Highlight()
}

// View assembles the read model from one snapshot.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.catalog.Snapshot()
	v := View{
		Mode:       b.sel.Mode(),
		Demand:     snap.Demand(b.sel.Mode()),
		Vehicles:   snap.Vehicles(),
		Selection:  b.sel.Highlight(),
		Assessment: capacity.Assess(&b.sel, snap),
		Focus:      b.focusView(snap),
	}
	if v.Selection.VehicleID == "" && v.Assessment.TotalWeightKg > 0 {
		if s, ok := capacity.SuggestVehicle(v.Assessment.TotalWeightKg, snap.Available()); ok {
			v.Suggested = &s
		}
	}
	if a := b.dispatcher.Current(); a != nil {
		rec := a.Snapshot()
		v.Attempt = &rec
	}
	return v
}

// ApplyIntent reconciles a deep-link intent with the board.
func (b *Board) ApplyIntent(in deeplink.Intent) (deeplink.Outcome, error) {
	if err := in.Validate(); err != nil {
		return deeplink.OutcomeNone, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.reconciler.Apply(target{b: b, snap: b.catalog.Snapshot()}, in)
	if out == deeplink.OutcomeSelected {
		b.selectionChanged("deeplink")
	}
	b.publish(events.IntentResolved{Action: string(in.Action), Outcome: string(out)})
	b.log.Debugf("deep link %s: %s", in, out)
	return out, nil
}

func (b *Board) onResolved(rec dispatch.AttemptRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.Discard()
	b.selectionChanged("attempt_" + string(rec.State))
}

func (b *Board) setFocus(tripID string) {
	if b.focus == tripID {
		return
	}
	b.focus = tripID
	b.publish(events.FocusChanged{TripID: tripID})
}

func (b *Board) focusView(snap catalog.Snapshot) *Focus {
	if b.focus == "" {
		return nil
	}
	f := &Focus{TripID: b.focus}
	if v, ok := snap.Vehicle(b.focus); ok {
		f.Vehicle = &v
	}
	return f
}

func (b *Board) selectionChanged(cause string) {
	b.publish(events.SelectionChanged{Cause: cause, Highlight: b.sel.Highlight()})
}

func (b *Board) publish(ev events.Event) {
	if b.bus != nil {
		b.bus.Publish(ev)
	}
}

// target adapts a locked board to deeplink.Target.
type target struct {
	b    *Board
	snap catalog.Snapshot
}

func (t target) Unit(id string) (model.DemandUnit, bool) { return t.snap.Unit(id) }
func (t target) Selection() *selection.Selection         { return &t.b.sel }
func (t target) SetFocus(tripID string)                  { t.b.setFocus(tripID) }
