// Package selection holds the working set a dispatcher builds before
// committing a dispatch: demand unit ids of one mode plus at most one vehicle.
package selection

import (
	"sort"

	"github.com/agriexport/dispatchboard/core/model"
)

// Selection is a session-scoped value. The zero value is an empty farm
// pickup selection. Derived quantities such as the total weight are not
// stored; see package capacity.
type Selection struct {
	mode      model.Mode
	units     map[string]struct{}
	vehicleID string
}

// New returns an empty selection in the given mode.
func New(mode model.Mode) Selection {
	return Selection{mode: mode}
}

// Mode returns the workflow the selection addresses.
func (s *Selection) Mode() model.Mode { return s.mode }

// SetMode switches the workflow. It always clears units and vehicle, even
// when the mode does not change.
func (s *Selection) SetMode(mode model.Mode) {
	s.mode = mode
	s.Discard()
}

// ToggleUnit adds the unit if absent and removes it if present. Units of
// another mode are ignored. It reports whether membership changed.
func (s *Selection) ToggleUnit(u model.DemandUnit) bool {
	if u.Kind != s.mode {
		return false
	}
	if s.Has(u.ID) {
		delete(s.units, u.ID)
		return true
	}
	if s.units == nil {
		s.units = make(map[string]struct{})
	}
	s.units[u.ID] = struct{}{}
	return true
}

// RemoveUnit drops id regardless of whether it still exists in the catalog.
func (s *Selection) RemoveUnit(id string) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.units, id)
	return true
}

// SelectVehicle replaces the current vehicle. Vehicles that are not
// available are ignored.
func (s *Selection) SelectVehicle(v model.Vehicle) bool {
	if !v.Selectable() {
		return false
	}
	s.vehicleID = v.ID
	return true
}

// ClearVehicle detaches the vehicle, keeping units.
func (s *Selection) ClearVehicle() { s.vehicleID = "" }

// Discard clears units and vehicle. The mode is kept.
func (s *Selection) Discard() {
	s.units = nil
	s.vehicleID = ""
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.units[id]
	return ok
}

// Len returns the number of selected units.
func (s *Selection) Len() int { return len(s.units) }

// Empty is true when neither units nor a vehicle are selected.
func (s *Selection) Empty() bool { return len(s.units) == 0 && s.vehicleID == "" }

// VehicleID returns the selected vehicle id, or "" when none is selected.
func (s *Selection) VehicleID() string { return s.vehicleID }

// UnitIDs returns the selected ids in sorted order.
func (s *Selection) UnitIDs() []string {
	ids := make([]string, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy that shares no state with s.
func (s *Selection) Clone() Selection {
	c := Selection{mode: s.mode, vehicleID: s.vehicleID}
	if len(s.units) > 0 {
		c.units = make(map[string]struct{}, len(s.units))
		for id := range s.units {
			c.units[id] = struct{}{}
		}
	}
	return c
}

// Highlight returns the view handed to the map renderer.
func (s *Selection) Highlight() model.Highlight {
	return model.Highlight{Mode: s.mode, UnitIDs: s.UnitIDs(), VehicleID: s.vehicleID}
}
