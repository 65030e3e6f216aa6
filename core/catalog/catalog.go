// Package catalog exposes the read-only demand and fleet collections the
// dispatch board works against.
//
// The board never mutates catalog contents. Refresh methods on MemoryStore
// exist for the external data layer that owns the records.
package catalog

import (
	"sort"

	"github.com/agriexport/dispatchboard/core/model"
)

// Catalog is the read contract consumed by the board.
type Catalog interface {
	// ListDemand returns the units of the given mode, most urgent first.
	ListDemand(mode model.Mode) []model.DemandUnit
	// ListVehicles returns every vehicle regardless of status.
	ListVehicles() []model.Vehicle
	// Snapshot returns an immutable copy used for one validation pass.
	Snapshot() Snapshot
}

// Snapshot is a consistent, immutable view of both catalogs. Validators read
// a single Snapshot so a unit cannot vanish between the weight sum and the
// capacity check.
type Snapshot struct {
	units    map[string]model.DemandUnit
	vehicles map[string]model.Vehicle
}

// NewSnapshot builds a Snapshot from plain slices. Later duplicates win.
func NewSnapshot(units []model.DemandUnit, vehicles []model.Vehicle) Snapshot {
	s := Snapshot{
		units:    make(map[string]model.DemandUnit, len(units)),
		vehicles: make(map[string]model.Vehicle, len(vehicles)),
	}
	for _, u := range units {
		s.units[u.ID] = u
	}
	for _, v := range vehicles {
		s.vehicles[v.ID] = v
	}
	return s
}

// Unit looks up a demand unit by id.
func (s Snapshot) Unit(id string) (model.DemandUnit, bool) {
	u, ok := s.units[id]
	return u, ok
}

// Vehicle looks up a vehicle by id.
func (s Snapshot) Vehicle(id string) (model.Vehicle, bool) {
	v, ok := s.vehicles[id]
	return v, ok
}

// Demand returns the units of mode in listing order.
func (s Snapshot) Demand(mode model.Mode) []model.DemandUnit {
	res := make([]model.DemandUnit, 0, len(s.units))
	for _, u := range s.units {
		if u.Kind == mode {
			res = append(res, u)
		}
	}
	sortDemand(res)
	return res
}

// Vehicles returns all vehicles sorted by id.
func (s Snapshot) Vehicles() []model.Vehicle {
	res := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Available returns the selectable vehicles sorted by id.
func (s Snapshot) Available() []model.Vehicle {
	all := s.Vehicles()
	res := all[:0]
	for _, v := range all {
		if v.Selectable() {
			res = append(res, v)
		}
	}
	return res
}

func sortDemand(units []model.DemandUnit) {
	sort.Slice(units, func(i, j int) bool {
		if units[i].Urgency != units[j].Urgency {
			return units[i].Urgency > units[j].Urgency
		}
		return units[i].ID < units[j].ID
	})
}
