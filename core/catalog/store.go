package catalog

import (
	"fmt"
	"sync"

	"github.com/agriexport/dispatchboard/core/model"
)

// MemoryStore keeps both catalogs in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	units    map[string]model.DemandUnit
	vehicles map[string]model.Vehicle
}

// NewMemoryStore returns a store seeded with the provided records.
func NewMemoryStore(units []model.DemandUnit, vehicles []model.Vehicle) *MemoryStore {
	s := &MemoryStore{
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

func (s *MemoryStore) ListDemand(mode model.Mode) []model.DemandUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.DemandUnit, 0, len(s.units))
	for _, u := range s.units {
		if u.Kind == mode {
			res = append(res, u)
		}
	}
	sortDemand(res)
	return res
}

func (s *MemoryStore) ListVehicles() []model.Vehicle {
	return s.Snapshot().Vehicles()
}

func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		units:    make(map[string]model.DemandUnit, len(s.units)),
		vehicles: make(map[string]model.Vehicle, len(s.vehicles)),
	}
	for id, u := range s.units {
		snap.units[id] = u
	}
	for id, v := range s.vehicles {
		snap.vehicles[id] = v
	}
	return snap
}

// ReplaceDemand swaps the full demand catalog.
func (s *MemoryStore) ReplaceDemand(units []model.DemandUnit) {
	m := make(map[string]model.DemandUnit, len(units))
	for _, u := range units {
		m[u.ID] = u
	}
	s.mu.Lock()
	s.units = m
	s.mu.Unlock()
}

// ReplaceVehicles swaps the full fleet catalog.
func (s *MemoryStore) ReplaceVehicles(vehicles []model.Vehicle) {
	m := make(map[string]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		m[v.ID] = v
	}
	s.mu.Lock()
	s.vehicles = m
	s.mu.Unlock()
}

// UpsertDemand adds or replaces a unit after validating it.
func (s *MemoryStore) UpsertDemand(u model.DemandUnit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.units[u.ID] = u
	s.mu.Unlock()
	return nil
}

// UpsertVehicle adds or replaces a vehicle after validating it.
func (s *MemoryStore) UpsertVehicle(v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.vehicles[v.ID] = v
	s.mu.Unlock()
	return nil
}

// RemoveDemand deletes a unit. Removing an unknown id is not an error.
func (s *MemoryStore) RemoveDemand(id string) {
	s.mu.Lock()
	delete(s.units, id)
	s.mu.Unlock()
}

// SetVehicleStatus updates the status of a known vehicle.
func (s *MemoryStore) SetVehicleStatus(id string, status model.VehicleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return fmt.Errorf("catalog: unknown vehicle %s", id)
	}
	v.Status = status
	s.vehicles[id] = v
	return nil
}
