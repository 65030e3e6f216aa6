package model

import (
	"fmt"
	"strings"
)

// VehicleStatus is the operational state reported by the fleet data source.
type VehicleStatus int

const (
	StatusAvailable VehicleStatus = iota
	StatusOnTrip
	StatusMaintenance
)

func (s VehicleStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusOnTrip:
		return "on_trip"
	case StatusMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// ParseVehicleStatus converts the wire form into a VehicleStatus.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "":
		return StatusAvailable, nil
	case "on_trip", "on-trip", "ontrip":
		return StatusOnTrip, nil
	case "maintenance":
		return StatusMaintenance, nil
	default:
		return 0, fmt.Errorf("unknown vehicle status %q", s)
	}
}

func (s VehicleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *VehicleStatus) UnmarshalText(b []byte) error {
	v, err := ParseVehicleStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Vehicle is a truck that can be assigned to collect demand units.
type Vehicle struct {
	ID         string        `json:"id"`
	Plate      string        `json:"plate,omitempty"`
	Driver     string        `json:"driver,omitempty"`
	CapacityKg float64       `json:"capacity_kg"`
	Status     VehicleStatus `json:"status"`
	Location   Location      `json:"location"`
}

// Validate checks that the vehicle record is usable.
// In particular CapacityKg must be positive.
func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("vehicle: id is required")
	}
	if v.CapacityKg <= 0 {
		return fmt.Errorf("vehicle %s: capacity must be positive", v.ID)
	}
	return nil
}

// Selectable returns true if the vehicle may be attached to a selection.
func (v Vehicle) Selectable() bool {
	return v.Status == StatusAvailable
}

// CanCarry returns true if the vehicle is available and its capacity covers
// the given load in kg.
func (v Vehicle) CanCarry(weightKg float64) bool {
	return v.Selectable() && weightKg <= v.CapacityKg
}
