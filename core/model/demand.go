package model

import (
	"fmt"
	"strings"
)

// Mode identifies one of the two disjoint dispatch workflows. A DemandUnit
// carries the Mode of the queue it belongs to.
type Mode int

const (
	ModeFarmPickup Mode = iota
	ModeAirportTransfer
)

// Modes lists every dispatch mode in display order.
var Modes = []Mode{ModeFarmPickup, ModeAirportTransfer}

// String returns the wire form of the mode.
func (m Mode) String() string {
	switch m {
	case ModeFarmPickup:
		return "farm"
	case ModeAirportTransfer:
		return "airport"
	default:
		return "unknown"
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFarmPickup || m == ModeAirportTransfer
}

// ParseMode converts the wire form (or a few common aliases) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "farm", "farm_pickup", "pickup":
		return ModeFarmPickup, nil
	case "airport", "airport_transfer", "transfer":
		return ModeAirportTransfer, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Urgency is advisory. It orders listings but never gates selection.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyHigh
)

func (u Urgency) String() string {
	if u == UrgencyHigh {
		return "high"
	}
	return "low"
}

// ParseUrgency accepts "low" and "high". An empty string means low.
func ParseUrgency(s string) (Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return UrgencyLow, nil
	case "high":
		return UrgencyHigh, nil
	default:
		return 0, fmt.Errorf("unknown urgency %q", s)
	}
}

func (u Urgency) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *Urgency) UnmarshalText(b []byte) error {
	v, err := ParseUrgency(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Location is only consumed by the map renderer.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DemandUnit is a harvest-ready farm lot or an airport transfer lot waiting
// for a vehicle.
type DemandUnit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Kind     Mode     `json:"kind"`
	WeightKg float64  `json:"weight_kg"`
	Urgency  Urgency  `json:"urgency"`
	Location Location `json:"location"`
}

// Validate checks the record invariants enforced when loading catalog data.
func (u DemandUnit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("demand unit: id is required")
	}
	if !u.Kind.Valid() {
		return fmt.Errorf("demand unit %s: invalid kind", u.ID)
	}
	if u.WeightKg <= 0 {
		return fmt.Errorf("demand unit %s: weight must be positive", u.ID)
	}
	return nil
}
