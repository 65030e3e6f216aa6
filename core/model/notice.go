package model

import "time"

// DispatchNotice is the payload handed to the notification layer when a
// dispatch attempt is sent to the assigned vehicle's operator.
type DispatchNotice struct {
	AttemptID     string    `json:"attempt_id"`
	VehicleID     string    `json:"vehicle_id"`
	Driver        string    `json:"driver,omitempty"`
	Mode          Mode      `json:"mode"`
	UnitIDs       []string  `json:"unit_ids"`
	TotalWeightKg float64   `json:"total_weight_kg"`
	CapacityKg    float64   `json:"capacity_kg"`
	SentAt        time.Time `json:"sent_at"`
}

// Highlight is the read-only view consumed by the map renderer.
type Highlight struct {
	Mode      Mode     `json:"mode"`
	UnitIDs   []string `json:"unit_ids"`
	VehicleID string   `json:"vehicle_id,omitempty"`
}
