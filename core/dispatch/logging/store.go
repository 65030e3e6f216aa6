package logging

import (
	"context"
	"sort"
	"time"

	"github.com/agriexport/dispatchboard/core/model"
)

// LogRecord captures one resolved dispatch attempt.
type LogRecord struct {
	Timestamp     time.Time  `json:"timestamp"`
	AttemptID     string     `json:"attempt_id"`
	State         string     `json:"state"`
	Mode          model.Mode `json:"mode"`
	VehicleID     string     `json:"vehicle_id"`
	Driver        string     `json:"driver,omitempty"`
	UnitIDs       []string   `json:"unit_ids"`
	TotalWeightKg float64    `json:"total_weight_kg"`
	CapacityKg    float64    `json:"capacity_kg"`
	StartedAt     time.Time  `json:"started_at"`
	LatencyMS     int64      `json:"latency_ms"`
	Reason        string     `json:"reason,omitempty"`
	Note          string     `json:"note,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero fields match
// everything. Mode uses the text form ("farm", "airport").
type LogQuery struct {
	Start     time.Time
	End       time.Time
	VehicleID string
	State     string
	Mode      string
	// Limit keeps only the most recent records when positive.
	Limit int
}

// Match reports whether r passes every filter of q except Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	if q.State != "" && r.State != q.State {
		return false
	}
	if q.Mode != "" && r.Mode.String() != q.Mode {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// finish orders records by time and applies the query limit.
func finish(res []LogRecord, q LogQuery) []LogRecord {
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res
}
