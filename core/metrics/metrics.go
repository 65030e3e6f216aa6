package metrics

import (
	"time"

	"github.com/agriexport/dispatchboard/core/model"
)

// AttemptResult is the terminal record of one dispatch attempt.
type AttemptResult struct {
	AttemptID     string
	VehicleID     string
	Mode          model.Mode
	State         string
	UnitCount     int
	TotalWeightKg float64
	CapacityKg    float64
	Latency       time.Duration
	Reason        string
	Time          time.Time
}

// Utilization returns the loaded share of the vehicle capacity.
func (r AttemptResult) Utilization() float64 {
	if r.CapacityKg <= 0 {
		return 0
	}
	return r.TotalWeightKg / r.CapacityKg
}

// MetricsSink records dispatch attempts for observability purposes.
type MetricsSink interface {
	RecordAttempt(res AttemptResult) error
}

// RejectionEvent captures a dispatch request that did not pass validation or
// hit the in-flight guard.
type RejectionEvent struct {
	Mode   model.Mode
	Reason string
	Time   time.Time
}

// RejectionRecorder records rejected dispatch requests.
type RejectionRecorder interface {
	RecordRejection(ev RejectionEvent) error
}

// DeepLinkEvent captures how an inbound intent was resolved.
type DeepLinkEvent struct {
	Action  string
	Outcome string
	Time    time.Time
}

// DeepLinkRecorder records deep-link resolutions.
type DeepLinkRecorder interface {
	RecordDeepLink(ev DeepLinkEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAttempt(AttemptResult) error    { return nil }
func (NopSink) RecordRejection(RejectionEvent) error { return nil }
func (NopSink) RecordDeepLink(DeepLinkEvent) error   { return nil }
