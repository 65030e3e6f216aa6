package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	attemptLatency   *prometheus.HistogramVec
	attemptsTotal    *prometheus.CounterVec
	attemptsInFlight prometheus.Gauge
	noticeSuccess    prometheus.Counter
	noticeFailure    prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_attempt_latency_seconds",
			Help:    "Latency of dispatch attempts from send to resolution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Number of resolved dispatch attempts",
		},
		[]string{"state"},
	)
	inflight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_attempts_in_flight",
			Help: "Dispatch attempts currently in the sending state",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_notice_publish_success_total",
			Help: "Number of operator notices handed to the transport",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_notice_publish_failure_total",
			Help: "Number of operator notices the transport refused",
		},
	)
	return lat, total, inflight, suc, fail
}

func init() {
	attemptLatency, attemptsTotal, attemptsInFlight, noticeSuccess, noticeFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(attemptLatency, attemptsTotal, attemptsInFlight, noticeSuccess, noticeFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	attemptLatency, attemptsTotal, attemptsInFlight, noticeSuccess, noticeFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
