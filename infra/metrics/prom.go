package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/agriexport/dispatchboard/core/metrics"
)

// PromSink records dispatch board activity in Prometheus metrics.
type PromSink struct {
	attempts    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	utilization *prometheus.HistogramVec
	rejections  *prometheus.CounterVec
	deeplinks   *prometheus.CounterVec
}

// NewPromSink registers board metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_dispatch_attempts_total",
		Help: "Total number of resolved dispatch attempts",
	}, []string{"mode", "state"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_dispatch_latency_seconds",
		Help:    "Time between notice send and attempt resolution",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "state"})
	util := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_dispatch_load_ratio",
		Help:    "Selected weight divided by vehicle capacity at dispatch time",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	}, []string{"mode"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_dispatch_rejections_total",
		Help: "Dispatch requests refused before an attempt started",
	}, []string{"mode", "reason"})
	deeplinks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_deeplink_intents_total",
		Help: "Deep-link intents by action and outcome",
	}, []string{"action", "outcome"})

	var err error
	if attempts, err = register(reg, attempts); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if util, err = register(reg, util); err != nil {
		return nil, err
	}
	if rejections, err = register(reg, rejections); err != nil {
		return nil, err
	}
	if deeplinks, err = register(reg, deeplinks); err != nil {
		return nil, err
	}
	return &PromSink{
		attempts:    attempts,
		latency:     latency,
		utilization: util,
		rejections:  rejections,
		deeplinks:   deeplinks,
	}, nil
}

// register returns the already registered collector when one with the same
// descriptor exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAttempt counts the attempt and observes its latency.
func (s *PromSink) RecordAttempt(r coremetrics.AttemptResult) error {
	mode := r.Mode.String()
	s.attempts.WithLabelValues(mode, r.State).Inc()
	s.latency.WithLabelValues(mode, r.State).Observe(r.Latency.Seconds())
	if r.CapacityKg > 0 {
		s.utilization.WithLabelValues(mode).Observe(r.Utilization())
	}
	return nil
}

// RecordRejection counts a refused dispatch request.
func (s *PromSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	s.rejections.WithLabelValues(ev.Mode.String(), ev.Reason).Inc()
	return nil
}

// RecordDeepLink counts a reconciled intent.
func (s *PromSink) RecordDeepLink(ev coremetrics.DeepLinkEvent) error {
	s.deeplinks.WithLabelValues(ev.Action, ev.Outcome).Inc()
	return nil
}
