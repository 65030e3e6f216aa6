package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/agriexport/dispatchboard/core/monitoring"
)

// ServiceName tags every event sent by the board.
const ServiceName = "dispatchboard"

// Config defines settings for Sentry error monitoring. An empty DSN disables
// reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
	// Site names the depot or airport desk running this board.
	Site string `json:"site"`
}

func (c Config) clientOptions() sentry.ClientOptions {
	tags := map[string]string{"service": ServiceName}
	if c.Site != "" {
		tags["site"] = c.Site
	}
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		TracesSampleRate: c.TracesSampleRate,
		Release:          c.Release,
		Tags:             tags,
	}
}

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation.
func NewSentryMonitor(cfg Config) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	if err := sentry.Init(cfg.clientOptions()); err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err. Failed dispatch attempts carry their
// attempt_id tag; they get a dispatch_attempt context and are grouped per
// workflow and vehicle instead of per stack trace.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if id := tags["attempt_id"]; id != "" {
			scope.SetContext("dispatch_attempt", sentry.Context{
				"attempt_id": id,
				"vehicle_id": tags["vehicle_id"],
				"mode":       tags["mode"],
			})
			scope.SetFingerprint([]string{"dispatch-attempt-failed", tags["mode"], tags["vehicle_id"]})
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
