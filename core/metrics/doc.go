// Package metrics defines the sinks that record dispatch board activity.
// Sinks like PromSink and InfluxSink (package infra/metrics) record attempt
// outcomes, capacity assessments and deep-link resolutions, and can be
// combined with NewMultiSink. NewMetricsSink returns a MultiSink
// automatically when several sinks are configured.
package metrics
