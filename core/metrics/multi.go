package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAttempt forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordAttempt(res AttemptResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordAttempt(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordRejection forwards rejections to sinks that support them.
func (m *MultiSink) RecordRejection(ev RejectionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RejectionRecorder); ok {
			if err := rec.RecordRejection(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDeepLink forwards deep-link events to sinks that support them.
func (m *MultiSink) RecordDeepLink(ev DeepLinkEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DeepLinkRecorder); ok {
			if err := rec.RecordDeepLink(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
