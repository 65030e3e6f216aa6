package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	attempts   int
	rejections int
	err        error
}

func (r *recordSink) RecordAttempt(AttemptResult) error {
	r.attempts++
	return r.err
}

func (r *recordSink) RecordRejection(RejectionEvent) error {
	r.rejections++
	return nil
}

// attemptOnly does not implement the optional recorders.
type attemptOnly struct{ n int }

func (a *attemptOnly) RecordAttempt(AttemptResult) error { a.n++; return nil }

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	s3 := &attemptOnly{}
	m := NewMultiSink(s1, s2, s3)
	if err := m.RecordAttempt(AttemptResult{}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if err := m.RecordRejection(RejectionEvent{}); err != nil {
		t.Fatalf("record rejection: %v", err)
	}
	if err := m.RecordDeepLink(DeepLinkEvent{}); err != nil {
		t.Fatalf("record deep link: %v", err)
	}
	if s1.attempts != 1 || s2.attempts != 1 || s3.n != 1 {
		t.Fatalf("attempts not forwarded")
	}
	if s1.rejections != 1 || s2.rejections != 1 {
		t.Fatalf("rejections not forwarded")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	s1 := &recordSink{err: errors.New("boom")}
	s2 := &recordSink{}
	if err := NewMultiSink(s1, s2).RecordAttempt(AttemptResult{}); err == nil {
		t.Fatalf("expected error")
	}
	if s2.attempts != 0 {
		t.Fatalf("second sink should not be reached")
	}
}

func TestAttemptUtilization(t *testing.T) {
	r := AttemptResult{TotalWeightKg: 2000, CapacityKg: 5000}
	if r.Utilization() != 0.4 {
		t.Fatalf("expected 0.4 got %v", r.Utilization())
	}
	if (AttemptResult{}).Utilization() != 0 {
		t.Fatalf("zero capacity must yield 0")
	}
}
