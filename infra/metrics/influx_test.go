package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/agriexport/dispatchboard/core/metrics"
	"github.com/agriexport/dispatchboard/core/model"
)

type lineCapture struct {
	mu     sync.Mutex
	bodies []string
}

func (c *lineCapture) handler(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, strings.TrimSpace(string(b)))
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (c *lineCapture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bodies...)
}

func TestInfluxSink_RecordAttempt(t *testing.T) {
	capt := &lineCapture{}
	srv := httptest.NewServer(http.HandlerFunc(capt.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	rec := coremetrics.AttemptResult{
		AttemptID:     "a1",
		VehicleID:     "V1",
		Mode:          model.ModeFarmPickup,
		State:         "completed",
		UnitCount:     2,
		TotalWeightKg: 2000,
		CapacityKg:    5000,
		Latency:       1500 * time.Millisecond,
		Time:          now,
	}
	if err := sink.RecordAttempt(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("dispatch_attempt").
		AddTag("attempt_id", "a1").
		AddTag("vehicle_id", "V1").
		AddTag("mode", "farm").
		AddTag("state", "completed").
		AddField("units", 2).
		AddField("weight_kg", 2000.0).
		AddField("capacity_kg", 5000.0).
		AddField("latency_ms", 1500.0).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	bodies := capt.all()
	if len(bodies) != 1 || bodies[0] != exp {
		t.Errorf("unexpected bodies: %#v", bodies)
	}
}

func TestInfluxSink_RecordRejectionAndDeepLink(t *testing.T) {
	capt := &lineCapture{}
	srv := httptest.NewServer(http.HandlerFunc(capt.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "t", Org: "o", Bucket: "b"})
	defer sink.Close()
	now := time.Now()
	if err := sink.RecordRejection(coremetrics.RejectionEvent{Mode: model.ModeAirportTransfer, Reason: "overweight", Time: now}); err != nil {
		t.Fatalf("record rejection: %v", err)
	}
	if err := sink.RecordDeepLink(coremetrics.DeepLinkEvent{Action: "assign", Outcome: "selected", Time: now}); err != nil {
		t.Fatalf("record deep link: %v", err)
	}
	bodies := capt.all()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 writes got %d", len(bodies))
	}
	if !strings.HasPrefix(bodies[0], "dispatch_rejected,mode=airport,reason=overweight") {
		t.Errorf("unexpected rejection line: %s", bodies[0])
	}
	if !strings.HasPrefix(bodies[1], "deeplink_intent,action=assign,outcome=selected") {
		t.Errorf("unexpected deep link line: %s", bodies[1])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
