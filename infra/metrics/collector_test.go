package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriexport/dispatchboard/core/events"
	coremetrics "github.com/agriexport/dispatchboard/core/metrics"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/internal/eventbus"
)

type memSink struct {
	mu         sync.Mutex
	attempts   []coremetrics.AttemptResult
	rejections []coremetrics.RejectionEvent
	deeplinks  []coremetrics.DeepLinkEvent
}

func (m *memSink) RecordAttempt(r coremetrics.AttemptResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, r)
	return nil
}

func (m *memSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, ev)
	return nil
}

func (m *memSink) RecordDeepLink(ev coremetrics.DeepLinkEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deeplinks = append(m.deeplinks, ev)
	return nil
}

func (m *memSink) counts() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts), len(m.rejections), len(m.deeplinks)
}

func TestEventCollector(t *testing.T) {
	bus := eventbus.New[events.Event]()
	sink := &memSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink)

	notice := model.DispatchNotice{VehicleID: "V1", Mode: model.ModeFarmPickup, UnitIDs: []string{"F1"}, TotalWeightKg: 2000, CapacityKg: 5000}
	bus.Publish(events.AttemptStarted{AttemptID: "a1", Notice: notice})
	bus.Publish(events.AttemptCompleted{AttemptID: "a1", Notice: notice, Latency: time.Second})
	bus.Publish(events.AttemptFailed{AttemptID: "a2", Notice: notice, Reason: "nack"})
	bus.Publish(events.DispatchRejected{Mode: model.ModeFarmPickup, Reason: "overweight"})
	bus.Publish(events.IntentResolved{Action: "assign", Outcome: "selected"})

	require.Eventually(t, func() bool {
		a, r, d := sink.counts()
		return a == 2 && r == 1 && d == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "completed", sink.attempts[0].State)
	assert.Equal(t, 1, sink.attempts[0].UnitCount)
	assert.Equal(t, "failed", sink.attempts[1].State)
	assert.Equal(t, "nack", sink.attempts[1].Reason)
}

func TestEventCollectorNilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, &memSink{})
	select {
	case <-done:
	default:
		t.Fatal("expected closed channel")
	}
}
