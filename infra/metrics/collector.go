package metrics

import (
	"context"
	"time"

	"github.com/agriexport/dispatchboard/core/events"
	coremetrics "github.com/agriexport/dispatchboard/core/metrics"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/infra/logger"
	"github.com/agriexport/dispatchboard/internal/eventbus"
)

// StartEventCollector subscribes to the board bus and records metrics for
// resolved attempts, rejections and deep-link intents. It stops when the
// context is canceled or the bus is closed; the returned channel is closed
// once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %s: %v", ev.EventName(), err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.AttemptCompleted:
		return sink.RecordAttempt(attemptResult(e.AttemptID, e.Notice, "completed", e.Note, e.Latency, e.CompletedAt))
	case events.AttemptFailed:
		return sink.RecordAttempt(attemptResult(e.AttemptID, e.Notice, "failed", e.Reason, e.Latency, e.CompletedAt))
	case events.DispatchRejected:
		if r, ok := sink.(coremetrics.RejectionRecorder); ok {
			return r.RecordRejection(coremetrics.RejectionEvent{Mode: e.Mode, Reason: e.Reason, Time: time.Now()})
		}
	case events.IntentResolved:
		if r, ok := sink.(coremetrics.DeepLinkRecorder); ok {
			return r.RecordDeepLink(coremetrics.DeepLinkEvent{Action: e.Action, Outcome: e.Outcome, Time: time.Now()})
		}
	}
	return nil
}

func attemptResult(id string, n model.DispatchNotice, state, reason string, lat time.Duration, at time.Time) coremetrics.AttemptResult {
	return coremetrics.AttemptResult{
		AttemptID:     id,
		VehicleID:     n.VehicleID,
		Mode:          n.Mode,
		State:         state,
		UnitCount:     len(n.UnitIDs),
		TotalWeightKg: n.TotalWeightKg,
		CapacityKg:    n.CapacityKg,
		Latency:       lat,
		Reason:        reason,
		Time:          at,
	}
}
