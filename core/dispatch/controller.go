package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agriexport/dispatchboard/core/capacity"
	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/dispatch/logging"
	"github.com/agriexport/dispatchboard/core/events"
	"github.com/agriexport/dispatchboard/core/logger"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/core/monitoring"
	"github.com/agriexport/dispatchboard/core/selection"
	"github.com/agriexport/dispatchboard/internal/eventbus"
)

var (
	// ErrNotDispatchable is returned when the selection fails validation.
	// Callers treat it as a no-op.
	ErrNotDispatchable = errors.New("dispatch: selection is not dispatchable")
	// ErrInFlight is returned until the previous attempt's Done is closed.
	ErrInFlight = errors.New("dispatch: an attempt is already in flight")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dispatch: controller closed")
)

const defaultHistory = 500

// Controller turns a validated selection into a dispatch attempt and drives
// it to a terminal state. At most one attempt is unresolved at any time.
type Controller struct {
	notifier Notifier
	cfg      Config
	log      logger.Logger
	bus      *eventbus.Bus[events.Event]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	current    *Attempt
	store      logging.LogStore
	onResolved func(AttemptRecord)
	closed     bool

	newID func() string
	now   func() time.Time
}

// NewController creates a controller sending notices through n. The bus
// may be nil. Resolved attempts are kept in an in-memory audit log until
// SetLogStore installs another backend.
func NewController(n Notifier, cfg Config, log logger.Logger, bus *eventbus.Bus[events.Event]) (*Controller, error) {
	if n == nil {
		return nil, fmt.Errorf("dispatch: nil notifier provided to NewController")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		notifier: n,
		cfg:      cfg,
		log:      logger.OrNop(log),
		bus:      bus,
		ctx:      ctx,
		cancel:   cancel,
		store:    logging.NewMemoryStore(defaultHistory),
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// SetLogStore configures the store used to persist resolved attempts.
func (c *Controller) SetLogStore(store logging.LogStore) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

// OnResolved installs a hook invoked once per attempt after it reached a
// terminal state and before Done is closed.
func (c *Controller) OnResolved(fn func(AttemptRecord)) {
	c.mu.Lock()
	c.onResolved = fn
	c.mu.Unlock()
}

// Current returns the most recent attempt, or nil. Its State turns terminal
// before the resolution hook and audit append run; Dispatch keeps returning
// ErrInFlight until Done is closed.
func (c *Controller) Current() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Attempts queries the audit log of resolved attempts.
func (c *Controller) Attempts(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return nil, nil
	}
	return store.Query(ctx, q)
}

// Dispatch validates sel against snap and starts an attempt. The selection
// is copied; the caller keeps ownership of sel. Sending runs in the
// background on the controller's own context and always resolves.
func (c *Controller) Dispatch(ctx context.Context, sel *selection.Selection, snap catalog.Snapshot) (*Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assess := capacity.Assess(sel, snap)
	if !assess.CanDispatch {
		return nil, fmt.Errorf("%w: %s", ErrNotDispatchable, assess.Blocker)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.current != nil && !c.current.resolved() {
		return nil, ErrInFlight
	}

	v, _ := snap.Vehicle(sel.VehicleID())
	id := c.newID()
	notice := model.DispatchNotice{
		AttemptID:     id,
		VehicleID:     v.ID,
		Driver:        v.Driver,
		Mode:          sel.Mode(),
		UnitIDs:       loadedUnits(sel, assess),
		TotalWeightKg: assess.TotalWeightKg,
		CapacityKg:    assess.CapacityKg,
	}
	a := newAttempt(id, notice, assess)
	if err := a.fire(EventDispatch, c.now(), ""); err != nil {
		return nil, fmt.Errorf("dispatch: start attempt: %w", err)
	}
	c.current = a
	attemptsInFlight.Inc()
	rec := a.Snapshot()
	c.publish(events.AttemptStarted{AttemptID: id, Notice: rec.Notice, StartedAt: rec.StartedAt})

	c.wg.Add(1)
	go c.send(a)
	c.log.Infof("attempt %s sending %d units (%.0f kg) to %s", id, len(notice.UnitIDs), notice.TotalWeightKg, notice.VehicleID)
	return a, nil
}

// Close stops accepting attempts, cancels the in-flight send and waits for
// it to resolve and for the notifier call to return. The log store is
// closed afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}

type outcome struct {
	state State
	text  string
	err   error
}

func (c *Controller) send(a *Attempt) {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.SendTimeout())
	defer cancel()

	notice := a.Snapshot().Notice
	res := make(chan outcome, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res <- c.deliver(ctx, notice)
	}()

	var out outcome
	select {
	case out = <-res:
	case <-ctx.Done():
		out = c.interrupted()
	}
	c.resolve(a, out)
}

// deliver runs the notifier and classifies its result.
func (c *Controller) deliver(ctx context.Context, n model.DispatchNotice) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("dispatch: notifier panic: %v", r)
			out = outcome{state: StateFailed, text: err.Error(), err: err}
		}
	}()

	noticeID, err := c.notifier.SendNotice(ctx, n)
	if err != nil {
		noticeFailure.Inc()
		if ctx.Err() != nil {
			return c.interrupted()
		}
		return outcome{state: StateFailed, text: err.Error(), err: fmt.Errorf("dispatch: send notice: %w", err)}
	}
	noticeSuccess.Inc()

	ok, err := c.notifier.WaitForAck(ctx, noticeID, c.cfg.AckTimeout())
	switch {
	case c.ctx.Err() != nil:
		return c.interrupted()
	case err == nil && ok:
		return outcome{state: StateCompleted}
	case errors.Is(err, ErrAckTimeout):
		return outcome{state: StateCompleted, text: "ack timeout"}
	case ctx.Err() != nil:
		return c.interrupted()
	case err == nil:
		return outcome{state: StateFailed, text: ErrNoticeRejected.Error(), err: ErrNoticeRejected}
	default:
		return outcome{state: StateFailed, text: err.Error(), err: err}
	}
}

// interrupted classifies an ended send context. Shutdown fails the attempt;
// the send deadline completes it.
func (c *Controller) interrupted() outcome {
	if c.ctx.Err() != nil {
		return outcome{state: StateFailed, text: "context canceled", err: context.Canceled}
	}
	return outcome{state: StateCompleted, text: "send timeout"}
}

func (c *Controller) resolve(a *Attempt, out outcome) {
	defer close(a.done)
	event := EventComplete
	if out.state == StateFailed {
		event = EventFail
	}
	if err := a.fire(event, c.now(), out.text); err != nil {
		c.log.Errorf("attempt %s: %s: %v", a.ID(), event, err)
		return
	}
	rec := a.Snapshot()
	attemptsInFlight.Dec()
	attemptsTotal.WithLabelValues(string(rec.State)).Inc()
	attemptLatency.WithLabelValues(string(rec.State)).Observe(rec.Latency().Seconds())

	c.mu.Lock()
	hook, store := c.onResolved, c.store
	c.mu.Unlock()
	if hook != nil {
		hook(rec)
	}
	if store != nil {
		if err := store.Append(context.Background(), toLogRecord(rec)); err != nil {
			c.log.Errorf("attempt %s: audit log: %v", rec.ID, err)
		}
	}

	switch rec.State {
	case StateCompleted:
		c.publish(events.AttemptCompleted{AttemptID: rec.ID, Notice: rec.Notice, Note: rec.Note, CompletedAt: rec.ResolvedAt, Latency: rec.Latency()})
		c.log.Infof("attempt %s completed %s", rec.ID, rec.Note)
	case StateFailed:
		c.publish(events.AttemptFailed{AttemptID: rec.ID, Notice: rec.Notice, Reason: rec.Reason, Err: out.err, CompletedAt: rec.ResolvedAt, Latency: rec.Latency()})
		c.log.Warnf("attempt %s failed: %s", rec.ID, rec.Reason)
		monitoring.CaptureException(out.err, map[string]string{
			"attempt_id": rec.ID,
			"vehicle_id": rec.Notice.VehicleID,
			"mode":       rec.Notice.Mode.String(),
		})
	}
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// loadedUnits drops ids that are no longer in the catalog.
func loadedUnits(sel *selection.Selection, a capacity.Assessment) []string {
	ids := sel.UnitIDs()
	if len(a.StaleUnitIDs) == 0 {
		return ids
	}
	stale := make(map[string]struct{}, len(a.StaleUnitIDs))
	for _, id := range a.StaleUnitIDs {
		stale[id] = struct{}{}
	}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := stale[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func toLogRecord(r AttemptRecord) logging.LogRecord {
	return logging.LogRecord{
		Timestamp:     r.ResolvedAt,
		AttemptID:     r.ID,
		State:         string(r.State),
		Mode:          r.Notice.Mode,
		VehicleID:     r.Notice.VehicleID,
		Driver:        r.Notice.Driver,
		UnitIDs:       r.Notice.UnitIDs,
		TotalWeightKg: r.Notice.TotalWeightKg,
		CapacityKg:    r.Notice.CapacityKg,
		StartedAt:     r.StartedAt,
		LatencyMS:     r.Latency().Milliseconds(),
		Reason:        r.Reason,
		Note:          r.Note,
	}
}
