package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriexport/dispatchboard/core/capacity"
	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/deeplink"
	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/events"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/internal/eventbus"
)

// gateNotifier acks once release is closed.
type gateNotifier struct {
	release chan struct{}
	fail    error
	mu      sync.Mutex
	sent    []model.DispatchNotice
}

func (g *gateNotifier) SendNotice(_ context.Context, n model.DispatchNotice) (string, error) {
	g.mu.Lock()
	g.sent = append(g.sent, n)
	g.mu.Unlock()
	if g.fail != nil {
		return "", g.fail
	}
	return "n-" + n.AttemptID, nil
}

func (g *gateNotifier) WaitForAck(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	select {
	case <-g.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func newStore() *catalog.MemoryStore {
	return catalog.NewMemoryStore(
		[]model.DemandUnit{
			{ID: "F1", Kind: model.ModeFarmPickup, WeightKg: 2000},
			{ID: "F2", Kind: model.ModeFarmPickup, WeightKg: 2500, Urgency: model.UrgencyHigh},
			{ID: "A1", Kind: model.ModeAirportTransfer, WeightKg: 300},
		},
		[]model.Vehicle{
			{ID: "V1", Driver: "Aline", CapacityKg: 5000},
			{ID: "V2", CapacityKg: 1000},
			{ID: "V3", CapacityKg: 9000, Status: model.StatusMaintenance},
		},
	)
}

type fixture struct {
	board *Board
	store *catalog.MemoryStore
	gate  *gateNotifier
	sub   <-chan events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dispatch.ResetMetrics(prometheus.NewRegistry())
	bus := eventbus.NewWithBuffer[events.Event](128)
	gate := &gateNotifier{release: make(chan struct{})}
	ctrl, err := dispatch.NewController(gate, dispatch.Config{AckTimeoutMS: 200, SendTimeoutMS: 1000}, nil, bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })
	store := newStore()
	b, err := New(store, ctrl, model.ModeFarmPickup, nil, bus)
	require.NoError(t, err)
	return &fixture{board: b, store: store, gate: gate, sub: bus.Subscribe()}
}

func (f *fixture) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-f.sub:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func waitFor[T events.Event](t *testing.T, sub <-chan events.Event) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if v, ok := ev.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %s", zero.EventName())
			return zero
		}
	}
}

func TestNewRejectsNil(t *testing.T) {
	_, err := New(nil, nil, model.ModeFarmPickup, nil, nil)
	assert.Error(t, err)
	_, err = New(newStore(), nil, model.ModeFarmPickup, nil, nil)
	assert.Error(t, err)
}

func TestToggleAndVehicle(t *testing.T) {
	f := newFixture(t)
	b := f.board

	assert.True(t, b.ToggleUnit("F1"))
	assert.False(t, b.ToggleUnit("A1"), "other mode is ignored")
	assert.False(t, b.ToggleUnit("ghost"))
	assert.False(t, b.SelectVehicle("V3"), "maintenance vehicle")
	assert.False(t, b.SelectVehicle("nope"))
	assert.True(t, b.SelectVehicle("V1"))

	h := b.Highlights()
	assert.Equal(t, []string{"F1"}, h.UnitIDs)
	assert.Equal(t, "V1", h.VehicleID)

	evs := f.drain()
	require.Len(t, evs, 2)
	sc, ok := evs[1].(events.SelectionChanged)
	require.True(t, ok)
	assert.Equal(t, "select_vehicle", sc.Cause)

	b.ClearVehicle()
	assert.Equal(t, "", b.Highlights().VehicleID)
	assert.True(t, b.ToggleUnit("F1"))
	assert.Empty(t, b.Highlights().UnitIDs)
}

func TestVanishedUnitCanBeToggledOff(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.board.ToggleUnit("F1"))
	f.store.RemoveDemand("F1")

	a := f.board.Assessment()
	assert.Equal(t, []string{"F1"}, a.StaleUnitIDs)
	assert.Equal(t, 0.0, a.TotalWeightKg)

	assert.True(t, f.board.ToggleUnit("F1"))
	assert.Empty(t, f.board.Highlights().UnitIDs)
}

func TestRekindedUnitLeavesSelection(t *testing.T) {
	f := newFixture(t)
	b := f.board
	require.True(t, b.ToggleUnit("F1"))
	require.True(t, b.SelectVehicle("V1"))
	require.NoError(t, f.store.UpsertDemand(model.DemandUnit{ID: "F1", Kind: model.ModeAirportTransfer, WeightKg: 2000}))

	a := b.Assessment()
	assert.Equal(t, []string{"F1"}, a.StaleUnitIDs)
	assert.Equal(t, 0.0, a.TotalWeightKg)
	assert.False(t, a.CanDispatch)
	_, err := b.Dispatch(context.Background())
	require.ErrorIs(t, err, dispatch.ErrNotDispatchable)

	assert.True(t, b.ToggleUnit("F1"), "toggling removes the re-kinded unit")
	assert.Empty(t, b.Highlights().UnitIDs)
	assert.False(t, b.ToggleUnit("F1"), "and it cannot be added back in farm mode")
}

func TestSetModeClears(t *testing.T) {
	f := newFixture(t)
	b := f.board
	b.ToggleUnit("F1")
	b.SelectVehicle("V1")
	require.NoError(t, b.SetMode(model.ModeAirportTransfer))
	assert.Equal(t, model.ModeAirportTransfer, b.Mode())
	assert.Empty(t, b.Highlights().UnitIDs)
	assert.Error(t, b.SetMode(model.Mode(7)))
}

func TestDispatchRejected(t *testing.T) {
	f := newFixture(t)
	b := f.board
	b.ToggleUnit("F1")
	b.SelectVehicle("V2")
	f.drain()

	_, err := b.Dispatch(context.Background())
	require.ErrorIs(t, err, dispatch.ErrNotDispatchable)
	assert.Equal(t, []string{"F1"}, b.Highlights().UnitIDs, "rejection keeps the selection")

	rej := waitFor[events.DispatchRejected](t, f.sub)
	assert.Equal(t, string(capacity.BlockerOverweight), rej.Reason)
	assert.Equal(t, model.ModeFarmPickup, rej.Mode)
}

func TestScenarioE_CompletionClearsSelection(t *testing.T) {
	f := newFixture(t)
	b := f.board
	b.ToggleUnit("F1")
	b.ToggleUnit("F2")
	b.SelectVehicle("V1")

	a, err := b.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateSending, a.State())

	// A second dispatch while sending is refused.
	_, err = b.Dispatch(context.Background())
	require.ErrorIs(t, err, dispatch.ErrInFlight)
	rej := waitFor[events.DispatchRejected](t, f.sub)
	assert.Equal(t, "in_flight", rej.Reason)

	v := b.View()
	require.NotNil(t, v.Attempt)
	assert.Equal(t, dispatch.StateSending, v.Attempt.State)

	close(f.gate.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateCompleted, rec.State)

	h := b.Highlights()
	assert.Empty(t, h.UnitIDs)
	assert.Equal(t, "", h.VehicleID)

	done := waitFor[events.AttemptCompleted](t, f.sub)
	assert.Equal(t, []string{"F1", "F2"}, done.Notice.UnitIDs)
	assert.Equal(t, "V1", done.Notice.VehicleID)
	assert.Equal(t, 4500.0, done.Notice.TotalWeightKg)
}

func TestFailureAlsoClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.gate.fail = errors.New("broker down")
	b := f.board
	b.ToggleUnit("F1")
	b.SelectVehicle("V1")

	a, err := b.Dispatch(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StateFailed, rec.State)
	assert.Contains(t, rec.Reason, "broker down")
	assert.Empty(t, b.Highlights().UnitIDs)

	failed := waitFor[events.AttemptFailed](t, f.sub)
	assert.Equal(t, rec.ID, failed.AttemptID)
}

func TestFocus(t *testing.T) {
	f := newFixture(t)
	b := f.board
	b.ToggleUnit("F1")
	assert.Nil(t, b.Focus())

	b.SetFocus("V2")
	fc := b.Focus()
	require.NotNil(t, fc)
	require.NotNil(t, fc.Vehicle)
	assert.Equal(t, 1000.0, fc.Vehicle.CapacityKg)

	b.SetFocus("trip-77")
	assert.Nil(t, b.Focus().Vehicle)
	assert.Equal(t, []string{"F1"}, b.Highlights().UnitIDs, "focus never edits the selection")

	b.ClearFocus()
	assert.Nil(t, b.Focus())

	var focus []string
	for _, ev := range f.drain() {
		if fe, ok := ev.(events.FocusChanged); ok {
			focus = append(focus, fe.TripID)
		}
	}
	assert.Equal(t, []string{"V2", "trip-77", ""}, focus)
}

func TestApplyIntent(t *testing.T) {
	f := newFixture(t)
	b := f.board
	b.ToggleUnit("F1")

	out, err := b.ApplyIntent(deeplink.Assign("A1"))
	require.NoError(t, err)
	assert.Equal(t, deeplink.OutcomeSelected, out)
	assert.Equal(t, model.ModeAirportTransfer, b.Mode())
	assert.Equal(t, []string{"A1"}, b.Highlights().UnitIDs)

	out, err = b.ApplyIntent(deeplink.Assign("A1"))
	require.NoError(t, err)
	assert.Equal(t, deeplink.OutcomeAlreadySelected, out)
	assert.Equal(t, []string{"A1"}, b.Highlights().UnitIDs)

	out, err = b.ApplyIntent(deeplink.Assign("ghost"))
	require.NoError(t, err)
	assert.Equal(t, deeplink.OutcomeIgnored, out)
	assert.Equal(t, []string{"A1"}, b.Highlights().UnitIDs)

	out, err = b.ApplyIntent(deeplink.Focus("V1"))
	require.NoError(t, err)
	assert.Equal(t, deeplink.OutcomeFocused, out)
	assert.Equal(t, "V1", b.Focus().TripID)

	_, err = b.ApplyIntent(deeplink.Intent{Action: deeplink.ActionFocus, AssignUnitID: "A1"})
	assert.Error(t, err)

	var outcomes []string
	for _, ev := range f.drain() {
		if ir, ok := ev.(events.IntentResolved); ok {
			outcomes = append(outcomes, ir.Outcome)
		}
	}
	assert.Equal(t, []string{"selected", "already_selected", "ignored", "focused"}, outcomes)
}

func TestViewSuggestsVehicle(t *testing.T) {
	f := newFixture(t)
	b := f.board
	b.ToggleUnit("F2")

	v := b.View()
	assert.Equal(t, model.ModeFarmPickup, v.Mode)
	require.Len(t, v.Demand, 2)
	assert.Equal(t, "F2", v.Demand[0].ID, "urgent first")
	assert.Len(t, v.Vehicles, 3)
	require.NotNil(t, v.Suggested)
	assert.Equal(t, "V1", v.Suggested.ID)
	assert.Equal(t, capacity.BlockerNoVehicle, v.Assessment.Blocker)
	assert.Nil(t, v.Attempt)

	b.SelectVehicle("V1")
	v = b.View()
	assert.Nil(t, v.Suggested)
	assert.True(t, v.Assessment.CanDispatch)
}
