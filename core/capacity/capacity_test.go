package capacity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/core/selection"
)

func farm(id string, kg float64) model.DemandUnit {
	return model.DemandUnit{ID: id, Kind: model.ModeFarmPickup, WeightKg: kg}
}

func truck(id string, kg float64) model.Vehicle {
	return model.Vehicle{ID: id, CapacityKg: kg, Status: model.StatusAvailable}
}

func TestScenarioA_WithinCapacity(t *testing.T) {
	f1 := farm("F1", 2000)
	v1 := truck("V1", 5000)
	snap := catalog.NewSnapshot([]model.DemandUnit{f1}, []model.Vehicle{v1})
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.SelectVehicle(v1)

	assert.True(t, CanDispatch(&sel, snap))
	assert.Equal(t, 2000.0, TotalWeightKg(&sel, snap))
	assert.False(t, IsOverweight(&sel, snap))

	a := Assess(&sel, snap)
	assert.Equal(t, 3000.0, a.RemainingKg)
	assert.Equal(t, BlockerNone, a.Blocker)
}

func TestScenarioB_Overweight(t *testing.T) {
	f1 := farm("F1", 2000)
	v1 := truck("V1", 1000)
	snap := catalog.NewSnapshot([]model.DemandUnit{f1}, []model.Vehicle{v1})
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.SelectVehicle(v1)

	assert.True(t, IsOverweight(&sel, snap))
	assert.False(t, CanDispatch(&sel, snap))
	assert.Equal(t, BlockerOverweight, Assess(&sel, snap).Blocker)
}

func TestExactCapacityIsNotOverweight(t *testing.T) {
	f1 := farm("F1", 5000)
	v1 := truck("V1", 5000)
	snap := catalog.NewSnapshot([]model.DemandUnit{f1}, []model.Vehicle{v1})
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.SelectVehicle(v1)
	assert.False(t, IsOverweight(&sel, snap))
	assert.True(t, CanDispatch(&sel, snap))
}

func TestNoVehicleNeverOverweight(t *testing.T) {
	units := []model.DemandUnit{farm("F1", 9000), farm("F2", 9000)}
	snap := catalog.NewSnapshot(units, nil)
	sel := selection.New(model.ModeFarmPickup)
	for _, u := range units {
		sel.ToggleUnit(u)
	}
	assert.False(t, IsOverweight(&sel, snap))
	a := Assess(&sel, snap)
	assert.Equal(t, BlockerNoVehicle, a.Blocker)
	assert.Equal(t, 18000.0, a.TotalWeightKg)
}

func TestEmptySelectionBlocksDispatch(t *testing.T) {
	v1 := truck("V1", 5000)
	snap := catalog.NewSnapshot(nil, []model.Vehicle{v1})
	sel := selection.New(model.ModeFarmPickup)
	assert.False(t, CanDispatch(&sel, snap))
	sel.SelectVehicle(v1)
	assert.False(t, CanDispatch(&sel, snap))
	assert.Equal(t, BlockerNoUnits, Assess(&sel, snap).Blocker)
}

func TestStaleUnitsContributeZero(t *testing.T) {
	f1, f2 := farm("F1", 1200), farm("F2", 800)
	v1 := truck("V1", 1500)
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.ToggleUnit(f2)
	sel.SelectVehicle(v1)

	full := catalog.NewSnapshot([]model.DemandUnit{f1, f2}, []model.Vehicle{v1})
	assert.True(t, IsOverweight(&sel, full))

	// F1 was collected by someone else in the meantime.
	partial := catalog.NewSnapshot([]model.DemandUnit{f2}, []model.Vehicle{v1})
	a := Assess(&sel, partial)
	assert.Equal(t, 800.0, a.TotalWeightKg)
	assert.Equal(t, []string{"F1"}, a.StaleUnitIDs)
	assert.True(t, a.CanDispatch)
}

func TestRekindedUnitIsStale(t *testing.T) {
	f1, f2 := farm("F1", 2000), farm("F2", 500)
	v1 := truck("V1", 5000)
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.ToggleUnit(f2)
	sel.SelectVehicle(v1)

	f1.Kind = model.ModeAirportTransfer
	snap := catalog.NewSnapshot([]model.DemandUnit{f1, f2}, []model.Vehicle{v1})
	a := Assess(&sel, snap)
	assert.Equal(t, 500.0, a.TotalWeightKg)
	assert.Equal(t, []string{"F1"}, a.StaleUnitIDs)
	assert.True(t, a.CanDispatch)

	sel.ToggleUnit(f2)
	a = Assess(&sel, snap)
	assert.False(t, a.CanDispatch, "only a re-kinded unit is left")
	assert.Equal(t, BlockerNoUnits, a.Blocker)
}

func TestStaleVehicleBlocksDispatch(t *testing.T) {
	f1, v1 := farm("F1", 10), truck("V1", 5000)
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.SelectVehicle(v1)
	snap := catalog.NewSnapshot([]model.DemandUnit{f1}, nil)
	a := Assess(&sel, snap)
	assert.False(t, a.CanDispatch)
	assert.False(t, a.Overweight)
	assert.Equal(t, BlockerStaleVehicle, a.Blocker)
}

func TestVehicleAvailabilityRecheckedAtValidation(t *testing.T) {
	f1, v1 := farm("F1", 10), truck("V1", 5000)
	sel := selection.New(model.ModeFarmPickup)
	sel.ToggleUnit(f1)
	sel.SelectVehicle(v1)

	v1.Status = model.StatusOnTrip
	snap := catalog.NewSnapshot([]model.DemandUnit{f1}, []model.Vehicle{v1})
	assert.Equal(t, BlockerVehicleUnavailable, Assess(&sel, snap).Blocker)
	assert.False(t, CanDispatch(&sel, snap))
}

func TestTotalWeightProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		var all, present []model.DemandUnit
		sel := selection.New(model.ModeFarmPickup)
		want := 0.0
		n := rng.Intn(12)
		for j := 0; j < n; j++ {
			u := farm(string(rune('a'+j)), float64(rng.Intn(5000)+1))
			all = append(all, u)
			sel.ToggleUnit(u)
			if rng.Intn(3) > 0 {
				present = append(present, u)
				want += u.WeightKg
			}
		}
		snap := catalog.NewSnapshot(present, nil)
		got := TotalWeightKg(&sel, snap)
		require.GreaterOrEqual(t, got, 0.0)
		require.InDelta(t, want, got, 1e-9)
		require.Len(t, Assess(&sel, snap).StaleUnitIDs, len(all)-len(present))
	}
}

func TestSuggestVehicle(t *testing.T) {
	vs := []model.Vehicle{
		truck("big", 10000),
		truck("mid-b", 3000),
		truck("mid-a", 3000),
		{ID: "tiny-busy", CapacityKg: 2500, Status: model.StatusMaintenance},
		truck("small", 1000),
	}
	v, ok := SuggestVehicle(2400, vs)
	require.True(t, ok)
	assert.Equal(t, "mid-a", v.ID)

	_, ok = SuggestVehicle(20000, vs)
	assert.False(t, ok)

	_, ok = SuggestVehicle(10, nil)
	assert.False(t, ok)
}
