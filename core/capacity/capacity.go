// Package capacity validates a selection against the catalogs. Every function
// is pure and reads a single catalog.Snapshot.
package capacity

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/core/selection"
)

// Blocker names the first gate that prevents a dispatch.
type Blocker string

const (
	BlockerNone               Blocker = ""
	BlockerNoUnits            Blocker = "no_units"
	BlockerNoVehicle          Blocker = "no_vehicle"
	BlockerStaleVehicle       Blocker = "stale_vehicle"
	BlockerVehicleUnavailable Blocker = "vehicle_unavailable"
	BlockerOverweight         Blocker = "overweight"
)

// Assessment is the full validation result for one selection.
type Assessment struct {
	TotalWeightKg float64  `json:"total_weight_kg"`
	CapacityKg    float64  `json:"capacity_kg"`
	RemainingKg   float64  `json:"remaining_kg"`
	Overweight    bool     `json:"overweight"`
	CanDispatch   bool     `json:"can_dispatch"`
	Blocker       Blocker  `json:"blocker,omitempty"`
	StaleUnitIDs  []string `json:"stale_unit_ids,omitempty"`
}

// TotalWeightKg sums the weights of selected units found in snap. Units no
// longer in the catalog, or whose kind no longer matches the selection
// mode, contribute nothing.
func TotalWeightKg(sel *selection.Selection, snap catalog.Snapshot) float64 {
	total, _ := weigh(sel, snap)
	return total
}

// IsOverweight is true iff a vehicle is selected, known to snap, and the
// total weight exceeds its capacity.
func IsOverweight(sel *selection.Selection, snap catalog.Snapshot) bool {
	return Assess(sel, snap).Overweight
}

// CanDispatch is true iff at least one selected unit is still loadable, a
// vehicle is selected, the vehicle still exists and is available, and the
// load fits.
func CanDispatch(sel *selection.Selection, snap catalog.Snapshot) bool {
	return Assess(sel, snap).CanDispatch
}

// Assess computes every derived value from the same snapshot.
func Assess(sel *selection.Selection, snap catalog.Snapshot) Assessment {
	var a Assessment
	a.TotalWeightKg, a.StaleUnitIDs = weigh(sel, snap)

	vid := sel.VehicleID()
	v, known := snap.Vehicle(vid)
	if vid != "" && known {
		a.CapacityKg = v.CapacityKg
		a.RemainingKg = v.CapacityKg - a.TotalWeightKg
		a.Overweight = a.TotalWeightKg > v.CapacityKg
	}

	switch {
	case sel.Len() == len(a.StaleUnitIDs):
		a.Blocker = BlockerNoUnits
	case vid == "":
		a.Blocker = BlockerNoVehicle
	case !known:
		a.Blocker = BlockerStaleVehicle
	case !v.Selectable():
		a.Blocker = BlockerVehicleUnavailable
	case a.Overweight:
		a.Blocker = BlockerOverweight
	}
	a.CanDispatch = a.Blocker == BlockerNone
	return a
}

func weigh(sel *selection.Selection, snap catalog.Snapshot) (float64, []string) {
	ids := sel.UnitIDs()
	weights := make([]float64, 0, len(ids))
	var stale []string
	for _, id := range ids {
		u, ok := snap.Unit(id)
		if !ok || u.Kind != sel.Mode() {
			stale = append(stale, id)
			continue
		}
		weights = append(weights, u.WeightKg)
	}
	return floats.Sum(weights), stale
}

// SuggestVehicle returns the available vehicle whose capacity fits totalKg
// with the least spare room. Ties are broken by id.
func SuggestVehicle(totalKg float64, vehicles []model.Vehicle) (model.Vehicle, bool) {
	fits := make([]model.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.CanCarry(totalKg) {
			fits = append(fits, v)
		}
	}
	if len(fits) == 0 {
		return model.Vehicle{}, false
	}
	sort.Slice(fits, func(i, j int) bool {
		if fits[i].CapacityKg != fits[j].CapacityKg {
			return fits[i].CapacityKg < fits[j].CapacityKg
		}
		return fits[i].ID < fits[j].ID
	})
	return fits[0], true
}
