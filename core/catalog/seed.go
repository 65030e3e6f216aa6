package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/agriexport/dispatchboard/core/model"
)

type seedFile struct {
	Demand   []seedUnit    `json:"demand"`
	Vehicles []seedVehicle `json:"vehicles"`
}

type seedUnit struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	WeightKg float64        `json:"weight_kg"`
	Urgency  string         `json:"urgency"`
	Location model.Location `json:"location"`
}

type seedVehicle struct {
	ID         string         `json:"id"`
	Plate      string         `json:"plate"`
	Driver     string         `json:"driver"`
	CapacityKg float64        `json:"capacity_kg"`
	Status     string         `json:"status"`
	Location   model.Location `json:"location"`
}

// LoadSeed reads demand units and vehicles from a YAML or JSON file. Every
// record is validated; all problems are reported together.
func LoadSeed(path string) ([]model.DemandUnit, []model.Vehicle, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, nil, fmt.Errorf("catalog: unsupported seed format: %s", path)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, nil, fmt.Errorf("catalog: load seed: %w", err)
	}
	var raw seedFile
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, nil, fmt.Errorf("catalog: decode seed: %w", err)
	}

	var errs []error
	units := make([]model.DemandUnit, 0, len(raw.Demand))
	for _, r := range raw.Demand {
		u, err := r.toModel()
		if err == nil {
			err = u.Validate()
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		units = append(units, u)
	}
	vehicles := make([]model.Vehicle, 0, len(raw.Vehicles))
	for _, r := range raw.Vehicles {
		v, err := r.toModel()
		if err == nil {
			err = v.Validate()
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		vehicles = append(vehicles, v)
	}
	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("catalog: invalid seed %s: %w", path, errors.Join(errs...))
	}
	return units, vehicles, nil
}

func (r seedUnit) toModel() (model.DemandUnit, error) {
	kind, err := model.ParseMode(r.Kind)
	if err != nil {
		return model.DemandUnit{}, fmt.Errorf("demand unit %s: %w", r.ID, err)
	}
	urg, err := model.ParseUrgency(r.Urgency)
	if err != nil {
		return model.DemandUnit{}, fmt.Errorf("demand unit %s: %w", r.ID, err)
	}
	return model.DemandUnit{
		ID:       r.ID,
		Name:     r.Name,
		Kind:     kind,
		WeightKg: r.WeightKg,
		Urgency:  urg,
		Location: r.Location,
	}, nil
}

func (r seedVehicle) toModel() (model.Vehicle, error) {
	st, err := model.ParseVehicleStatus(r.Status)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("vehicle %s: %w", r.ID, err)
	}
	return model.Vehicle{
		ID:         r.ID,
		Plate:      r.Plate,
		Driver:     r.Driver,
		CapacityKg: r.CapacityKg,
		Status:     st,
		Location:   r.Location,
	}, nil
}
