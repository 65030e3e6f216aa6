package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agriexport/dispatchboard/app"
	"github.com/agriexport/dispatchboard/config"
	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/infra/mqtt"
)

var (
	dispatchUnits   []string
	dispatchVehicle string
	dispatchDryRun  bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send one dispatch notice and wait for the outcome",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().StringSliceVarP(&dispatchUnits, "unit", "u", nil, "demand unit id (repeatable)")
	dispatchCmd.Flags().StringVarP(&dispatchVehicle, "vehicle", "v", "", "vehicle id")
	dispatchCmd.Flags().BoolVar(&dispatchDryRun, "dry-run", false, "keep the notice in memory instead of publishing it")
	_ = dispatchCmd.MarkFlagRequired("unit")
	_ = dispatchCmd.MarkFlagRequired("vehicle")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dispatchDryRun {
		cfg.MQTT = mqtt.Config{}
	}
	cfg.Logging.Backend = "memory"
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	rec, err := dispatchOnce(ctx, svc, dispatchUnits, dispatchVehicle)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "attempt %s %s (%d units, %.0f/%.0f kg)\n",
		rec.ID, rec.State, len(rec.Notice.UnitIDs), rec.Notice.TotalWeightKg, rec.Notice.CapacityKg)
	if rec.Note != "" {
		_, _ = fmt.Fprintf(out, "note: %s\n", rec.Note)
	}
	if rec.State == dispatch.StateFailed {
		return fmt.Errorf("dispatch failed: %s", rec.Reason)
	}
	return nil
}

// dispatchOnce builds a selection on the service board and waits for the
// attempt to resolve. All units must belong to the same mode.
func dispatchOnce(ctx context.Context, svc *app.Service, units []string, vehicle string) (dispatch.AttemptRecord, error) {
	if len(units) == 0 {
		return dispatch.AttemptRecord{}, errors.New("at least one unit is required")
	}
	snap := svc.Catalog.Snapshot()
	var mode model.Mode
	seen := make(map[string]bool, len(units))
	for i, id := range units {
		u, ok := snap.Unit(id)
		if !ok {
			return dispatch.AttemptRecord{}, fmt.Errorf("unknown unit %q", id)
		}
		if i == 0 {
			mode = u.Kind
		} else if u.Kind != mode {
			return dispatch.AttemptRecord{}, fmt.Errorf("unit %q is %s, expected %s", id, u.Kind, mode)
		}
		seen[id] = true
	}

	b := svc.Board
	if err := b.SetMode(mode); err != nil {
		return dispatch.AttemptRecord{}, err
	}
	for id := range seen {
		b.ToggleUnit(id)
	}
	if !b.SelectVehicle(vehicle) {
		return dispatch.AttemptRecord{}, fmt.Errorf("vehicle %q is unknown or not available", vehicle)
	}
	a, err := b.Dispatch(ctx)
	if errors.Is(err, dispatch.ErrNotDispatchable) {
		as := b.Assessment()
		return dispatch.AttemptRecord{}, fmt.Errorf("%w: %.0f kg on %.0f kg vehicle", err, as.TotalWeightKg, as.CapacityKg)
	}
	if err != nil {
		return dispatch.AttemptRecord{}, err
	}
	return a.Wait(ctx)
}
