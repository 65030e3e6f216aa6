package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/agriexport/dispatchboard/config"
	"github.com/agriexport/dispatchboard/core/catalog"
	"github.com/agriexport/dispatchboard/core/model"
)

var catalogMode string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the seeded demand and fleet",
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogMode, "mode", "m", "", "only list demand of this mode (farm|airport)")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	units, vehicles, err := catalog.LoadSeed(cfg.Catalog.SeedPath)
	if err != nil {
		return err
	}
	store := catalog.NewMemoryStore(units, vehicles)

	modes := model.Modes
	if catalogMode != "" {
		m, err := model.ParseMode(catalogMode)
		if err != nil {
			return err
		}
		modes = []model.Mode{m}
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, demandTable(store, modes))
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, fleetTable(store.ListVehicles()))
	return nil
}

func demandTable(c catalog.Catalog, modes []model.Mode) *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 40
	t.AddRow("UNIT", "MODE", "NAME", "WEIGHT (KG)", "URGENCY")
	for _, m := range modes {
		for _, u := range c.ListDemand(m) {
			t.AddRow(u.ID, u.Kind, u.Name, fmt.Sprintf("%.0f", u.WeightKg), u.Urgency)
		}
	}
	return t
}

func fleetTable(vehicles []model.Vehicle) *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 40
	t.AddRow("VEHICLE", "DRIVER", "CAPACITY (KG)", "STATUS")
	for _, v := range vehicles {
		t.AddRow(v.ID, v.Driver, fmt.Sprintf("%.0f", v.CapacityKg), v.Status)
	}
	return t
}
