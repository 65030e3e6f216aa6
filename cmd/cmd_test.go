package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`demand:
  - id: kayonza
    name: Kayonza Farm
    kind: farm
    weight_kg: 1800
    urgency: high
  - id: rwamagana
    kind: farm
    weight_kg: 900
  - id: kgl-7
    kind: airport
    weight_kg: 400
vehicles:
  - id: V1
    driver: Aline
    capacity_kg: 2000
  - id: V2
    capacity_kg: 9000
    status: maintenance
`), 0o644))
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("catalog:\n  seed_path: "+seed+"\nlogging:\n  backend: memory\n"), 0o644))
	return cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(resetFlag)
	}
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlag(f *pflag.Flag) {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		_ = sv.Replace(nil)
	} else {
		_ = f.Value.Set(f.DefValue)
	}
	f.Changed = false
}

func TestCatalogCommand(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "catalog", "-c", cfg, "--env-file", filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "kayonza")
	assert.Contains(t, out, "kgl-7")
	assert.Contains(t, out, "maintenance")

	out, err = execute(t, "catalog", "-c", cfg, "--mode", "airport")
	require.NoError(t, err)
	assert.NotContains(t, out, "kayonza")
	assert.Contains(t, out, "kgl-7")
}

func TestDispatchCommandDryRun(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "dispatch", "-c", cfg, "--dry-run", "-u", "kayonza", "-v", "V1")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "1800/2000 kg")
}

func TestDispatchCommandRejects(t *testing.T) {
	cfg := writeConfig(t)
	_, err := execute(t, "dispatch", "-c", cfg, "--dry-run", "-u", "kayonza,rwamagana", "-v", "V1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not dispatchable")

	_, err = execute(t, "dispatch", "-c", cfg, "--dry-run", "-u", "kayonza,kgl-7", "-v", "V1")
	assert.Error(t, err)

	_, err = execute(t, "dispatch", "-c", cfg, "--dry-run", "-u", "kayonza", "-v", "V2")
	assert.Error(t, err)
}
