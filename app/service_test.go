package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriexport/dispatchboard/config"
	"github.com/agriexport/dispatchboard/core/dispatch/logging"
	"github.com/agriexport/dispatchboard/core/events"
)

const seed = `demand:
  - id: kayonza
    kind: farm
    weight_kg: 1800
  - id: kgl-7
    kind: airport
    weight_kg: 400
vehicles:
  - id: V1
    driver: Aline
    capacity_kg: 5000
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))
	cfg := &config.Config{
		Catalog: config.CatalogConfig{SeedPath: path},
		Logging: config.LoggingConfig{Backend: "jsonl", Path: filepath.Join(dir, "attempts.log")},
	}
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Dispatch.AckTimeoutMS = 100
	cfg.Dispatch.SendTimeoutMS = 500
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestService_DryRunDispatch(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	sub := svc.Bus.Subscribe()

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	post := func(path, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}
	put := func(path, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPut, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post("/api/board/units/kayonza/toggle", "")
	resp.Body.Close()
	resp = put("/api/board/vehicle", `{"vehicle_id":"V1"}`)
	resp.Body.Close()
	resp = post("/api/board/dispatch", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("dispatch status %d", resp.StatusCode)
	}

	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-sub:
			if c, ok := ev.(events.AttemptCompleted); ok {
				assert.Equal(t, []string{"kayonza"}, c.Notice.UnitIDs)
				done = true
			}
		case <-deadline:
			t.Fatalf("attempt did not complete")
		}
	}

	recs, err := svc.Controller.Attempts(context.Background(), logging.LogQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "V1", recs[0].VehicleID)

	resp, err = http.Get(srv.URL + "/api/attempts")
	require.NoError(t, err)
	var out []logging.LogRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Len(t, out, 1)

	require.NoError(t, svc.Close())
}

func TestService_Run(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	require.NoError(t, svc.Close())
}

func TestService_BadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.SeedPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	assert.Error(t, err)
}
