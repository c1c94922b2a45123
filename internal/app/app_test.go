// v0
// internal/app/app_test.go
package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrgchamp/buildingrl/internal/config"
	"nrgchamp/buildingrl/internal/env"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LogFilePath = filepath.Join(t.TempDir(), "logs", "buildingrl.log")
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.Episodes = 3
	cfg.MaxSteps = 30
	cfg.StepInterval = 5 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestNewBuildingFromConfig(t *testing.T) {
	b, err := NewBuilding(15, config.Default().Floors)
	require.NoError(t, err)
	assert.Equal(t, 3, b.NumFloors())
	assert.InDelta(t, 3.2, b.TotalEnergyUsed(), 1e-9)
	assert.InDelta(t, 3.3, b.ExpectedEnergyUsage(), 1e-9)

	_, err = NewBuilding(15, []config.FloorConfig{{Occupants: -1}})
	assert.Error(t, err)
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	cfg := testConfig(t)
	cfg.Algorithm = "sarsa"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestTrainRunsConfiguredEpisodes(t *testing.T) {
	cfg := testConfig(t)
	var console bytes.Buffer
	a, err := New(cfg, &console)
	require.NoError(t, err)
	defer a.Close()

	results, err := a.Train(context.Background())
	require.NoError(t, err)
	require.Len(t, results, cfg.Episodes)
	for _, r := range results {
		assert.True(t, r.Done)
		assert.LessOrEqual(t, r.Steps, cfg.MaxSteps+1)
	}
	assert.Equal(t, cfg.Episodes, a.Session().Status().Episode)
	assert.Contains(t, console.String(), "training_summary")

	require.NoError(t, a.Close())
	data, err := os.ReadFile(cfg.LogFilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline_stopped")
}

func TestTrainStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Episodes = 1000
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := a.Train(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestServeDrivesAutopilotAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, true) }()

	require.Eventually(t, func() bool {
		st := a.Session().Status()
		return st.Steps > 0 || st.Episode > 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestHandlerServesManualOperations(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/floors/1/lights", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	snap := a.Session().Snapshot()
	assert.True(t, snap.Floors[1].LightOn)
	assert.InDelta(t, 3.7, snap.TotalEnergyUsed, 1e-9)

	res, err = http.Post(ts.URL+"/step", "application/json", strings.NewReader(`{"floor":3,"action":"toggle_light"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.False(t, env.GoalReached(snap))
}
