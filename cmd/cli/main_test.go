package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/traffic-engine/internal/engine"
	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/routing"
	"github.com/cxd309/traffic-engine/internal/signal"
)

func TestRunBatchGeneratesGrid(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-ticks", "3", "-vehicles", "2", "-log-level", "error"}, nil, &out)
	require.NoError(t, err)

	var simLog engine.SimulationLog
	require.NoError(t, json.Unmarshal(out.Bytes(), &simLog))
	assert.Len(t, simLog.Output, 3)
	assert.Len(t, simLog.Final.Vehicles, 2)
	assert.Len(t, simLog.Final.Lights, 16, "default 5x5 grid")
}

func TestRunBatchReadsStdin(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader(`{"simulation_meta": {"simulation_id": "piped", "ticks": 2, "vehicles": 1}}`)
	require.NoError(t, run(context.Background(), []string{"run", "-log-level", "error", "-"}, in, &out))

	var simLog engine.SimulationLog
	require.NoError(t, json.Unmarshal(out.Bytes(), &simLog))
	assert.Equal(t, "piped", simLog.Meta.SimulationID)
	assert.Len(t, simLog.Output, 2)
}

func TestRunBatchWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  vehicles: 3\n  ticks: 2\ngrid:\n  cols: 2\n  rows: 2\nlogging:\n  level: error\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"run", "-config", path}, nil, &out))

	var simLog engine.SimulationLog
	require.NoError(t, json.Unmarshal(out.Bytes(), &simLog))
	assert.Len(t, simLog.Output, 2)
	assert.Len(t, simLog.Final.Vehicles, 3)
	assert.Len(t, simLog.Final.Lights, 1)
}

func TestRunRoute(t *testing.T) {
	var out bytes.Buffer
	args := []string{"route", "-to", graph.GridNodeID(2, 2), "-k", "2", "-vehicles", "0", "-log-level", "error"}
	require.NoError(t, run(context.Background(), args, nil, &out))

	var routes []routing.RouteResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &routes))
	require.Len(t, routes, 2)
	for _, r := range routes {
		assert.Equal(t, graph.GridNodeID(0, 0), r.Path[0])
		assert.Equal(t, graph.GridNodeID(2, 2), r.Path[len(r.Path)-1])
	}

	err := run(context.Background(), []string{"route", "-log-level", "error"}, nil, &out)
	assert.Error(t, err, "destination is required")
}

func TestRunOptimize(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"optimize", "-warmup", "3", "-log-level", "error"}, nil, &out))

	var timings map[graph.NodeID]signal.Timing
	require.NoError(t, json.Unmarshal(out.Bytes(), &timings))
	assert.Len(t, timings, 16)
}

func TestRunRejectsBadFlags(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run(context.Background(), []string{"-vehicles", "-4", "-log-level", "error"}, nil, &out))
	assert.Error(t, run(context.Background(), []string{"-config", "/does/not/exist.yaml"}, nil, &out))
	assert.Error(t, run(context.Background(), []string{"-log-level", "error", "/does/not/exist.json"}, nil, &out))
}
