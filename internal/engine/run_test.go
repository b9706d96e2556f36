package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/traffic-engine/internal/config"
	"github.com/cxd309/traffic-engine/internal/graph"
)

const batchInput = `{
	"simulation_meta": {"simulation_id": "batch", "ticks": 6, "seed": 3, "vehicles": 4, "reroute_every": 2, "optimize_every": 3},
	"grid": {"cols": 3, "rows": 3, "spacing": 100, "green_time": 30, "weight": 1, "capacity": 100},
	"incidents": [{"tick": 2, "location": "intersection_1_1", "type": "weather", "duration": 2}]
}`

func TestRunJSON(t *testing.T) {
	out, err := RunJSON(batchInput)
	require.NoError(t, err)

	var simLog SimulationLog
	require.NoError(t, json.Unmarshal([]byte(out), &simLog))

	assert.Equal(t, "batch", simLog.Meta.SimulationID)
	require.NotNil(t, simLog.Meta.Seed)
	assert.Equal(t, int64(3), *simLog.Meta.Seed)
	require.Len(t, simLog.Output, 6)
	for i, row := range simLog.Output {
		assert.Equal(t, i+1, row.Tick)
		assert.Len(t, row.VehicleLogs, 4)
		assert.Equal(t, 4, row.Moving+row.Arrived)
		assert.GreaterOrEqual(t, row.MeanDensity, 0.0)
	}
	assert.GreaterOrEqual(t, simLog.Output[1].Incidents, 1, "scheduled incident is active")
	assert.Equal(t, 4, simLog.Output[2].Retimed, "every light is retimed on schedule")
	assert.Zero(t, simLog.Output[0].Retimed)

	assert.Equal(t, 6, simLog.Final.Tick)
	assert.Len(t, simLog.Final.Vehicles, 4)
	assert.Len(t, simLog.Final.Lights, 4)
}

func TestRunJSONIsDeterministic(t *testing.T) {
	a, err := RunJSON(batchInput)
	require.NoError(t, err)
	b, err := RunJSON(batchInput)
	require.NoError(t, err)
	assert.JSONEq(t, a, b)
}

func TestRunJSONErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{`},
		{"bad speed model", `{"simulation_meta": {"ticks": 1}, "speed_model": {"model": "warp"}}`},
		{"bad graph", `{"simulation_meta": {"ticks": 1}, "graph_data": {"nodes": [{"node_id": "a"}], "edges": [{"edge_id": "x", "u": "a", "v": "ghost", "weight": 1}]}}`},
		{"rejected incident", `{"simulation_meta": {"ticks": 2}, "incidents": [{"tick": 1, "location": "nowhere"}]}`},
		{"negative vehicles", `{"simulation_meta": {"ticks": 1, "vehicles": -1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunJSON(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestRunInputUsesSuppliedGraph(t *testing.T) {
	data := graph.Grid(graph.GridSpec{Cols: 2, Rows: 2, Spacing: 10, GreenTime: 5, Weight: 1, Capacity: 10}, nil)
	vehicles := 3
	input := SimulationInput{
		Meta:       SimulationMeta{Ticks: 4, Vehicles: &vehicles},
		GraphData:  &data,
		SpeedModel: json.RawMessage(`{"model": "free_flow"}`),
	}

	simLog, err := RunInput(context.Background(), input, config.Default())
	require.NoError(t, err)
	assert.NotEmpty(t, simLog.Meta.SimulationID, "a missing id is generated")
	require.Len(t, simLog.Output, 4)
	assert.Len(t, simLog.Final.Vehicles, 3)
	assert.Len(t, simLog.Final.Density, len(data.Edges))
}

func TestRunInputHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunInput(ctx, SimulationInput{Meta: SimulationMeta{Ticks: 3}}, config.Default())
	assert.ErrorIs(t, err, context.Canceled)
}
