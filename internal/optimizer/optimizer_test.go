package optimizer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/signal"
)

func TestAllocate(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name   string
		ns, ew float64
		want   signal.Timing
	}{
		// 48/12 truncated; east-west clamps up to 15, north-south gives back the excess.
		{"heavy north-south", 80, 20, signal.Timing{NorthSouth: 45, EastWest: 15}},
		{"heavy east-west", 20, 80, signal.Timing{NorthSouth: 15, EastWest: 45}},
		{"only north-south", 100, 0, signal.Timing{NorthSouth: 45, EastWest: 15}},
		{"even", 50, 50, signal.Timing{NorthSouth: 30, EastWest: 30}},
		{"quarter", 25, 75, signal.Timing{NorthSouth: 15, EastWest: 45}},
		{"no demand", 0, 0, signal.Timing{NorthSouth: 30, EastWest: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allocate(tt.ns, tt.ew, opts))
		})
	}
}

func TestAllocateTieAdjustsEastWest(t *testing.T) {
	got := Allocate(1, 1, Options{Cycle: 61, MinGreen: 15, MaxGreen: 60})
	assert.Equal(t, signal.Timing{NorthSouth: 30, EastWest: 31}, got)
}

func TestAllocateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	opts := DefaultOptions()

	properties.Property("greens fill the cycle and stay within [15, 45]", prop.ForAll(
		func(ns, ew float64) bool {
			got := Allocate(ns, ew, opts)
			if got.NorthSouth+got.EastWest != opts.Cycle {
				return false
			}
			for _, v := range []int{got.NorthSouth, got.EastWest} {
				if v < 15 || v > 45 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 1000),
		gen.Float64Range(0, 1000),
	))

	properties.TestingRun(t)
}

// cross builds a signalised centre with one approach from each side plus a
// diagonal approach that belongs to neither phase.
func cross(t *testing.T) *graph.Graph {
	t.Helper()
	light := signal.Light{
		NorthSouth: signal.PhaseState{GreenTime: 30, State: signal.Green},
		EastWest:   signal.PhaseState{GreenTime: 30, State: signal.Red},
	}
	g, err := graph.NewGraph(graph.GraphData{
		Nodes: []graph.Node{
			{ID: "c", Loc: graph.Coordinate{X: 100, Y: 100}},
			{ID: "n", Loc: graph.Coordinate{X: 100, Y: 200}},
			{ID: "s", Loc: graph.Coordinate{X: 100, Y: 0}},
			{ID: "e", Loc: graph.Coordinate{X: 200, Y: 100}},
			{ID: "diag", Loc: graph.Coordinate{X: 0, Y: 0}},
		},
		Edges: []graph.Edge{
			{ID: "n_c", U: "n", V: "c", Weight: 1},
			{ID: "s_c", U: "s", V: "c", Weight: 1},
			{ID: "e_c", U: "e", V: "c", Weight: 1},
			{ID: "d_c", U: "diag", V: "c", Weight: 1},
			{ID: "c_e", U: "c", V: "e", Weight: 1},
		},
		Lights: []graph.LightData{{NodeID: "c", Light: light}},
	})
	require.NoError(t, err)
	return g
}

func TestDemand(t *testing.T) {
	g := cross(t)
	density := map[graph.EdgeID]float64{"n_c": 50, "s_c": 30, "e_c": 20, "d_c": 1000, "c_e": 99}

	ns, ew := Demand(g, "c", density)
	assert.Equal(t, 80.0, ns)
	assert.Equal(t, 20.0, ew, "outgoing and diagonal roads ignored")
}

func TestOptimize(t *testing.T) {
	g := cross(t)
	density := map[graph.EdgeID]float64{"n_c": 50, "s_c": 30, "e_c": 20}

	timings := OptimizeLights(g, density)
	require.Len(t, timings, 1, "only signalised nodes")
	assert.Equal(t, signal.Timing{NorthSouth: 45, EastWest: 15}, timings["c"])

	l, _ := g.Light("c")
	assert.Equal(t, 30, l.NorthSouth.GreenTime, "optimizing does not apply")
}

func TestOptimizeGridWithoutDensity(t *testing.T) {
	g, err := graph.NewGraph(graph.Grid(graph.DefaultGridSpec(), nil))
	require.NoError(t, err)

	timings := OptimizeLights(g, nil)
	assert.Len(t, timings, 16)
	for id, tm := range timings {
		assert.Equal(t, signal.Timing{NorthSouth: 30, EastWest: 30}, tm, id)
	}
	assert.Equal(t, 16, g.ApplyTimings(timings))
}
