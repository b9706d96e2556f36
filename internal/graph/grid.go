package graph

import (
	"fmt"
	"math/rand"

	"github.com/cxd309/traffic-engine/internal/signal"
)

// GridSpec describes a rectangular street lattice.
type GridSpec struct {
	Cols      int     `json:"cols"`
	Rows      int     `json:"rows"`
	Spacing   float64 `json:"spacing"`    // metres between neighbouring intersections
	GreenTime int     `json:"green_time"` // initial green time for both phases, seconds
	Weight    float64 `json:"weight"`
	Capacity  float64 `json:"capacity"`
}

// DefaultGridSpec is a 5×5 city block layout.
func DefaultGridSpec() GridSpec {
	return GridSpec{Cols: 5, Rows: 5, Spacing: 100, GreenTime: 30, Weight: 1, Capacity: 100}
}

// GridNodeID names the intersection in column i, row j.
func GridNodeID(i, j int) NodeID {
	return fmt.Sprintf("intersection_%d_%d", i, j)
}

// Grid builds a Cols×Rows lattice of two-way roads. Intersection (i, j) sits
// at (i*Spacing, j*Spacing); every intersection off the first row and column
// carries a light. When rng is nil lights start north-south green with zero
// elapsed time, otherwise the starting phase and offset are random.
func Grid(spec GridSpec, rng *rand.Rand) GraphData {
	var data GraphData
	for i := 0; i < spec.Cols; i++ {
		for j := 0; j < spec.Rows; j++ {
			id := GridNodeID(i, j)
			data.Nodes = append(data.Nodes, Node{
				ID:   id,
				Loc:  Coordinate{X: float64(i) * spec.Spacing, Y: float64(j) * spec.Spacing},
				Type: NodeTypeIntersection,
			})
			if i > 0 && j > 0 {
				data.Lights = append(data.Lights, LightData{NodeID: id, Light: gridLight(spec.GreenTime, rng)})
			}
		}
	}

	road := func(id string, u, v NodeID) Edge {
		return Edge{ID: id, U: u, V: v, Weight: spec.Weight, Capacity: spec.Capacity}
	}
	for i := 0; i < spec.Cols; i++ {
		for j := 0; j < spec.Rows; j++ {
			cur := GridNodeID(i, j)
			if i < spec.Cols-1 {
				east := GridNodeID(i+1, j)
				data.Edges = append(data.Edges,
					road(fmt.Sprintf("road_e_%d_%d", i, j), cur, east),
					road(fmt.Sprintf("road_w_%d_%d", i+1, j), east, cur),
				)
			}
			if j < spec.Rows-1 {
				north := GridNodeID(i, j+1)
				data.Edges = append(data.Edges,
					road(fmt.Sprintf("road_n_%d_%d", i, j), cur, north),
					road(fmt.Sprintf("road_s_%d_%d", i, j+1), north, cur),
				)
			}
		}
	}
	return data
}

func gridLight(green int, rng *rand.Rand) signal.Light {
	nsState, ewState := signal.Green, signal.Red
	offset := 0
	if rng != nil {
		if rng.Intn(2) == 0 {
			nsState, ewState = signal.Red, signal.Green
		}
		offset = rng.Intn(green + 1)
	}
	return signal.Light{
		NorthSouth: signal.PhaseState{GreenTime: green, State: nsState, TimeInState: offset},
		EastWest:   signal.PhaseState{GreenTime: green, State: ewState, TimeInState: offset},
	}
}
