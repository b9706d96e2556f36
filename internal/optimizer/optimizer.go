// Package optimizer derives traffic-light green times from road density.
package optimizer

import (
	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/signal"
)

// Options bounds the green times handed out per light.
type Options struct {
	Cycle    int // seconds shared by both phases
	MinGreen int
	MaxGreen int
}

// DefaultOptions returns a 60 s cycle with greens clamped to [15, 60].
func DefaultOptions() Options {
	return Options{Cycle: 60, MinGreen: 15, MaxGreen: 60}
}

// Allocate splits the cycle between two phases in proportion to their
// demand. Each share is truncated and clamped to [MinGreen, MaxGreen]; if the
// two no longer sum to the cycle, the larger one (east-west on a tie) is set
// to Cycle minus the other. Zero total demand splits the cycle evenly.
func Allocate(ns, ew float64, opts Options) signal.Timing {
	total := ns + ew
	if total <= 0 {
		half := opts.Cycle / 2
		return signal.Timing{NorthSouth: half, EastWest: opts.Cycle - half}
	}

	nsGreen := clamp(int(float64(opts.Cycle)*(ns/total)), opts.MinGreen, opts.MaxGreen)
	ewGreen := clamp(int(float64(opts.Cycle)*(ew/total)), opts.MinGreen, opts.MaxGreen)
	if nsGreen+ewGreen != opts.Cycle {
		if nsGreen > ewGreen {
			nsGreen = opts.Cycle - ewGreen
		} else {
			ewGreen = opts.Cycle - nsGreen
		}
	}
	return signal.Timing{NorthSouth: nsGreen, EastWest: ewGreen}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Demand sums the density of the roads arriving at node id, split by the
// phase that controls them. Roads that are neither north-south nor east-west
// are ignored; unknown roads count as zero.
func Demand(g *graph.Graph, id graph.NodeID, density map[graph.EdgeID]float64) (ns, ew float64) {
	for _, e := range g.InEdges(id) {
		phase, ok := g.Direction(e.U, id)
		if !ok {
			continue
		}
		if phase == signal.NorthSouth {
			ns += density[e.ID]
		} else {
			ew += density[e.ID]
		}
	}
	return ns, ew
}

// Optimize computes new green times for every light in g. It does not apply them.
func Optimize(g *graph.Graph, density map[graph.EdgeID]float64, opts Options) map[graph.NodeID]signal.Timing {
	lights := g.Lights()
	out := make(map[graph.NodeID]signal.Timing, len(lights))
	for id := range lights {
		ns, ew := Demand(g, id, density)
		out[id] = Allocate(ns, ew, opts)
	}
	return out
}

// OptimizeLights is Optimize with the default options.
func OptimizeLights(g *graph.Graph, density map[graph.EdgeID]float64) map[graph.NodeID]signal.Timing {
	return Optimize(g, density, DefaultOptions())
}
