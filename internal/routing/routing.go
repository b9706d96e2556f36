// Package routing computes congestion-aware routes over a road network.
//
// Weights are derived on the fly from a density snapshot, so nothing here
// mutates the graph. A Planner is safe for concurrent use as long as the
// graph is not mutated while it runs.
package routing

import (
	"encoding/json"
	"math"
	"runtime"

	"github.com/cxd309/traffic-engine/internal/graph"
)

// VehicleID identifies the vehicle a route is computed for.
type VehicleID = string

// Density maps a road ID to its congestion in [0, 100]. Missing roads count as 0.
type Density = map[graph.EdgeID]float64

// Trip is the position and destination of one vehicle.
type Trip struct {
	Position    graph.NodeID `json:"current_position"`
	Destination graph.NodeID `json:"destination"`
}

// RouteResult is the outcome of a route query. When no path exists Path is
// empty, Length is +Inf and NoPath is set.
type RouteResult struct {
	Path                   []graph.NodeID `json:"path"`
	Length                 float64        `json:"length"`
	NoPath                 bool           `json:"-"`
	IsAlternative          bool           `json:"is_alternative,omitempty"`
	OptimizedForCongestion bool           `json:"optimized_for_congestion,omitempty"`
}

func noPath() RouteResult {
	return RouteResult{Path: []graph.NodeID{}, Length: math.Inf(1), NoPath: true}
}

// Found reports whether the result carries a route.
func (r RouteResult) Found() bool { return !r.NoPath }

type routeResultJSON struct {
	Path                   []graph.NodeID `json:"path"`
	Length                 *float64       `json:"length"`
	IsAlternative          bool           `json:"is_alternative,omitempty"`
	OptimizedForCongestion bool           `json:"optimized_for_congestion,omitempty"`
}

// MarshalJSON writes length as null for a missing route, since JSON has no infinity.
func (r RouteResult) MarshalJSON() ([]byte, error) {
	out := routeResultJSON{
		Path:                   r.Path,
		IsAlternative:          r.IsAlternative,
		OptimizedForCongestion: r.OptimizedForCongestion,
	}
	if out.Path == nil {
		out.Path = []graph.NodeID{}
	}
	if !r.NoPath && !math.IsInf(r.Length, 1) {
		l := r.Length
		out.Length = &l
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *RouteResult) UnmarshalJSON(data []byte) error {
	var in routeResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = RouteResult{
		Path:                   in.Path,
		IsAlternative:          in.IsAlternative,
		OptimizedForCongestion: in.OptimizedForCongestion,
	}
	if in.Length == nil {
		r.Length = math.Inf(1)
		r.NoPath = true
		if r.Path == nil {
			r.Path = []graph.NodeID{}
		}
		return nil
	}
	r.Length = *in.Length
	return nil
}

// Options holds the routing policy constants.
type Options struct {
	DensityDivisor      float64 // weight = base * (1 + density/divisor)
	Alternatives        int     // alternatives requested by route suggestion
	SevereIncident      float64 // severity above which a route through the location is avoided
	IncidentSeedDensity float64 // density given to an untracked road leaving an incident, per unit severity

	CongestionThreshold int // a node visited by more routes than this is congested
	BalanceAlternatives int // alternatives requested per congested vehicle
	MaxPasses           int // 1 is the one-shot balancer

	Parallelism int // concurrent searches; <= 0 uses GOMAXPROCS
}

// DefaultOptions returns the stock routing policy.
func DefaultOptions() Options {
	return Options{
		DensityDivisor:      20,
		Alternatives:        3,
		SevereIncident:      0.5,
		IncidentSeedDensity: 50,
		CongestionThreshold: 2,
		BalanceAlternatives: 5,
		MaxPasses:           1,
	}
}

func (o Options) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// Planner answers route queries against one graph.
type Planner struct {
	graph *graph.Graph
	opts  Options
}

// NewPlanner returns a planner over g. A non-positive divisor, count or pass
// limit falls back to its default.
func NewPlanner(g *graph.Graph, opts Options) *Planner {
	def := DefaultOptions()
	if opts.DensityDivisor <= 0 {
		opts.DensityDivisor = def.DensityDivisor
	}
	if opts.Alternatives <= 0 {
		opts.Alternatives = def.Alternatives
	}
	if opts.BalanceAlternatives <= 0 {
		opts.BalanceAlternatives = def.BalanceAlternatives
	}
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = def.MaxPasses
	}
	return &Planner{graph: g, opts: opts}
}

// Options returns the planner's effective options.
func (p *Planner) Options() Options { return p.opts }

// EffectiveWeight is base * (1 + density/20).
func EffectiveWeight(base, density float64) float64 {
	return effectiveWeight(base, density, DefaultOptions().DensityDivisor)
}

func effectiveWeight(base, density, divisor float64) float64 {
	return base * (1 + density/divisor)
}

// Weight returns the edge cost function for a density snapshot.
func (p *Planner) Weight(density Density) graph.WeightFunc {
	divisor := p.opts.DensityDivisor
	return func(e graph.Edge) float64 {
		return effectiveWeight(e.Weight, density[e.ID], divisor)
	}
}

// Route returns the density-weighted shortest route from start to end.
// Unknown or disconnected endpoints yield a no-path result.
func (p *Planner) Route(start, end graph.NodeID, density Density) RouteResult {
	info, err := p.graph.ShortestPath(start, end, p.Weight(density), nil)
	if err != nil {
		return noPath()
	}
	return RouteResult{Path: info.Route, Length: info.Length}
}

// Alternatives returns up to k simple routes in ascending length. The result
// is empty, never nil, when there is no route.
func (p *Planner) Alternatives(start, end graph.NodeID, density Density, k int) []RouteResult {
	paths := p.graph.KShortestPaths(start, end, k, p.Weight(density))
	out := make([]RouteResult, len(paths))
	for i, info := range paths {
		out[i] = RouteResult{Path: info.Route, Length: info.Length}
	}
	return out
}

// ComputeRoute is Route with the default options.
func ComputeRoute(g *graph.Graph, start, end graph.NodeID, density Density) RouteResult {
	return NewPlanner(g, DefaultOptions()).Route(start, end, density)
}

// ComputeAlternativeRoutes is Alternatives with the default options.
func ComputeAlternativeRoutes(g *graph.Graph, start, end graph.NodeID, density Density, k int) []RouteResult {
	return NewPlanner(g, DefaultOptions()).Alternatives(start, end, density, k)
}

// Paths extracts the routes of found results, keyed by vehicle.
func Paths(results map[VehicleID]RouteResult) map[VehicleID][]graph.NodeID {
	out := make(map[VehicleID][]graph.NodeID, len(results))
	for id, r := range results {
		if r.Found() {
			out[id] = r.Path
		}
	}
	return out
}
