package routing

import (
	"context"
	"slices"

	"github.com/cxd309/traffic-engine/internal/graph"
)

// BalanceReport describes what the balancer did.
type BalanceReport struct {
	Passes   int // passes that moved at least one vehicle to a different route
	Rerouted int // vehicles whose final route differs from their individual shortest route
}

// Balance computes each trip's individual shortest route, counts how many
// routes visit each node, and moves vehicles whose route crosses a node
// visited by more than CongestionThreshold routes onto the alternative with
// the lowest total count along its nodes. Ties keep the earlier, shorter
// alternative. Vehicles touching no congested node keep their individual
// route.
//
// With MaxPasses == 1 the counts come from the individual routes only and are
// never revised, so a reroute can create congestion on another node. With
// MaxPasses > 1 each pass visits vehicles in ID order and updates the counts
// after every reroute, scoring a vehicle's alternatives against everyone
// else's routes. Passes stop early once no node is congested or a pass moves
// nobody.
func (p *Planner) Balance(ctx context.Context, trips map[VehicleID]Trip, density Density) (map[VehicleID]RouteResult, BalanceReport, error) {
	ids := sortedTrips(trips)
	individual := make([]RouteResult, len(ids))
	err := p.each(ctx, len(ids), func(i int) {
		t := trips[ids[i]]
		individual[i] = p.Route(t.Position, t.Destination, density)
	})
	if err != nil {
		return nil, BalanceReport{}, err
	}

	b := &balancer{
		Planner:      p,
		trips:        trips,
		ids:          ids,
		density:      density,
		alternatives: make([][]RouteResult, len(ids)),
	}
	var current []RouteResult
	if p.opts.MaxPasses == 1 {
		current, err = b.oneShot(ctx, individual)
	} else {
		current, err = b.iterate(ctx, individual)
	}
	if err != nil {
		return nil, BalanceReport{}, err
	}

	for i := range current {
		if !slices.Equal(current[i].Path, individual[i].Path) {
			b.report.Rerouted++
		}
	}
	return collect(ids, current), b.report, nil
}

// BalanceMultiVehicleRouting is the one-shot Balance with the default options.
func BalanceMultiVehicleRouting(g *graph.Graph, trips map[VehicleID]Trip, density Density) map[VehicleID]RouteResult {
	out, _, _ := NewPlanner(g, DefaultOptions()).Balance(context.Background(), trips, density)
	return out
}

type balancer struct {
	*Planner
	trips   map[VehicleID]Trip
	ids     []VehicleID
	density Density

	// alternatives[i] is nil until fetched; fetched-but-empty is a non-nil empty slice.
	alternatives [][]RouteResult
	report       BalanceReport
}

func (b *balancer) oneShot(ctx context.Context, individual []RouteResult) ([]RouteResult, error) {
	counts := visitCounts(individual)
	affected := b.affected(individual, counts)
	if err := b.prefetch(ctx, affected); err != nil {
		return nil, err
	}

	out := slices.Clone(individual)
	moved := false
	for _, i := range affected {
		best, ok := leastCongested(b.alternatives[i], counts)
		if !ok {
			continue
		}
		best.OptimizedForCongestion = true
		moved = moved || !slices.Equal(best.Path, out[i].Path)
		out[i] = best
	}
	if moved {
		b.report.Passes = 1
	}
	return out, nil
}

func (b *balancer) iterate(ctx context.Context, individual []RouteResult) ([]RouteResult, error) {
	current := slices.Clone(individual)
	counts := visitCounts(current)

	for pass := 0; pass < b.opts.MaxPasses; pass++ {
		affected := b.affected(current, counts)
		if len(affected) == 0 {
			break
		}
		if err := b.prefetch(ctx, affected); err != nil {
			return nil, err
		}

		moved := false
		for i := range current {
			if !b.congested(current[i].Path, counts) {
				continue
			}
			if b.alternatives[i] == nil {
				b.alternatives[i] = b.fetch(i)
			}
			addVisits(counts, current[i].Path, -1)
			if best, ok := leastCongested(b.alternatives[i], counts); ok {
				best.OptimizedForCongestion = true
				moved = moved || !slices.Equal(best.Path, current[i].Path)
				current[i] = best
			}
			addVisits(counts, current[i].Path, 1)
		}
		if !moved {
			break
		}
		b.report.Passes++
	}
	return current, nil
}

// affected returns the indices of routes crossing a congested node.
func (b *balancer) affected(routes []RouteResult, counts map[graph.NodeID]int) []int {
	var out []int
	for i, r := range routes {
		if b.congested(r.Path, counts) {
			out = append(out, i)
		}
	}
	return out
}

func (b *balancer) congested(path []graph.NodeID, counts map[graph.NodeID]int) bool {
	for _, n := range path {
		if counts[n] > b.opts.CongestionThreshold {
			return true
		}
	}
	return false
}

func (b *balancer) fetch(i int) []RouteResult {
	t := b.trips[b.ids[i]]
	return b.Alternatives(t.Position, t.Destination, b.density, b.opts.BalanceAlternatives)
}

// prefetch loads the alternatives of the given vehicles in parallel.
func (b *balancer) prefetch(ctx context.Context, idx []int) error {
	return b.each(ctx, len(idx), func(j int) {
		if i := idx[j]; b.alternatives[i] == nil {
			b.alternatives[i] = b.fetch(i)
		}
	})
}

func visitCounts(routes []RouteResult) map[graph.NodeID]int {
	counts := make(map[graph.NodeID]int)
	for _, r := range routes {
		addVisits(counts, r.Path, 1)
	}
	return counts
}

func addVisits(counts map[graph.NodeID]int, path []graph.NodeID, delta int) {
	for _, n := range path {
		counts[n] += delta
	}
}

func leastCongested(alts []RouteResult, counts map[graph.NodeID]int) (RouteResult, bool) {
	if len(alts) == 0 {
		return RouteResult{}, false
	}
	best, bestScore := alts[0], score(alts[0].Path, counts)
	for _, alt := range alts[1:] {
		if s := score(alt.Path, counts); s < bestScore {
			best, bestScore = alt, s
		}
	}
	return best, true
}

func score(path []graph.NodeID, counts map[graph.NodeID]int) int {
	total := 0
	for _, n := range path {
		total += counts[n]
	}
	return total
}
