package routing

import (
	"context"
	"maps"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/incident"
)

// AdjustForIncidents returns a copy of density in which every road leaving
// an incident location is inflated by (1 + severity), or seeded at
// IncidentSeedDensity*severity when untracked. The copy is a routing view
// only, so values may exceed the density ceiling. The input map is not
// modified.
func (p *Planner) AdjustForIncidents(density Density, incidents []incident.Incident) Density {
	adjusted := maps.Clone(density)
	if adjusted == nil {
		adjusted = make(Density)
	}
	for _, inc := range incidents {
		for _, e := range p.graph.OutEdges(inc.Location) {
			if d, ok := adjusted[e.ID]; ok {
				adjusted[e.ID] = d * (1 + inc.Severity)
			} else {
				adjusted[e.ID] = p.opts.IncidentSeedDensity * inc.Severity
			}
		}
	}
	return adjusted
}

// Suggest routes every trip over the incident-adjusted density. When a trip
// has no route, or its route passes a severe incident, the shortest of up to
// Alternatives simple routes is taken instead and tagged IsAlternative.
// Trips with an empty position or destination are skipped. The only error
// is ctx's.
func (p *Planner) Suggest(ctx context.Context, trips map[VehicleID]Trip, density Density, incidents []incident.Incident) (map[VehicleID]RouteResult, error) {
	adjusted := p.AdjustForIncidents(density, incidents)
	severe := make(map[graph.NodeID]bool)
	for _, inc := range incidents {
		if inc.Severity > p.opts.SevereIncident {
			severe[inc.Location] = true
		}
	}

	ids := sortedTrips(trips)
	results := make([]RouteResult, len(ids))
	err := p.each(ctx, len(ids), func(i int) {
		t := trips[ids[i]]
		route := p.Route(t.Position, t.Destination, adjusted)
		if route.Found() && !touchesAny(route.Path, severe) {
			results[i] = route
			return
		}
		alts := p.Alternatives(t.Position, t.Destination, adjusted, p.opts.Alternatives)
		if len(alts) == 0 {
			results[i] = route
			return
		}
		best := alts[0]
		for _, alt := range alts[1:] {
			if alt.Length < best.Length {
				best = alt
			}
		}
		best.IsAlternative = true
		results[i] = best
	})
	if err != nil {
		return nil, err
	}
	return collect(ids, results), nil
}

// SuggestRoutes is Suggest with the default options.
func SuggestRoutes(g *graph.Graph, trips map[VehicleID]Trip, density Density, incidents []incident.Incident) map[VehicleID]RouteResult {
	out, _ := NewPlanner(g, DefaultOptions()).Suggest(context.Background(), trips, density, incidents)
	return out
}

func touchesAny(path []graph.NodeID, nodes map[graph.NodeID]bool) bool {
	if len(nodes) == 0 {
		return false
	}
	for _, n := range path {
		if nodes[n] {
			return true
		}
	}
	return false
}

// sortedTrips returns the IDs of routable trips in a stable order.
func sortedTrips(trips map[VehicleID]Trip) []VehicleID {
	ids := make([]VehicleID, 0, len(trips))
	for id, t := range trips {
		if t.Position == "" || t.Destination == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func collect(ids []VehicleID, results []RouteResult) map[VehicleID]RouteResult {
	out := make(map[VehicleID]RouteResult, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out
}

// each runs fn(0..n-1) on a bounded errgroup. Every fn writes only its own
// slot, so no further locking is needed.
func (p *Planner) each(ctx context.Context, n int, fn func(i int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.parallelism())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}
