package engine

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/incident"
	"github.com/cxd309/traffic-engine/internal/logging"
	"github.com/cxd309/traffic-engine/internal/metrics"
	"github.com/cxd309/traffic-engine/internal/optimizer"
	"github.com/cxd309/traffic-engine/internal/routing"
	"github.com/cxd309/traffic-engine/internal/signal"
	"github.com/cxd309/traffic-engine/internal/vehicle"
)

// AddIncident places a manual incident on a random road leaving location.
// An empty kind means an accident and a non-positive duration uses the
// configured default. It fails for an unknown location, a location with no
// outgoing road, or an unknown kind.
func (s *Simulator) AddIncident(location graph.NodeID, kind string, duration int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := incident.KindAccident
	if kind != "" {
		var ok bool
		if k, ok = incident.ParseKind(kind); !ok {
			s.log.Warn("unknown incident type", logging.String("type", kind))
			return false
		}
	}
	if !s.graph.HasNode(location) {
		s.log.Warn("incident location not found", logging.NodeID(location))
		return false
	}
	out := s.graph.OutEdges(location)
	if len(out) == 0 {
		s.log.Warn("incident location has no outgoing road", logging.NodeID(location))
		return false
	}
	if duration <= 0 {
		duration = s.cfg.Incidents.DefaultDuration
	}

	cfg := s.cfg.Incidents
	e := out[s.rng.Intn(len(out))]
	s.record(incident.Incident{
		ID:       newID(s.rng),
		RoadID:   e.ID,
		Location: location,
		Kind:     k,
		Severity: cfg.ManualSeverityMin + s.rng.Float64()*(cfg.ManualSeverityMax-cfg.ManualSeverityMin),
		Duration: duration,
	}, metrics.SourceManual)
	return true
}

// ApplyRoutes installs new routes on the named vehicles and reports, per
// vehicle, whether the route was accepted. A route is accepted only if every
// consecutive pair is a road, it passes the vehicle's current position, and
// it ends at the destination. Unknown and arrived vehicles are rejected.
func (s *Simulator) ApplyRoutes(routes map[vehicle.ID][]graph.NodeID) map[vehicle.ID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]vehicle.ID, 0, len(routes))
	for id := range routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	applied := make(map[vehicle.ID]bool, len(routes))
	accepted, changed := 0, 0
	for _, id := range ids {
		route := routes[id]
		v, ok := s.byID[id]
		same := ok && slices.Equal(v.Route, route)
		if !ok || !s.graph.ValidRoute(route) || !v.AssignRoute(route) {
			applied[id] = false
			s.log.Debug("route rejected", logging.VehicleID(id))
			continue
		}
		applied[id] = true
		accepted++
		if !same {
			changed++
		}
	}
	// Resubmitting the current route is accepted but is not a reroute.
	s.metrics.RecordReroutes(changed)
	if accepted > 0 {
		s.log.Info("routes applied", logging.Count(accepted), logging.Int("changed", changed), logging.Int("requested", len(routes)))
	}
	return applied
}

// ApplyLightTimings retimes the named lights and returns how many changed.
func (s *Simulator) ApplyLightTimings(timings map[graph.NodeID]signal.Timing) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.graph.ApplyTimings(timings)
	s.metrics.RecordRetimings(n)
	if n > 0 {
		s.log.Info("lights retimed", logging.Count(n))
	}
	return n
}

// ComputeRoute returns the congestion-aware shortest route on the current
// density.
func (s *Simulator) ComputeRoute(start, end graph.NodeID) routing.RouteResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	began := time.Now()
	r := s.planner.Route(start, end, s.density)
	found := 0
	if r.Found() {
		found = 1
	}
	s.metrics.RecordRouteQuery(metrics.QueryRoute, found, 1, time.Since(began))
	return r
}

// ComputeAlternativeRoutes returns up to k distinct routes on the current
// density, shortest first.
func (s *Simulator) ComputeAlternativeRoutes(start, end graph.NodeID, k int) []routing.RouteResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	began := time.Now()
	alts := s.planner.Alternatives(start, end, s.density, k)
	found := 0
	if len(alts) > 0 {
		found = 1
	}
	s.metrics.RecordRouteQuery(metrics.QueryAlternatives, found, 1, time.Since(began))
	return alts
}

// SuggestRoutes proposes incident-aware routes for trips. A nil trips map
// means every moving vehicle.
func (s *Simulator) SuggestRoutes(ctx context.Context, trips map[routing.VehicleID]routing.Trip) (map[routing.VehicleID]routing.RouteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if trips == nil {
		trips = s.trips()
	}
	began := time.Now()
	results, err := s.planner.Suggest(ctx, trips, s.density, s.incidents)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRouteQuery(metrics.QuerySuggest, countFound(results), len(results), time.Since(began))
	return results, nil
}

// BalanceRoutes spreads trips away from congested intersections. A nil trips
// map means every moving vehicle.
func (s *Simulator) BalanceRoutes(ctx context.Context, trips map[routing.VehicleID]routing.Trip) (map[routing.VehicleID]routing.RouteResult, routing.BalanceReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if trips == nil {
		trips = s.trips()
	}
	began := time.Now()
	results, report, err := s.planner.Balance(ctx, trips, s.density)
	if err != nil {
		return nil, routing.BalanceReport{}, err
	}
	s.metrics.RecordRouteQuery(metrics.QueryBalance, countFound(results), len(results), time.Since(began))
	s.log.Debug("balanced routes",
		logging.Int("passes", report.Passes),
		logging.Int("rerouted", report.Rerouted),
		logging.Latency(time.Since(began)),
	)
	return results, report, nil
}

// Reroute suggests incident-aware routes for every moving vehicle and
// applies them. It returns how many vehicles took a new route.
func (s *Simulator) Reroute(ctx context.Context) (int, error) {
	results, err := s.SuggestRoutes(ctx, nil)
	if err != nil {
		return 0, err
	}
	return countTrue(s.ApplyRoutes(routing.Paths(results))), nil
}

// Rebalance balances every moving vehicle and applies the result. Routes
// are validated again on apply, so a tick landing in between only causes
// stale routes to be rejected.
func (s *Simulator) Rebalance(ctx context.Context) (routing.BalanceReport, int, error) {
	results, report, err := s.BalanceRoutes(ctx, nil)
	if err != nil {
		return routing.BalanceReport{}, 0, err
	}
	return report, countTrue(s.ApplyRoutes(routing.Paths(results))), nil
}

// OptimizeLights proposes a timing for every light from the current
// density without applying it.
func (s *Simulator) OptimizeLights() map[graph.NodeID]signal.Timing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return optimizer.Optimize(s.graph, s.density, s.cfg.OptimizerOptions())
}

// RetimeLights optimizes and applies light timings in one step.
func (s *Simulator) RetimeLights() int {
	return s.ApplyLightTimings(s.OptimizeLights())
}

// trips must be called with at least the read lock held.
func (s *Simulator) trips() map[routing.VehicleID]routing.Trip {
	out := make(map[routing.VehicleID]routing.Trip, len(s.vehicles))
	for _, v := range s.vehicles {
		if v.Arrived() {
			continue
		}
		out[v.ID] = routing.Trip{Position: v.Position, Destination: v.Destination}
	}
	return out
}

func countFound(results map[routing.VehicleID]routing.RouteResult) int {
	n := 0
	for _, r := range results {
		if r.Found() {
			n++
		}
	}
	return n
}

func countTrue(m map[vehicle.ID]bool) int {
	n := 0
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return n
}
