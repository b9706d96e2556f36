// Package engine implements the traffic simulation loop.
//
// The simulation advances in discrete ticks. Each tick runs five phases in
// order:
//
//  1. Lights - every traffic light counts down and flips when its green
//     time has elapsed.
//
//  2. Movement - every moving vehicle advances along its route at its base
//     speed, slowed by a red light at the next intersection, incidents on
//     its current road, and the road's density.
//
//  3. Density - every road decays toward empty, then gains load from the
//     vehicles currently travelling it.
//
//  4. Incidents - remaining durations count down and expired incidents are
//     removed.
//
//  5. Injection - with a fixed probability a random incident is created on
//     a random road.
//
// A Simulator is safe for concurrent use. Commands take the write lock and
// queries take the read lock, so a route query never observes a tick half
// applied.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cxd309/traffic-engine/internal/config"
	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/incident"
	"github.com/cxd309/traffic-engine/internal/kinematics"
	"github.com/cxd309/traffic-engine/internal/logging"
	"github.com/cxd309/traffic-engine/internal/metrics"
	"github.com/cxd309/traffic-engine/internal/routing"
	"github.com/cxd309/traffic-engine/internal/vehicle"
)

// ErrNilGraph is returned by New when no road network is supplied.
var ErrNilGraph = errors.New("nil graph")

// Simulator owns the road network and all live simulation state.
type Simulator struct {
	mu sync.RWMutex

	graph   *graph.Graph
	cfg     config.Config
	planner *routing.Planner
	speed   kinematics.SpeedModel
	rng     *rand.Rand
	log     logging.Logger
	metrics *metrics.Registry

	vehicles  []*vehicle.Vehicle // creation order
	byID      map[vehicle.ID]*vehicle.Vehicle
	density   map[graph.EdgeID]float64
	incidents []incident.Incident
	tick      int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records simulation and routing metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Simulator) { s.metrics = r }
}

// WithRand sets the random source. The default is seeded from the
// configuration.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSpeedModel overrides the configured speed model.
func WithSpeedModel(m kinematics.SpeedModel) Option {
	return func(s *Simulator) {
		if m != nil {
			s.speed = m
		}
	}
}

// New creates a simulator over g and populates it with the configured number
// of vehicles and a random initial density on every road.
func New(g *graph.Graph, cfg config.Config, opts ...Option) (*Simulator, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Simulator{
		graph:   g,
		cfg:     cfg,
		planner: routing.NewPlanner(g, cfg.RoutingOptions()),
		speed:   cfg.SpeedModel(),
		log:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(cfg.Simulation.Seed))
	}
	s.log = s.log.With(logging.Component("engine"))

	s.populate()
	s.log.Info("simulator created",
		logging.Int("nodes", g.NodeCount()),
		logging.Int("roads", g.EdgeCount()),
		logging.Int("lights", g.LightCount()),
		logging.Int("vehicles", len(s.vehicles)),
		logging.String("speed_model", s.speed.Name()),
	)
	return s, nil
}

// Reset discards all vehicles, incidents and density and repopulates the
// network with a fresh fleet of the configured size. The topology and the
// light states are kept.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.populate()
	s.log.Info("simulation reset", logging.Int("vehicles", len(s.vehicles)))
}

// populate must be called with the write lock held.
func (s *Simulator) populate() {
	s.tick = 0
	s.incidents = nil
	s.vehicles = nil
	s.byID = make(map[vehicle.ID]*vehicle.Vehicle)
	s.spawnVehicles(s.cfg.Simulation.Vehicles)
	s.seedDensity()
}

// spawnVehicles creates n vehicles between distinct random intersections. A
// network with fewer than two intersections gets no vehicles.
func (s *Simulator) spawnVehicles(n int) {
	nodes := s.graph.Nodes()
	if len(nodes) < 2 {
		return
	}
	mv := s.cfg.Movement
	for range n {
		id := newID(s.rng)
		start := s.rng.Intn(len(nodes))
		end := s.rng.Intn(len(nodes) - 1)
		if end >= start {
			end++
		}
		speed := mv.SpeedMin + s.rng.Float64()*(mv.SpeedMax-mv.SpeedMin)
		kind := vehicle.Kinds[s.rng.Intn(len(vehicle.Kinds))]

		from, to := nodes[start].ID, nodes[end].ID
		route, err := s.graph.BFS(from, to)
		if err != nil {
			// Stays without a route; movement retries BFS every tick.
			route = nil
		}
		v := vehicle.New(id, from, to, route, speed, kind)
		s.vehicles = append(s.vehicles, v)
		s.byID[id] = v
	}
}

// seedDensity assigns every road a uniform integer density in
// [0, InitialMax].
func (s *Simulator) seedDensity() {
	edges := s.graph.Edges()
	s.density = make(map[graph.EdgeID]float64, len(edges))
	for _, e := range edges {
		s.density[e.ID] = float64(s.rng.Intn(s.cfg.Density.InitialMax + 1))
	}
}

// Step advances the simulation by one tick.
func (s *Simulator) Step() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.tick++
	report := TickReport{Tick: s.tick}

	report.LightsFlipped = s.graph.StepLights()
	report.Arrived, report.Routed = s.moveVehicles()
	s.updateDensity()
	report.Expired = s.expireIncidents()
	if s.rng.Float64() < s.cfg.Incidents.Probability {
		if inc, ok := s.injectIncident(); ok {
			report.Injected = &inc
		}
	}

	moving, arrived := s.countStatus()
	mean := s.meanDensity()
	s.metrics.RecordTick(time.Since(start), moving, arrived, len(s.incidents), mean)
	s.log.Debug("tick",
		logging.Tick(s.tick),
		logging.Int("moving", moving),
		logging.Int("arrived", arrived),
		logging.Int("incidents", len(s.incidents)),
		logging.Float64("mean_density", mean),
		logging.Latency(time.Since(start)),
	)
	return report
}

// Run steps the simulation n times, stopping early if ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, n int) error {
	for range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	return nil
}

// moveVehicles runs the movement phase and returns how many vehicles arrived
// and how many were given a fresh route.
func (s *Simulator) moveVehicles() (arrived, routed int) {
	for _, v := range s.vehicles {
		if v.Arrived() {
			continue
		}
		if !v.HasRoute() {
			if v.Position == v.Destination {
				v.Arrive()
				arrived++
				continue
			}
			if route, err := s.graph.BFS(v.Position, v.Destination); err == nil {
				v.Reroute(route)
				routed++
			}
			continue
		}

		from, to, ok := v.CurrentRoad()
		if !ok {
			v.Arrive()
			arrived++
			continue
		}
		if v.Advance(s.speed.Speed(v.Speed, s.conditions(from, to))) {
			arrived++
		}
	}
	return arrived, routed
}

// conditions gathers what slows a vehicle travelling from → to.
func (s *Simulator) conditions(from, to graph.NodeID) kinematics.Conditions {
	var c kinematics.Conditions
	if e, err := s.graph.GetEdge(from, to); err == nil {
		c.Severities = incident.OnRoad(s.incidents, e.ID)
		c.Density = s.density[e.ID]
	}
	if light, ok := s.graph.Light(to); ok {
		if phase, ok := s.graph.Direction(from, to); ok {
			c.RedLight = light.IsRed(phase)
		}
	}
	return c
}

// updateDensity decays every road, then adds PerVehicle for each vehicle
// travelling it. The increment and the result are both capped at Max.
func (s *Simulator) updateDensity() {
	d := s.cfg.Density
	for id, v := range s.density {
		s.density[id] = v * d.Decay
	}

	counts := make(map[graph.EdgeID]int)
	for _, v := range s.vehicles {
		if v.Arrived() {
			continue
		}
		from, to, ok := v.CurrentRoad()
		if !ok {
			continue
		}
		if e, err := s.graph.GetEdge(from, to); err == nil {
			counts[e.ID]++
		}
	}

	ceiling := float64(d.Max)
	for id, n := range counts {
		s.density[id] = math.Min(ceiling, s.density[id]+math.Min(ceiling, float64(n)*d.PerVehicle))
	}
}

// expireIncidents counts down incident durations and drops expired ones.
func (s *Simulator) expireIncidents() int {
	active, expired := incident.Advance(s.incidents)
	s.incidents = active
	for _, inc := range expired {
		s.log.Info("incident expired",
			logging.IncidentID(inc.ID),
			logging.RoadID(inc.RoadID),
			logging.Tick(s.tick),
		)
	}
	s.metrics.RecordIncidentsExpired(len(expired))
	return len(expired)
}

// injectIncident creates a random incident on a random road.
func (s *Simulator) injectIncident() (incident.Incident, bool) {
	edges := s.graph.Edges()
	if len(edges) == 0 {
		return incident.Incident{}, false
	}
	cfg := s.cfg.Incidents
	e := edges[s.rng.Intn(len(edges))]
	inc := incident.Incident{
		ID:       newID(s.rng),
		RoadID:   e.ID,
		Location: e.U,
		Kind:     incident.Kinds[s.rng.Intn(len(incident.Kinds))],
		Severity: cfg.SeverityMin + s.rng.Float64()*(cfg.SeverityMax-cfg.SeverityMin),
		Duration: cfg.DurationMin + s.rng.Intn(cfg.DurationMax-cfg.DurationMin+1),
	}
	s.record(inc, metrics.SourceRandom)
	return inc, true
}

// record stores a new incident and reports it.
func (s *Simulator) record(inc incident.Incident, source string) {
	s.incidents = append(s.incidents, inc)
	s.metrics.RecordIncidentCreated(source, string(inc.Kind))
	s.log.Info("incident created",
		logging.IncidentID(inc.ID),
		logging.RoadID(inc.RoadID),
		logging.NodeID(inc.Location),
		logging.String("type", string(inc.Kind)),
		logging.Float64("severity", inc.Severity),
		logging.Int("duration", inc.Duration),
		logging.String("source", source),
	)
}
