package engine

import (
	"cmp"
	"maps"
	"slices"

	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/incident"
	"github.com/cxd309/traffic-engine/internal/signal"
	"github.com/cxd309/traffic-engine/internal/vehicle"
)

// congestedRoads is how many roads Stats lists.
const congestedRoads = 5

// Graph returns the road network. Callers must not mutate it.
func (s *Simulator) Graph() *graph.Graph { return s.graph }

// Tick returns the number of ticks run since creation or the last Reset.
func (s *Simulator) Tick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Vehicles returns copies of every vehicle in creation order.
func (s *Simulator) Vehicles() []vehicle.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicleCopies()
}

// Vehicle returns a copy of the vehicle with the given ID.
func (s *Simulator) Vehicle(id vehicle.ID) (vehicle.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byID[id]
	if !ok {
		return vehicle.Vehicle{}, false
	}
	return v.Clone(), true
}

// Density returns a copy of the density of every road.
func (s *Simulator) Density() map[graph.EdgeID]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.density)
}

// Incidents returns a copy of the active incidents.
func (s *Simulator) Incidents() []incident.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.incidents)
}

// Nodes returns every intersection in the network.
func (s *Simulator) Nodes() []graph.Node { return s.graph.Nodes() }

// Edges returns every road in the network.
func (s *Simulator) Edges() []graph.Edge { return s.graph.Edges() }

// Lights returns a copy of every light state.
func (s *Simulator) Lights() map[graph.NodeID]signal.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Lights()
}

// Snapshot returns a consistent copy of the live state.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Tick:      s.tick,
		Vehicles:  s.vehicleCopies(),
		Density:   maps.Clone(s.density),
		Incidents: slices.Clone(s.incidents),
		Lights:    s.graph.Lights(),
	}
}

// Stats aggregates vehicle counts, mean density and the most congested roads.
func (s *Simulator) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	moving, arrived := s.countStatus()
	loads := make([]RoadLoad, 0, len(s.density))
	for id, d := range s.density {
		loads = append(loads, RoadLoad{RoadID: id, Density: d})
	}
	slices.SortFunc(loads, func(a, b RoadLoad) int {
		if c := cmp.Compare(b.Density, a.Density); c != 0 {
			return c
		}
		return cmp.Compare(a.RoadID, b.RoadID)
	})
	if len(loads) > congestedRoads {
		loads = loads[:congestedRoads]
	}

	return Stats{
		Tick:        s.tick,
		Vehicles:    len(s.vehicles),
		Moving:      moving,
		Arrived:     arrived,
		Incidents:   len(s.incidents),
		MeanDensity: s.meanDensity(),
		Congested:   loads,
	}
}

// logs snapshots every vehicle without its route.
func (s *Simulator) logs() []vehicle.Log {
	out := make([]vehicle.Log, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = v.GetLog()
	}
	return out
}

func (s *Simulator) vehicleCopies() []vehicle.Vehicle {
	out := make([]vehicle.Vehicle, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = v.Clone()
	}
	return out
}

func (s *Simulator) countStatus() (moving, arrived int) {
	for _, v := range s.vehicles {
		if v.Arrived() {
			arrived++
		} else {
			moving++
		}
	}
	return moving, arrived
}

func (s *Simulator) meanDensity() float64 {
	if len(s.density) == 0 {
		return 0
	}
	// Summed in road order so repeated runs agree to the last bit.
	var sum float64
	for _, e := range s.graph.Edges() {
		sum += s.density[e.ID]
	}
	return sum / float64(len(s.density))
}
