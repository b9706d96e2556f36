// Package vehicle defines the simulated vehicle and its movement along a
// route of intersections.
package vehicle

import (
	"math"
	"slices"

	"github.com/cxd309/traffic-engine/internal/graph"
)

// ID is a unique string identifier for a vehicle.
type ID = string

// Kind is the class of a vehicle.
type Kind string

const (
	KindCar   Kind = "car"
	KindBus   Kind = "bus"
	KindTruck Kind = "truck"
)

// Kinds lists every vehicle kind in a fixed order, for random selection.
var Kinds = []Kind{KindCar, KindBus, KindTruck}

// Status describes whether a vehicle is still travelling.
type Status string

const (
	StatusMoving  Status = "moving"
	StatusArrived Status = "arrived"
)

// Vehicle is a simulated vehicle. Progress is a fractional index into Route:
// the vehicle is on the road Route[⌊Progress⌋] → Route[⌊Progress⌋+1] and
// always satisfies 0 ≤ Progress ≤ len(Route)-1.
type Vehicle struct {
	ID          ID             `json:"id"`
	Position    graph.NodeID   `json:"current_position"`
	Destination graph.NodeID   `json:"destination"`
	Route       []graph.NodeID `json:"route"`
	Progress    float64        `json:"progress"`
	Speed       float64        `json:"speed"` // base factor, route nodes per tick
	Kind        Kind           `json:"type"`
	Status      Status         `json:"status"`
}

// New creates a moving vehicle at the start of route.
func New(id ID, position, destination graph.NodeID, route []graph.NodeID, speed float64, kind Kind) *Vehicle {
	return &Vehicle{
		ID:          id,
		Position:    position,
		Destination: destination,
		Route:       slices.Clone(route),
		Speed:       speed,
		Kind:        kind,
		Status:      StatusMoving,
	}
}

// Arrived reports whether the vehicle has reached its destination.
func (v *Vehicle) Arrived() bool { return v.Status == StatusArrived }

// HasRoute reports whether the route has at least one road to travel.
func (v *Vehicle) HasRoute() bool { return len(v.Route) >= 2 }

// index returns the route index of the node the vehicle last passed.
func (v *Vehicle) index() int { return int(math.Floor(v.Progress)) }

// CurrentRoad returns the endpoints of the road being travelled. ok is false
// when the vehicle has no road ahead.
func (v *Vehicle) CurrentRoad() (from, to graph.NodeID, ok bool) {
	i := v.index()
	if !v.HasRoute() || i < 0 || i >= len(v.Route)-1 {
		return "", "", false
	}
	return v.Route[i], v.Route[i+1], true
}

// Advance moves the vehicle delta nodes along its route, capped at the last
// node. Position follows the last node passed. Returns true if the vehicle
// arrived during this call.
func (v *Vehicle) Advance(delta float64) bool {
	if v.Arrived() || !v.HasRoute() || delta <= 0 {
		return false
	}
	last := float64(len(v.Route) - 1)
	v.Progress = math.Min(v.Progress+delta, last)
	v.Position = v.Route[v.index()]
	if v.Progress >= last {
		v.Arrive()
		return true
	}
	return false
}

// Arrive marks the vehicle as arrived at its destination.
func (v *Vehicle) Arrive() {
	v.Status = StatusArrived
	v.Position = v.Destination
	if v.HasRoute() {
		v.Progress = float64(len(v.Route) - 1)
	}
}

// Reroute replaces the route with one starting at the current position.
func (v *Vehicle) Reroute(route []graph.NodeID) {
	v.Route = slices.Clone(route)
	v.Progress = 0
}

// AssignRoute installs route if it continues from the current position to
// the destination. Progress becomes the position's index in the new route.
// Arrived vehicles and routes that do not pass the current position or end
// elsewhere are rejected.
func (v *Vehicle) AssignRoute(route []graph.NodeID) bool {
	if v.Arrived() || len(route) == 0 || route[len(route)-1] != v.Destination {
		return false
	}
	idx := slices.Index(route, v.Position)
	if idx < 0 {
		return false
	}
	v.Route = slices.Clone(route)
	v.Progress = float64(idx)
	if v.Progress >= float64(len(v.Route)-1) {
		v.Arrive()
	}
	return true
}

// Clone returns a deep copy.
func (v *Vehicle) Clone() Vehicle {
	c := *v
	c.Route = slices.Clone(v.Route)
	return c
}

// Log is a point-in-time snapshot of a vehicle, without its route.
type Log struct {
	ID       ID           `json:"id"`
	Position graph.NodeID `json:"current_position"`
	Progress float64      `json:"progress"`
	Status   Status       `json:"status"`
}

// GetLog returns a point-in-time snapshot of the vehicle state.
func (v *Vehicle) GetLog() Log {
	return Log{
		ID:       v.ID,
		Position: v.Position,
		Progress: v.Progress,
		Status:   v.Status,
	}
}
