package engine

import (
	"encoding/json"

	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/incident"
	"github.com/cxd309/traffic-engine/internal/signal"
	"github.com/cxd309/traffic-engine/internal/vehicle"
)

// SimulationMeta holds the identity and scheduling parameters for a batch run.
// Zero values fall back to the configuration.
type SimulationMeta struct {
	SimulationID  string `json:"simulation_id"`
	Ticks         int    `json:"ticks,omitempty"`
	Seed          *int64 `json:"seed,omitempty"`
	Vehicles      *int   `json:"vehicles,omitempty"`
	RerouteEvery  int    `json:"reroute_every,omitempty"`  // ticks between balancer runs
	OptimizeEvery int    `json:"optimize_every,omitempty"` // ticks between light retimings
}

// IncidentRequest schedules a manual incident before the given tick runs.
type IncidentRequest struct {
	Tick     int          `json:"tick"`
	Location graph.NodeID `json:"location"`
	Kind     string       `json:"type,omitempty"`
	Duration int          `json:"duration,omitempty"`
}

// SimulationInput is the JSON-serialisable input to a batch run. When
// GraphData is absent a grid is generated from Grid, or from the
// configuration when Grid is also absent.
type SimulationInput struct {
	Meta       SimulationMeta    `json:"simulation_meta"`
	GraphData  *graph.GraphData  `json:"graph_data,omitempty"`
	Grid       *graph.GridSpec   `json:"grid,omitempty"`
	SpeedModel json.RawMessage   `json:"speed_model,omitempty"`
	Incidents  []IncidentRequest `json:"incidents,omitempty"`
}

// SimulationLogRow is the state of the simulation after a single tick.
type SimulationLogRow struct {
	Tick          int           `json:"tick"`
	Moving        int           `json:"moving"`
	Arrived       int           `json:"arrived"`
	Incidents     int           `json:"active_incidents"`
	MeanDensity   float64       `json:"mean_density"`
	LightsFlipped int           `json:"lights_flipped"`
	Rerouted      int           `json:"rerouted,omitempty"`
	Retimed       int           `json:"retimed,omitempty"`
	VehicleLogs   []vehicle.Log `json:"vehicle_logs"`
}

// SimulationLog is the complete output of a batch run.
type SimulationLog struct {
	Meta   SimulationMeta     `json:"simulation_meta"`
	Output []SimulationLogRow `json:"output"`
	Final  Snapshot           `json:"final"`
}

// Snapshot is a consistent copy of the live simulation state.
type Snapshot struct {
	Tick      int                           `json:"tick"`
	Vehicles  []vehicle.Vehicle             `json:"vehicles"`
	Density   map[graph.EdgeID]float64      `json:"density"`
	Incidents []incident.Incident           `json:"incidents"`
	Lights    map[graph.NodeID]signal.Light `json:"lights"`
}

// TickReport summarises what happened during one Step.
type TickReport struct {
	Tick          int                `json:"tick"`
	LightsFlipped int                `json:"lights_flipped"`
	Arrived       int                `json:"arrived"`  // vehicles that arrived this tick
	Routed        int                `json:"routed"`   // vehicles given a route by BFS this tick
	Expired       int                `json:"expired"`  // incidents that expired this tick
	Injected      *incident.Incident `json:"injected,omitempty"`
}

// RoadLoad pairs a road with its current density.
type RoadLoad struct {
	RoadID  graph.EdgeID `json:"road_id"`
	Density float64      `json:"density"`
}

// Stats aggregates the live state for dashboards.
type Stats struct {
	Tick        int        `json:"tick"`
	Vehicles    int        `json:"vehicles"`
	Moving      int        `json:"moving"`
	Arrived     int        `json:"arrived"`
	Incidents   int        `json:"active_incidents"`
	MeanDensity float64    `json:"mean_density"`
	Congested   []RoadLoad `json:"congested"` // densest roads first
}
