package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/cxd309/traffic-engine/internal/config"
	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/kinematics"
	"github.com/cxd309/traffic-engine/internal/logging"
)

// RunInput executes a batch run of input over cfg and returns the log. The
// metadata overrides the configured seed, fleet size, tick count and
// schedules. Options are applied after the ones RunInput derives from input.
func RunInput(ctx context.Context, input SimulationInput, cfg config.Config, opts ...Option) (SimulationLog, error) {
	meta := input.Meta
	if meta.Seed != nil {
		cfg.Simulation.Seed = *meta.Seed
	}
	if meta.Vehicles != nil {
		cfg.Simulation.Vehicles = *meta.Vehicles
	}
	if meta.Ticks > 0 {
		cfg.Simulation.Ticks = meta.Ticks
	}
	if meta.RerouteEvery > 0 {
		cfg.Simulation.RerouteEvery = meta.RerouteEvery
	}
	if meta.OptimizeEvery > 0 {
		cfg.Simulation.OptimizeEvery = meta.OptimizeEvery
	}
	meta.Ticks = cfg.Simulation.Ticks
	meta.RerouteEvery = cfg.Simulation.RerouteEvery
	meta.OptimizeEvery = cfg.Simulation.OptimizeEvery
	seed := cfg.Simulation.Seed
	meta.Seed = &seed

	rng := rand.New(rand.NewSource(seed))
	if meta.SimulationID == "" {
		meta.SimulationID = newID(rng)
	}

	g, err := buildGraph(input, cfg, rng)
	if err != nil {
		return SimulationLog{}, err
	}

	derived := []Option{WithRand(rng)}
	if len(input.SpeedModel) > 0 {
		m, err := kinematics.Decode(input.SpeedModel)
		if err != nil {
			return SimulationLog{}, fmt.Errorf("speed model: %w", err)
		}
		derived = append(derived, WithSpeedModel(m))
	}
	sim, err := New(g, cfg, append(derived, opts...)...)
	if err != nil {
		return SimulationLog{}, err
	}
	sim.log.Info("batch run started",
		logging.String("simulation_id", meta.SimulationID),
		logging.Int("ticks", meta.Ticks),
	)

	schedule := make(map[int][]IncidentRequest)
	for _, req := range input.Incidents {
		schedule[req.Tick] = append(schedule[req.Tick], req)
	}

	simLog := SimulationLog{Meta: meta, Output: make([]SimulationLogRow, 0, meta.Ticks)}
	for t := 1; t <= meta.Ticks; t++ {
		if err := ctx.Err(); err != nil {
			return SimulationLog{}, fmt.Errorf("at tick %d: %w", t, err)
		}
		for _, req := range schedule[t] {
			if !sim.AddIncident(req.Location, req.Kind, req.Duration) {
				return SimulationLog{}, fmt.Errorf("at tick %d: incident at %q rejected", t, req.Location)
			}
		}

		report := sim.Step()
		row := SimulationLogRow{Tick: report.Tick, LightsFlipped: report.LightsFlipped}
		if every := meta.RerouteEvery; every > 0 && t%every == 0 {
			_, n, err := sim.Rebalance(ctx)
			if err != nil {
				return SimulationLog{}, fmt.Errorf("at tick %d: rebalancing: %w", t, err)
			}
			row.Rerouted = n
		}
		if every := meta.OptimizeEvery; every > 0 && t%every == 0 {
			row.Retimed = sim.RetimeLights()
		}

		sim.mu.RLock()
		row.Moving, row.Arrived = sim.countStatus()
		row.Incidents = len(sim.incidents)
		row.MeanDensity = sim.meanDensity()
		row.VehicleLogs = sim.logs()
		sim.mu.RUnlock()
		simLog.Output = append(simLog.Output, row)
	}

	simLog.Final = sim.Snapshot()
	return simLog, nil
}

// buildGraph uses the supplied network, or a grid when none is given.
func buildGraph(input SimulationInput, cfg config.Config, rng *rand.Rand) (*graph.Graph, error) {
	var data graph.GraphData
	switch {
	case input.GraphData != nil:
		data = *input.GraphData
	case input.Grid != nil:
		data = graph.Grid(*input.Grid, rng)
	default:
		data = graph.Grid(cfg.GridSpec(), rng)
	}
	g, err := graph.NewGraph(data)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	return g, nil
}

// RunJSON is the entry point shared by the CLI and WASM targets. It accepts
// a JSON-encoded SimulationInput, runs it over the default configuration, and
// returns a JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	return RunJSONWithConfig(jsonInput, config.Default())
}

// RunJSONWithConfig is RunJSON over cfg.
func RunJSONWithConfig(jsonInput string, cfg config.Config) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	simLog, err := RunInput(context.Background(), input, cfg)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
