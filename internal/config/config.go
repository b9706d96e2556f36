// Package config loads the simulation policy from YAML.
//
// Every constant that shapes the simulation lives here: vehicle counts,
// density dynamics, slowdown factors, incident ranges, routing and balancer
// policy, and light timing bounds. Default reproduces the stock behaviour; a
// YAML file only needs to name the values it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/kinematics"
	"github.com/cxd309/traffic-engine/internal/optimizer"
	"github.com/cxd309/traffic-engine/internal/routing"
)

// validate is a singleton validator instance
var validate = validator.New()

// Config is the full simulation configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Grid       GridConfig       `yaml:"grid"`
	Density    DensityConfig    `yaml:"density"`
	Movement   MovementConfig   `yaml:"movement"`
	Incidents  IncidentConfig   `yaml:"incidents"`
	Routing    RoutingConfig    `yaml:"routing"`
	Balancer   BalancerConfig   `yaml:"balancer"`
	Lights     LightsConfig     `yaml:"lights"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type SimulationConfig struct {
	Vehicles      int   `yaml:"vehicles" validate:"gte=0"`
	Seed          int64 `yaml:"seed"`
	Ticks         int   `yaml:"ticks" validate:"gte=0"`
	RerouteEvery  int   `yaml:"reroute_every" validate:"gte=0"`  // ticks between balancer runs; 0 disables
	OptimizeEvery int   `yaml:"optimize_every" validate:"gte=0"` // ticks between light retimings; 0 disables
}

// GridConfig describes the generated network used when no graph is supplied.
type GridConfig struct {
	Cols      int     `yaml:"cols" validate:"gte=1"`
	Rows      int     `yaml:"rows" validate:"gte=1"`
	Spacing   float64 `yaml:"spacing" validate:"gt=0"`
	GreenTime int     `yaml:"green_time" validate:"gt=0"`
	Weight    float64 `yaml:"weight" validate:"gte=0"`
	Capacity  float64 `yaml:"capacity" validate:"gte=0"`
}

type DensityConfig struct {
	Decay      float64 `yaml:"decay" validate:"gte=0,lte=1"`
	PerVehicle float64 `yaml:"per_vehicle" validate:"gte=0"`
	InitialMax int     `yaml:"initial_max" validate:"gte=0,ltefield=Max"`
	Max        int     `yaml:"max" validate:"gt=0"`
}

// MovementConfig selects the speed model. Base speeds stay at or below one
// node per tick so no intersection is skipped.
type MovementConfig struct {
	Model          string  `yaml:"model" validate:"oneof=attenuated free_flow"`
	RedLightFactor float64 `yaml:"red_light_factor" validate:"gte=0,lte=1"`
	DensityFloor   float64 `yaml:"density_floor" validate:"gte=0,lte=1"`
	SpeedMin       float64 `yaml:"speed_min" validate:"gt=0,lte=1"`
	SpeedMax       float64 `yaml:"speed_max" validate:"gtefield=SpeedMin,lte=1"`
}

type IncidentConfig struct {
	Probability       float64 `yaml:"probability" validate:"gte=0,lte=1"`
	SeverityMin       float64 `yaml:"severity_min" validate:"gt=0,lt=1"`
	SeverityMax       float64 `yaml:"severity_max" validate:"gtefield=SeverityMin,lt=1"`
	DurationMin       int     `yaml:"duration_min" validate:"gt=0"`
	DurationMax       int     `yaml:"duration_max" validate:"gtefield=DurationMin"`
	ManualSeverityMin float64 `yaml:"manual_severity_min" validate:"gt=0,lt=1"`
	ManualSeverityMax float64 `yaml:"manual_severity_max" validate:"gtefield=ManualSeverityMin,lt=1"`
	DefaultDuration   int     `yaml:"default_duration" validate:"gt=0"`
}

type RoutingConfig struct {
	DensityDivisor      float64 `yaml:"density_divisor" validate:"gt=0"`
	Alternatives        int     `yaml:"alternatives" validate:"gt=0"`
	SevereIncident      float64 `yaml:"severe_incident" validate:"gte=0,lte=1"`
	IncidentSeedDensity float64 `yaml:"incident_seed_density" validate:"gte=0"`
	Parallelism         int     `yaml:"parallelism" validate:"gte=0"`
}

type BalancerConfig struct {
	Threshold    int `yaml:"threshold" validate:"gte=0"`
	Alternatives int `yaml:"alternatives" validate:"gt=0"`
	MaxPasses    int `yaml:"max_passes" validate:"gte=1,lte=10"`
}

type LightsConfig struct {
	Cycle    int `yaml:"cycle" validate:"gt=0"`
	MinGreen int `yaml:"min_green" validate:"gt=0"`
	MaxGreen int `yaml:"max_green" validate:"gtefield=MinGreen"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Simulation: SimulationConfig{Vehicles: 50, Seed: 1, Ticks: 100},
		Grid: GridConfig{
			Cols: 5, Rows: 5, Spacing: 100, GreenTime: 30, Weight: 1, Capacity: 100,
		},
		Density: DensityConfig{Decay: 0.95, PerVehicle: 5, InitialMax: 50, Max: 100},
		Movement: MovementConfig{
			Model:          kinematics.AttenuatedModelName,
			RedLightFactor: 0.2,
			DensityFloor:   0.1,
			SpeedMin:       0.5,
			SpeedMax:       1.0,
		},
		Incidents: IncidentConfig{
			Probability:       0.05,
			SeverityMin:       0.3,
			SeverityMax:       0.9,
			DurationMin:       5,
			DurationMax:       20,
			ManualSeverityMin: 0.5,
			ManualSeverityMax: 0.9,
			DefaultDuration:   10,
		},
		Routing: RoutingConfig{
			DensityDivisor:      20,
			Alternatives:        3,
			SevereIncident:      0.5,
			IncidentSeedDensity: 50,
		},
		Balancer: BalancerConfig{Threshold: 2, Alternatives: 5, MaxPasses: 1},
		Lights:   LightsConfig{Cycle: 60, MinGreen: 15, MaxGreen: 60},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	return formatValidationError(validate.Struct(c))
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	e := validationErrs[0]
	field := e.Namespace()
	switch e.Tag() {
	case "gt", "gte", "lt", "lte", "gtefield", "ltefield":
		return fmt.Errorf("%s: must be %s %s, got %v", field, e.Tag(), e.Param(), e.Value())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s], got %v", field, e.Param(), e.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}

// RoutingOptions returns the routing and balancer policy.
func (c Config) RoutingOptions() routing.Options {
	return routing.Options{
		DensityDivisor:      c.Routing.DensityDivisor,
		Alternatives:        c.Routing.Alternatives,
		SevereIncident:      c.Routing.SevereIncident,
		IncidentSeedDensity: c.Routing.IncidentSeedDensity,
		CongestionThreshold: c.Balancer.Threshold,
		BalanceAlternatives: c.Balancer.Alternatives,
		MaxPasses:           c.Balancer.MaxPasses,
		Parallelism:         c.Routing.Parallelism,
	}
}

// OptimizerOptions returns the light timing bounds.
func (c Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{Cycle: c.Lights.Cycle, MinGreen: c.Lights.MinGreen, MaxGreen: c.Lights.MaxGreen}
}

// SpeedModel builds the configured speed model.
func (c Config) SpeedModel() kinematics.SpeedModel {
	if c.Movement.Model == kinematics.FreeFlowModelName {
		return kinematics.FreeFlow{}
	}
	return kinematics.Attenuated{
		RedLightFactor: c.Movement.RedLightFactor,
		DensityFloor:   c.Movement.DensityFloor,
		MaxDensity:     float64(c.Density.Max),
	}
}

// GridSpec returns the generated network layout.
func (c Config) GridSpec() graph.GridSpec {
	return graph.GridSpec{
		Cols:      c.Grid.Cols,
		Rows:      c.Grid.Rows,
		Spacing:   c.Grid.Spacing,
		GreenTime: c.Grid.GreenTime,
		Weight:    c.Grid.Weight,
		Capacity:  c.Grid.Capacity,
	}
}
