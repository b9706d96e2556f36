package kinematics

import (
	"fmt"
	"math"
)

// AttenuatedModelName is the JSON discriminator string for the Attenuated model.
const AttenuatedModelName = "attenuated"

// Attenuated implements SpeedModel by multiplying the base speed by one
// factor per hazard: RedLightFactor when approaching a red light,
// (1 - severity) for every incident on the road, and
// max(DensityFloor, 1 - density/MaxDensity) for congestion.
//
// JSON discriminator: "model": "attenuated"
type Attenuated struct {
	RedLightFactor float64 `json:"red_light_factor"`
	DensityFloor   float64 `json:"density_floor"`
	MaxDensity     float64 `json:"max_density"`
}

// DefaultAttenuated returns the stock slowdowns: 0.2 at red lights and never
// below 10% of base speed from congestion.
func DefaultAttenuated() Attenuated {
	return Attenuated{RedLightFactor: 0.2, DensityFloor: 0.1, MaxDensity: 100}
}

func (Attenuated) Name() string { return AttenuatedModelName }

// Validate checks that every factor is a fraction and the density scale is positive.
func (a Attenuated) Validate() error {
	if a.RedLightFactor < 0 || a.RedLightFactor > 1 {
		return fmt.Errorf("red light factor %v outside [0, 1]", a.RedLightFactor)
	}
	if a.DensityFloor < 0 || a.DensityFloor > 1 {
		return fmt.Errorf("density floor %v outside [0, 1]", a.DensityFloor)
	}
	if a.MaxDensity <= 0 {
		return fmt.Errorf("max density %v must be positive", a.MaxDensity)
	}
	return nil
}

func (a Attenuated) Speed(base float64, c Conditions) float64 {
	speed := base
	if c.RedLight {
		speed *= a.RedLightFactor
	}
	for _, s := range c.Severities {
		speed *= 1 - s
	}
	speed *= math.Max(a.DensityFloor, 1-c.Density/a.MaxDensity)
	return math.Max(0, speed)
}

// FreeFlowModelName is the JSON discriminator string for the FreeFlow model.
const FreeFlowModelName = "free_flow"

// FreeFlow ignores road conditions. It is useful as a baseline.
//
// JSON discriminator: "model": "free_flow"
type FreeFlow struct{}

func (FreeFlow) Name() string { return FreeFlowModelName }

func (FreeFlow) Speed(base float64, _ Conditions) float64 { return math.Max(0, base) }
