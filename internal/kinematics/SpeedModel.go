// Package kinematics defines the SpeedModel interface that turns a vehicle's
// base speed and its surroundings into route progress per tick, along with
// built-in implementations.
//
// Adding a new model requires only implementing SpeedModel and registering it
// in Decode; the simulation engine itself never needs to change.
package kinematics

import (
	"encoding/json"
	"fmt"
)

// Conditions describe the road a vehicle is on during one tick.
type Conditions struct {
	RedLight   bool      // the light at the end of the road is red for this direction
	Severities []float64 // severities of incidents on the road
	Density    float64   // congestion of the road, 0-100
}

// SpeedModel is the contract every speed implementation must satisfy.
// Speeds are route nodes per tick.
type SpeedModel interface {
	// Name returns the JSON discriminator of the model.
	Name() string

	// Speed returns the effective progress for one tick given the vehicle's
	// base speed factor. The result is never negative.
	Speed(base float64, c Conditions) float64
}

// modelDisc is the minimum JSON structure needed to read the model discriminator.
type modelDisc struct {
	Model string `json:"model"`
}

// Decode reads a speed model from JSON. The object must contain a "model"
// discriminator key; the rest of it is forwarded to that implementation.
//
// Supported models:
//   - "attenuated": red-light, incident and density slowdowns.
//   - "free_flow": base speed regardless of conditions.
func Decode(data []byte) (SpeedModel, error) {
	var disc modelDisc
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("reading speed model discriminator: %w", err)
	}

	switch disc.Model {
	case AttenuatedModelName:
		m := DefaultAttenuated()
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing attenuated speed model: %w", err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case FreeFlowModelName:
		return FreeFlow{}, nil
	default:
		return nil, fmt.Errorf("unknown speed model %q", disc.Model)
	}
}
