// Package signal implements the two-phase light state machine used at
// signal-controlled intersections.
//
// A Light has a north-south and an east-west phase. Exactly one of them is
// green at any instant. Each call to Step advances the light by one second.
package signal

import (
	"errors"
	"fmt"
)

// State is the current colour of a phase.
type State string

const (
	Green State = "green"
	Red   State = "red"
)

// Phase names a direction of travel controlled by a light.
type Phase string

const (
	NorthSouth Phase = "north_south"
	EastWest   Phase = "east_west"
)

// ErrNotComplementary is returned when both phases of a light share a state.
var ErrNotComplementary = errors.New("light phases are not complementary")

// PhaseState is the timing state of one phase.
type PhaseState struct {
	GreenTime   int   `json:"green_time"` // seconds
	State       State `json:"current_state"`
	TimeInState int   `json:"time_in_state"` // seconds
}

// Light is a two-phase signal.
type Light struct {
	NorthSouth PhaseState `json:"north_south"`
	EastWest   PhaseState `json:"east_west"`
}

// Timing is a pair of green times, one per phase.
type Timing struct {
	NorthSouth int `json:"north_south"` // seconds
	EastWest   int `json:"east_west"`   // seconds
}

// Validate reports whether the light is well formed: valid states, positive
// green times, and exactly one green phase.
func (l Light) Validate() error {
	for _, p := range []struct {
		name  Phase
		state PhaseState
	}{{NorthSouth, l.NorthSouth}, {EastWest, l.EastWest}} {
		if p.state.State != Green && p.state.State != Red {
			return fmt.Errorf("%s: unknown state %q", p.name, p.state.State)
		}
		if p.state.GreenTime <= 0 {
			return fmt.Errorf("%s: green time %d must be positive", p.name, p.state.GreenTime)
		}
		if p.state.TimeInState < 0 {
			return fmt.Errorf("%s: negative time in state %d", p.name, p.state.TimeInState)
		}
	}
	if !l.Complementary() {
		return ErrNotComplementary
	}
	return nil
}

// Complementary reports whether exactly one phase is green.
func (l Light) Complementary() bool {
	return (l.NorthSouth.State == Green) != (l.EastWest.State == Green)
}

// Phase returns the state of phase p.
func (l Light) Phase(p Phase) PhaseState {
	if p == NorthSouth {
		return l.NorthSouth
	}
	return l.EastWest
}

// IsRed reports whether phase p is currently red.
func (l Light) IsRed(p Phase) bool {
	return l.Phase(p).State == Red
}

// GreenPhase returns the phase that currently has right of way.
func (l Light) GreenPhase() Phase {
	if l.NorthSouth.State == Green {
		return NorthSouth
	}
	return EastWest
}

// Timing returns the current green times.
func (l Light) Timing() Timing {
	return Timing{NorthSouth: l.NorthSouth.GreenTime, EastWest: l.EastWest.GreenTime}
}

// Step advances the light by one second. Both elapsed counters move together;
// when the green phase has been green for its full green time the two phases
// swap states and both counters restart. Returns true if the light flipped.
func (l *Light) Step() bool {
	l.NorthSouth.TimeInState++
	l.EastWest.TimeInState++

	// Intentional: the phase currently green is timed against its own green time.
	active := &l.EastWest
	if l.NorthSouth.State == Green {
		active = &l.NorthSouth
	}
	if active.TimeInState < active.GreenTime {
		return false
	}

	l.NorthSouth.State, l.EastWest.State = l.EastWest.State, l.NorthSouth.State
	l.NorthSouth.TimeInState = 0
	l.EastWest.TimeInState = 0
	return true
}

// Retime replaces both green times. Current states and counters are kept, so a
// phase whose elapsed time already exceeds its new green time flips on the
// next Step.
func (l *Light) Retime(t Timing) error {
	if t.NorthSouth <= 0 || t.EastWest <= 0 {
		return fmt.Errorf("green times must be positive, got %d/%d", t.NorthSouth, t.EastWest)
	}
	l.NorthSouth.GreenTime = t.NorthSouth
	l.EastWest.GreenTime = t.EastWest
	return nil
}
