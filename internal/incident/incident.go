// Package incident defines temporary road events that slow traffic.
package incident

import (
	"github.com/cxd309/traffic-engine/internal/graph"
)

// Kind classifies an incident.
type Kind string

const (
	KindAccident     Kind = "accident"
	KindConstruction Kind = "construction"
	KindWeather      Kind = "weather"
)

// Kinds lists every incident kind in a fixed order, for random selection.
var Kinds = []Kind{KindAccident, KindConstruction, KindWeather}

// ParseKind validates s as an incident kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Incident slows every vehicle on RoadID by the factor (1 - Severity) while
// Duration is positive.
type Incident struct {
	ID       string       `json:"id"`
	RoadID   graph.EdgeID `json:"road_id"`
	Location graph.NodeID `json:"location"`
	Kind     Kind         `json:"type"`
	Severity float64      `json:"severity"` // 0 < severity < 1
	Duration int          `json:"duration"` // remaining ticks
}

// Active reports whether the incident still affects traffic.
func (i Incident) Active() bool { return i.Duration > 0 }

// Advance decrements every incident's remaining duration and splits the list
// into those still active and those that expired this tick. The input slice
// is not modified.
func Advance(incidents []Incident) (active, expired []Incident) {
	for _, inc := range incidents {
		inc.Duration--
		if inc.Active() {
			active = append(active, inc)
		} else {
			expired = append(expired, inc)
		}
	}
	return active, expired
}

// OnRoad returns the severities of incidents on road id.
func OnRoad(incidents []Incident, id graph.EdgeID) []float64 {
	var out []float64
	for _, inc := range incidents {
		if inc.RoadID == id {
			out = append(out, inc.Severity)
		}
	}
	return out
}

// AtLocation reports whether any incident at node id has severity above threshold.
func AtLocation(incidents []Incident, id graph.NodeID, threshold float64) bool {
	for _, inc := range incidents {
		if inc.Location == id && inc.Severity > threshold {
			return true
		}
	}
	return false
}
