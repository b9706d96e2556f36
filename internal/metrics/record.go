package metrics

import (
	"time"
)

// Route query kinds.
const (
	QueryRoute        = "route"
	QueryAlternatives = "alternatives"
	QuerySuggest      = "suggest"
	QueryBalance      = "balance"
)

// Incident sources.
const (
	SourceRandom = "random"
	SourceManual = "manual"
)

// All Record methods are no-ops on a nil *Registry so callers can run
// uninstrumented.

// RecordTick records one completed tick and the state it left behind.
func (r *Registry) RecordTick(duration time.Duration, moving, arrived, activeIncidents int, meanDensity float64) {
	if r == nil {
		return
	}
	r.TicksTotal.Inc()
	r.TickDuration.Observe(duration.Seconds())
	r.Vehicles.WithLabelValues("moving").Set(float64(moving))
	r.Vehicles.WithLabelValues("arrived").Set(float64(arrived))
	r.IncidentsActive.Set(float64(activeIncidents))
	r.MeanDensity.Set(meanDensity)
}

// RecordIncidentCreated counts a new incident.
func (r *Registry) RecordIncidentCreated(source, kind string) {
	if r == nil {
		return
	}
	r.IncidentsCreated.WithLabelValues(source, kind).Inc()
}

// RecordIncidentsExpired counts incidents dropped this tick.
func (r *Registry) RecordIncidentsExpired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.IncidentsExpired.Add(float64(n))
}

// RecordRouteQuery records one routing call. found and total count the
// vehicles or routes that did and did not get a path.
func (r *Registry) RecordRouteQuery(kind string, found, total int, duration time.Duration) {
	if r == nil {
		return
	}
	if found > 0 {
		r.RouteQueriesTotal.WithLabelValues(kind, "found").Add(float64(found))
	}
	if missing := total - found; missing > 0 {
		r.RouteQueriesTotal.WithLabelValues(kind, "no_path").Add(float64(missing))
	}
	r.RouteQueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordReroutes counts vehicles rerouted by the balancer.
func (r *Registry) RecordReroutes(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ReroutesTotal.Add(float64(n))
}

// RecordRetimings counts lights retimed.
func (r *Registry) RecordRetimings(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.LightRetimings.Add(float64(n))
}
