// Package metrics exposes Prometheus instrumentation for the simulation and
// routing subsystems.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "traffic"

// Registry holds all metrics for the engine
type Registry struct {
	// Simulation
	TicksTotal       prometheus.Counter
	TickDuration     prometheus.Histogram
	Vehicles         *prometheus.GaugeVec
	MeanDensity      prometheus.Gauge
	IncidentsActive  prometheus.Gauge
	IncidentsCreated *prometheus.CounterVec
	IncidentsExpired prometheus.Counter

	// Routing
	RouteQueriesTotal  *prometheus.CounterVec
	RouteQueryDuration *prometheus.HistogramVec
	ReroutesTotal      prometheus.Counter
	LightRetimings     prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric registered on a fresh
// prometheus.Registry.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSimulationMetrics()
	r.initRoutingMetrics()
	return r
}

func (r *Registry) initSimulationMetrics() {
	f := promauto.With(r.registry)

	r.TicksTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Total number of simulation ticks executed",
	})

	r.TickDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock duration of one simulation tick",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	r.Vehicles = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "vehicles",
		Help:      "Number of vehicles by status",
	}, []string{"status"})

	r.MeanDensity = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "road_density_mean",
		Help:      "Mean congestion density across all roads (0-100)",
	})

	r.IncidentsActive = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "incidents_active",
		Help:      "Number of incidents currently affecting traffic",
	})

	r.IncidentsCreated = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incidents_created_total",
		Help:      "Incidents created, by source (random or manual) and kind",
	}, []string{"source", "kind"})

	r.IncidentsExpired = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incidents_expired_total",
		Help:      "Incidents removed after their duration ran out",
	})
}

func (r *Registry) initRoutingMetrics() {
	f := promauto.With(r.registry)

	r.RouteQueriesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_queries_total",
		Help:      "Route computations by query kind and result",
	}, []string{"kind", "result"})

	r.RouteQueryDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_query_duration_seconds",
		Help:      "Route computation duration by query kind",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"kind"})

	r.ReroutesTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reroutes_total",
		Help:      "Vehicle routes replaced by suggestion or balancing",
	})

	r.LightRetimings = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "light_retimings_total",
		Help:      "Lights whose green times were replaced by optimizer output",
	})
}

// Gatherer returns the underlying Prometheus gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
