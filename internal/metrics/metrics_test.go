package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestRecordTick(t *testing.T) {
	r := NewRegistry()

	r.RecordTick(2*time.Millisecond, 7, 3, 2, 41.5)
	r.RecordTick(time.Millisecond, 6, 4, 1, 40)

	assert.Equal(t, 2.0, counterValue(t, r.TicksTotal))
	assert.Equal(t, 6.0, gaugeValue(t, r.Vehicles.WithLabelValues("moving")))
	assert.Equal(t, 4.0, gaugeValue(t, r.Vehicles.WithLabelValues("arrived")))
	assert.Equal(t, 1.0, gaugeValue(t, r.IncidentsActive))
	assert.Equal(t, 40.0, gaugeValue(t, r.MeanDensity))

	var m dto.Metric
	require.NoError(t, r.TickDuration.Write(&m))
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
}

func TestRecordIncidents(t *testing.T) {
	r := NewRegistry()

	r.RecordIncidentCreated(SourceRandom, "accident")
	r.RecordIncidentCreated(SourceManual, "weather")
	r.RecordIncidentCreated(SourceManual, "weather")
	r.RecordIncidentsExpired(3)
	r.RecordIncidentsExpired(0)

	assert.Equal(t, 1.0, counterValue(t, r.IncidentsCreated.WithLabelValues(SourceRandom, "accident")))
	assert.Equal(t, 2.0, counterValue(t, r.IncidentsCreated.WithLabelValues(SourceManual, "weather")))
	assert.Equal(t, 3.0, counterValue(t, r.IncidentsExpired))
}

func TestRecordRouteQuery(t *testing.T) {
	r := NewRegistry()

	r.RecordRouteQuery(QuerySuggest, 4, 5, time.Millisecond)
	r.RecordRouteQuery(QueryRoute, 1, 1, time.Millisecond)
	r.RecordReroutes(2)
	r.RecordRetimings(16)

	assert.Equal(t, 4.0, counterValue(t, r.RouteQueriesTotal.WithLabelValues(QuerySuggest, "found")))
	assert.Equal(t, 1.0, counterValue(t, r.RouteQueriesTotal.WithLabelValues(QuerySuggest, "no_path")))
	assert.Equal(t, 1.0, counterValue(t, r.RouteQueriesTotal.WithLabelValues(QueryRoute, "found")))
	assert.Equal(t, 2.0, counterValue(t, r.ReroutesTotal))
	assert.Equal(t, 16.0, counterValue(t, r.LightRetimings))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordTick(time.Millisecond, 1, 1, 1, 1)
		r.RecordIncidentCreated(SourceRandom, "accident")
		r.RecordIncidentsExpired(1)
		r.RecordRouteQuery(QueryBalance, 1, 2, time.Millisecond)
		r.RecordReroutes(1)
		r.RecordRetimings(1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordTick(time.Millisecond, 1, 0, 0, 10)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "traffic_ticks_total 1"))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
