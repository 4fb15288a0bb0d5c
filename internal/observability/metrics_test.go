package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.MapsBuilt.WithLabelValues("gust").Inc()
	m.AggregationCache.WithLabelValues("hit").Add(2)
	m.CellsPerMap.Observe(120)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.MapsBuilt.WithLabelValues("gust")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.AggregationCache.WithLabelValues("hit")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "wind_hexmap_maps_built_total")
	assert.Contains(t, names, "wind_hexmap_cells_per_map")
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()
	a.TransformErrors.Inc()
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.TransformErrors), 0)
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewMetricsForTesting()
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(m))
	r.Get("/api/legend", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/legend?variable=gust", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/legend", "418")), 0)
}
