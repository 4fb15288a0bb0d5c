package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v3"
)

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest(options{
		country:    "fra",
		date:       "2010-02-28",
		variable:   "soutenu_100m",
		resolution: -1,
		hours:      "6,18",
	}, 4)
	require.NoError(t, err)

	assert.Equal(t, "FRA", req.Country)
	assert.Equal(t, time.Date(2010, 2, 28, 0, 0, 0, 0, time.UTC), req.Date)
	assert.Equal(t, domain.Sustained100m, req.Variable)
	assert.Equal(t, 4, req.Resolution)
	assert.Equal(t, []int{6, 18}, req.Hours)

	req, err = buildRequest(options{country: "FRA", storm: "Xynthia", variable: "gust", resolution: 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, req.Resolution)
	assert.True(t, req.Date.IsZero())
}

func TestBuildRequest_Errors(t *testing.T) {
	_, err := buildRequest(options{country: "FRA", variable: "breeze"}, 4)
	require.ErrorIs(t, err, domain.ErrInvalidVariableChoice)

	_, err = buildRequest(options{country: "FRA", variable: "gust", hours: "noon"}, 4)
	require.ErrorIs(t, err, domain.ErrInvalidHours)

	_, err = buildRequest(options{country: "FRA", variable: "gust", date: "yesterday"}, 4)
	require.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestWriteOutputs(t *testing.T) {
	cell := h3.FromGeo(h3.GeoCoord{Latitude: 48.8566, Longitude: 2.3522}, 4)
	m := domain.HexMap{
		ID:       "era_data_FRA_2010_2_28_all_day_gust.nc@r4",
		Title:    "Wind gust FRA 28-2-2010",
		Variable: domain.Gust,
		Cells: []domain.HexCell{{
			Cell:     h3.ToString(cell),
			MaxWind:  50,
			Color:    domain.Yellow,
			Boundary: domain.CellBoundary(cell),
		}},
	}
	dir := filepath.Join(t.TempDir(), "maps")

	paths, err := writeOutputs(m, dir, "both")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "era_data_FRA_2010_2_28_all_day_gust_r4.geojson"),
		filepath.Join(dir, "era_data_FRA_2010_2_28_all_day_gust_r4.html"),
	}, paths)

	geo, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(geo), `"FeatureCollection"`)

	page, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(page), "Wind gust FRA 28-2-2010")

	_, err = writeOutputs(m, dir, "pdf")
	require.Error(t, err)
}

func TestCLIMetrics_PrivateRegistry(t *testing.T) {
	require.NotPanics(t, func() {
		cliMetrics().MapsBuilt.WithLabelValues("gust").Inc()
		cliMetrics().MapsBuilt.WithLabelValues("gust").Inc()
	})

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.False(t, strings.HasPrefix(f.GetName(), "wind_hexmap_"), "default registry has %s", f.GetName())
	}
}
