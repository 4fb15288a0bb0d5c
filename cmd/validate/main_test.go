package main

import (
	"encoding/json"
	"testing"

	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/render"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v3"
)

func validMap(t *testing.T) domain.HexMap {
	t.Helper()
	legend, err := domain.Legend(domain.Gust)
	require.NoError(t, err)

	var cells []domain.HexCell
	for _, p := range []struct {
		lat, lon, wind float64
	}{{48.8566, 2.3522, 95.04}, {48.3904, -4.4861, 160.2}} {
		cell := h3.FromGeo(h3.GeoCoord{Latitude: p.lat, Longitude: p.lon}, 4)
		color, err := domain.Classify(p.wind, domain.Gust)
		require.NoError(t, err)
		cells = append(cells, domain.HexCell{
			Cell:     h3.ToString(cell),
			MaxWind:  p.wind,
			Color:    color,
			Boundary: domain.CellBoundary(cell),
		})
	}
	return domain.HexMap{
		ID:         "era_data_FRA_2010_2_28_all_day_gust.nc@r4",
		Title:      "Wind gust FRA 28-2-2010",
		Country:    "FRA",
		Variable:   domain.Gust,
		Resolution: 4,
		Cells:      cells,
		Legend:     legend,
	}
}

func failures(phases []*phase) map[string][]string {
	out := map[string][]string{}
	for _, p := range phases {
		if !p.passed() {
			out[p.name] = p.errors
		}
	}
	return out
}

// tamper rewrites the decoded document before re-encoding it.
func tamper(t *testing.T, data []byte, fn func(doc map[string]any)) []byte {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	fn(doc)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func feature(doc map[string]any, i int) map[string]any {
	return doc["features"].([]any)[i].(map[string]any)
}

func TestValidate_RenderedMapPasses(t *testing.T) {
	data, err := render.MarshalGeoJSON(validMap(t))
	require.NoError(t, err)

	phases := validate(data)
	assert.Len(t, phases, 5)
	assert.Empty(t, failures(phases))
}

func TestValidate_DetectsDefects(t *testing.T) {
	data, err := render.MarshalGeoJSON(validMap(t))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(doc map[string]any)
		phase  string
	}{
		{"wrong color", func(doc map[string]any) {
			feature(doc, 0)["properties"].(map[string]any)["color"] = "purple"
		}, "Classification"},
		{"wrong popup", func(doc map[string]any) {
			feature(doc, 0)["properties"].(map[string]any)["popup"] = "Max wind: 1 km/h"
		}, "Classification"},
		{"declared resolution differs", func(doc map[string]any) {
			doc["resolution"] = 5
		}, "H3 cells"},
		{"invalid cell", func(doc map[string]any) {
			f := feature(doc, 0)
			f["id"] = "zzz"
			f["properties"].(map[string]any)["cell"] = "zzz"
		}, "H3 cells"},
		{"duplicate cell", func(doc map[string]any) {
			features := doc["features"].([]any)
			doc["features"] = append(features, features[0])
		}, "H3 cells"},
		{"open ring", func(doc map[string]any) {
			geom := feature(doc, 0)["geometry"].(map[string]any)
			ring := geom["coordinates"].([]any)[0].([]any)
			geom["coordinates"] = []any{ring[:len(ring)-1]}
		}, "Cell geometry"},
		{"moved vertex", func(doc map[string]any) {
			geom := feature(doc, 1)["geometry"].(map[string]any)
			ring := geom["coordinates"].([]any)[0].([]any)
			ring[2] = []any{0.0, 0.0}
		}, "Cell geometry"},
		{"legend edited", func(doc map[string]any) {
			doc["legend"].([]any)[0].(map[string]any)["color"] = "blue"
		}, "Legend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := failures(validate(tamper(t, data, tt.mutate)))
			assert.Contains(t, got, tt.phase)
		})
	}
}

func TestValidate_StructureErrors(t *testing.T) {
	phases := validate([]byte(`{"type":"Point","coordinates":[0,0]}`))
	require.Len(t, phases, 1)
	assert.False(t, phases[0].passed())

	data, err := render.MarshalGeoJSON(validMap(t))
	require.NoError(t, err)
	noVariable := tamper(t, data, func(doc map[string]any) { delete(doc, "variable") })
	phases = validate(noVariable)
	require.Len(t, phases, 1)
	assert.Contains(t, failures(phases), "Document structure")
}
