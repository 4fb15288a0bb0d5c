// Package render turns a classified hex map into GeoJSON and a standalone
// Leaflet page.
package render

import (
	"fmt"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Popup is the per-cell popup text.
func Popup(c domain.HexCell) string {
	return fmt.Sprintf("Max wind: %.1f km/h", c.MaxWind)
}

// GeoJSON builds a FeatureCollection with one polygon per cell. Map-level
// metadata (title, legend, center) is carried as foreign members.
func GeoJSON(m domain.HexMap) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range m.Cells {
		f := geojson.NewFeature(cellPolygon(c.Boundary))
		f.ID = c.Cell
		f.Properties["cell"] = c.Cell
		f.Properties["max_wind_kmh"] = c.MaxWind
		f.Properties["color"] = string(c.Color)
		f.Properties["popup"] = Popup(c)
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"id":            m.ID,
		"title":         m.Title,
		"country":       m.Country,
		"variable":      m.Variable.String(),
		"resolution":    m.Resolution,
		"cell_area_km2": m.CellAreaKm2,
		"center":        []float64{m.Center.Lon, m.Center.Lat},
		"legend":        m.Legend,
	}
	if len(m.Warnings) > 0 {
		fc.ExtraMembers["warnings"] = m.Warnings
	}
	return fc
}

// MarshalGeoJSON encodes the map as a GeoJSON document.
func MarshalGeoJSON(m domain.HexMap) ([]byte, error) {
	data, err := GeoJSON(m).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	return data, nil
}

// cellPolygon closes the boundary ring in lon/lat order.
func cellPolygon(boundary []domain.Geo) orb.Polygon {
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, g := range boundary {
		ring = append(ring, orb.Point{g.Lon, g.Lat})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}
