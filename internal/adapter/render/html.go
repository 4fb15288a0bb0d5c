package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
)

const leafletVersion = "1.9.4"

// zoomForResolution picks an initial zoom that shows a country at the
// coarse resolutions and a region at the fine ones.
func zoomForResolution(res int) int {
	switch {
	case res <= 3:
		return 5
	case res <= 6:
		return 6
	default:
		return 8
	}
}

var page = template.Must(template.New("hexmap").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <link rel="stylesheet" href="https://unpkg.com/leaflet@{{.Leaflet}}/dist/leaflet.css" />
  <script src="https://unpkg.com/leaflet@{{.Leaflet}}/dist/leaflet.js"></script>
  <style>
    html, body, #map { height: 100%; margin: 0; }
    .panel { background: white; padding: 6px 10px; border-radius: 4px; box-shadow: 0 0 6px rgba(0,0,0,.3); font: 13px/1.4 sans-serif; }
    .panel h3 { margin: 0 0 4px; font-size: 15px; }
    .swatch { display: inline-block; width: 14px; height: 14px; margin-right: 6px; vertical-align: middle; opacity: .7; }
  </style>
</head>
<body>
<div id="map"></div>
<script>
  const map = L.map('map').setView([{{.Center.Lat}}, {{.Center.Lon}}], {{.Zoom}});
  L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
    maxZoom: 18,
    attribution: '&copy; OpenStreetMap contributors'
  }).addTo(map);

  const cells = {{.GeoJSON}};
  L.geoJSON(cells, {
    style: f => ({ color: f.properties.color, fillColor: f.properties.color, weight: 1, fillOpacity: 0.5 }),
    onEachFeature: (f, layer) => layer.bindPopup(f.properties.popup)
  }).addTo(map);

  const title = L.control({ position: 'topright' });
  title.onAdd = () => {
    const div = L.DomUtil.create('div', 'panel');
    div.innerHTML = '<h3>' + {{.Title}} + '</h3>' + {{.Subtitle}};
    return div;
  };
  title.addTo(map);
</script>
<div class="panel" style="position:absolute;bottom:24px;left:10px;z-index:1000">
  <strong>{{.VariableTitle}} (km/h)</strong><br/>
  {{range .Legend}}<span class="swatch" style="background:{{.Color}}"></span>{{.Range}}<br/>
  {{end}}
  {{range .Warnings}}<em>{{.}}</em><br/>
  {{end}}
</div>
</body>
</html>
`))

type pageData struct {
	Title         string
	Subtitle      string
	VariableTitle string
	Leaflet       string
	Center        domain.Geo
	Zoom          int
	GeoJSON       template.JS
	Legend        []domain.LegendEntry
	Warnings      []string
}

// HTML writes a standalone Leaflet page for the map.
func HTML(w io.Writer, m domain.HexMap) error {
	data, err := MarshalGeoJSON(m)
	if err != nil {
		return err
	}
	err = page.Execute(w, pageData{
		Title:         m.Title,
		Subtitle:      fmt.Sprintf("Resolution %d, cell area ≈ %.1f km²", m.Resolution, m.CellAreaKm2),
		VariableTitle: m.Variable.Title(),
		Leaflet:       leafletVersion,
		Center:        m.Center,
		Zoom:          zoomForResolution(m.Resolution),
		GeoJSON:       template.JS(data), //nolint:gosec // marshalled JSON, not user markup
		Legend:        m.Legend,
		Warnings:      m.Warnings,
	})
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
