// Command validate checks the integrity of hex map GeoJSON documents written
// by cmd/hexmap or served by /api/hexmap. It verifies document structure,
// H3 cell identity and resolution, polygon geometry against the H3 boundary,
// band classification against the legend thresholds, and the legend itself.
//
// Usage:
//
//	go run ./cmd/validate maps/era_data_FRA_2010_2_28_all_day_gust_r4.geojson [more.geojson ...]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/render"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/uber/h3-go/v3"
)

// vertexTolerance is the allowed drift, in degrees, between a polygon vertex
// and the H3 boundary vertex after a JSON round trip.
const vertexTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// metadata is the set of foreign members written alongside the features.
type metadata struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	Variable   string               `json:"variable"`
	Resolution *int                 `json:"resolution"`
	Legend     []domain.LegendEntry `json:"legend"`
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: validate FILE.geojson [FILE.geojson ...]")
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("=== %s ===\n", path)
		if !report(validate(data)) {
			failed = true
		}
		fmt.Println()
	}

	if failed {
		fmt.Println("Validation FAILED.")
		os.Exit(1)
	}
	fmt.Println("All validations passed.")
}

func report(phases []*phase) bool {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-24s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}

// validate runs every phase over one document. Later phases are skipped
// when the document cannot be parsed.
func validate(data []byte) []*phase {
	structure := &phase{name: "Document structure"}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		structure.errorf("not a FeatureCollection: %v", err)
		return []*phase{structure}
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		structure.errorf("metadata: %v", err)
		return []*phase{structure}
	}

	v, err := domain.ParseVariable(meta.Variable)
	if err != nil {
		structure.errorf("variable: %v", err)
	}
	if meta.Resolution == nil {
		structure.errorf("resolution member missing")
	} else if *meta.Resolution < 0 || *meta.Resolution > domain.MaxResolution {
		structure.errorf("resolution %d outside [0, %d]", *meta.Resolution, domain.MaxResolution)
	}
	if meta.ID == "" {
		structure.errorf("id member missing")
	}
	if meta.Title == "" {
		structure.errorf("title member missing")
	}
	if !structure.passed() {
		return []*phase{structure}
	}

	return []*phase{
		structure,
		validateCells(fc, *meta.Resolution),
		validateGeometry(fc),
		validateClassification(fc, v),
		validateLegend(meta.Legend, v),
	}
}

func validateCells(fc *geojson.FeatureCollection, res int) *phase {
	p := &phase{name: "H3 cells"}
	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		id, _ := f.ID.(string)
		cell := f.Properties.MustString("cell", "")
		if id != cell {
			p.errorf("feature %d: id %q differs from cell property %q", i, id, cell)
		}
		idx := h3.FromString(cell)
		if !h3.IsValid(idx) {
			p.errorf("feature %d: %q is not a valid H3 index", i, cell)
			continue
		}
		if got := h3.Resolution(idx); got != res {
			p.errorf("feature %d: cell %s has resolution %d, map declares %d", i, cell, got, res)
		}
		if seen[cell] {
			p.errorf("feature %d: cell %s appears twice", i, cell)
		}
		seen[cell] = true
	}
	return p
}

func validateGeometry(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Cell geometry"}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			p.errorf("feature %d: geometry missing", i)
			continue
		}
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			p.errorf("feature %d: geometry is %s, want Polygon", i, f.Geometry.GeoJSONType())
			continue
		}
		if len(poly) != 1 {
			p.errorf("feature %d: %d rings, want 1", i, len(poly))
			continue
		}
		ring := poly[0]
		if len(ring) < 4 || !ring.Closed() {
			p.errorf("feature %d: ring is not closed", i)
			continue
		}

		idx := h3.FromString(f.Properties.MustString("cell", ""))
		if !h3.IsValid(idx) {
			continue
		}
		want := domain.CellBoundary(idx)
		if len(ring)-1 != len(want) {
			p.errorf("feature %d: %d vertices, H3 boundary has %d", i, len(ring)-1, len(want))
			continue
		}
		for k, g := range want {
			if math.Abs(ring[k].Lon()-g.Lon) > vertexTolerance || math.Abs(ring[k].Lat()-g.Lat) > vertexTolerance {
				p.errorf("feature %d: vertex %d at %v, H3 boundary at (%g, %g)", i, k, ring[k], g.Lon, g.Lat)
				break
			}
		}
	}
	return p
}

func validateClassification(fc *geojson.FeatureCollection, v domain.Variable) *phase {
	p := &phase{name: "Classification"}
	for i, f := range fc.Features {
		value, ok := f.Properties["max_wind_kmh"].(float64)
		if !ok {
			p.errorf("feature %d: max_wind_kmh missing or not a number", i)
			continue
		}
		if value < 0 || math.IsInf(value, 0) {
			p.errorf("feature %d: implausible magnitude %g", i, value)
		}
		want, err := domain.Classify(value, v)
		if err != nil {
			p.errorf("feature %d: %v", i, err)
			continue
		}
		if got := f.Properties.MustString("color", ""); got != string(want) {
			p.errorf("feature %d: %.1f km/h colored %q, want %q", i, value, got, want)
		}
		if got, want := f.Properties.MustString("popup", ""), render.Popup(domain.HexCell{MaxWind: value}); got != want {
			p.errorf("feature %d: popup %q, want %q", i, got, want)
		}
	}
	return p
}

func validateLegend(legend []domain.LegendEntry, v domain.Variable) *phase {
	p := &phase{name: "Legend"}
	want, err := domain.Legend(v)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if !slices.Equal(legend, want) {
		p.errorf("legend %v, want %v", legend, want)
	}
	return p
}
