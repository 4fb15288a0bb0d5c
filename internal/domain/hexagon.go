package domain

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/uber/h3-go/v3"
	"golang.org/x/sync/errgroup"
)

// MaxResolution is the finest H3 resolution.
const MaxResolution = 15

// areaReference is the point used to report a representative cell area for a
// resolution (Paris). H3 cell areas vary by location, so the figure is indicative.
var areaReference = Geo{Lat: 48.8566, Lon: 2.3522}

// AggregationMap holds the maximum magnitude observed in each parent cell.
// Built by a single writer and read-only afterwards.
type AggregationMap map[h3.H3Index]float64

// ValidateResolutions enforces 0 <= parent <= base <= MaxResolution.
func ValidateResolutions(base, parent int) error {
	if base < 0 || base > MaxResolution {
		return fmt.Errorf("%w: base resolution %d outside [0, %d]", ErrInvalidResolution, base, MaxResolution)
	}
	if parent < 0 || parent > base {
		return fmt.Errorf("%w: parent resolution %d outside [0, %d]", ErrInvalidResolution, parent, base)
	}
	return nil
}

// ResolveCell indexes a point at the base resolution and returns its ancestor
// at the parent resolution.
func ResolveCell(lat, lon float64, base, parent int) h3.H3Index {
	cell := h3.FromGeo(h3.GeoCoord{Latitude: lat, Longitude: lon}, base)
	return h3.ToParent(cell, parent)
}

// Aggregate maps every grid point to its parent cell and keeps the maximum
// magnitude per parent. An empty grid whose matrix matches it yields an empty map.
func Aggregate(lats, lons []float64, magnitude [][]float64, base, parent int) (AggregationMap, error) {
	if err := ValidateResolutions(base, parent); err != nil {
		return nil, err
	}
	if err := checkShape(lats, lons, magnitude); err != nil {
		return nil, err
	}
	if len(lats) == 0 || len(lons) == 0 {
		return AggregationMap{}, nil
	}

	out := make(AggregationMap)
	for i := range lats {
		foldRow(out, lats[i], lons, magnitude[i], base, parent)
	}
	return out, nil
}

// AggregateSharded is Aggregate with the row scan split across workers. Each
// shard folds its own partial map; partials are combined with MergeMax, so the
// result is identical to the sequential scan.
func AggregateSharded(ctx context.Context, lats, lons []float64, magnitude [][]float64, base, parent, workers int) (AggregationMap, error) {
	if workers <= 1 || len(lats) < 2 {
		return Aggregate(lats, lons, magnitude, base, parent)
	}
	if err := ValidateResolutions(base, parent); err != nil {
		return nil, err
	}
	if err := checkShape(lats, lons, magnitude); err != nil {
		return nil, err
	}
	if len(lons) == 0 {
		return AggregationMap{}, nil
	}

	workers = min(workers, len(lats))
	rowsPerShard := (len(lats) + workers - 1) / workers
	partials := make([]AggregationMap, workers)

	g, ctx := errgroup.WithContext(ctx)
	for s := range workers {
		lo := s * rowsPerShard
		hi := min(lo+rowsPerShard, len(lats))
		g.Go(func() error {
			part := make(AggregationMap)
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				foldRow(part, lats[i], lons, magnitude[i], base, parent)
			}
			partials[s] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(AggregationMap)
	for _, part := range partials {
		MergeMax(out, part)
	}
	return out, nil
}

// MergeMax folds src into dst keeping the larger value per cell.
func MergeMax(dst, src AggregationMap) {
	for cell, v := range src {
		if cur, ok := dst[cell]; !ok || v > cur {
			dst[cell] = v
		}
	}
}

// foldRow adds one latitude row to the map. Non-finite magnitudes (fill values)
// are skipped.
func foldRow(acc AggregationMap, lat float64, lons, row []float64, base, parent int) {
	for j, lon := range lons {
		v := row[j]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		cell := ResolveCell(lat, lon, base, parent)
		if cur, ok := acc[cell]; !ok || v > cur {
			acc[cell] = v
		}
	}
}

func checkShape(lats, lons []float64, magnitude [][]float64) error {
	if len(magnitude) != len(lats) {
		return fmt.Errorf("%w: %d rows for %d latitudes", ErrShapeMismatch, len(magnitude), len(lats))
	}
	for i, row := range magnitude {
		if len(row) != len(lons) {
			return fmt.Errorf("%w: row %d has %d columns for %d longitudes", ErrShapeMismatch, i, len(row), len(lons))
		}
	}
	return nil
}

// CellBoundary returns the vertices of a cell's boundary polygon.
func CellBoundary(cell h3.H3Index) []Geo {
	boundary := h3.ToGeoBoundary(cell)
	out := make([]Geo, len(boundary))
	for i, c := range boundary {
		out[i] = Geo{Lat: c.Latitude, Lon: c.Longitude}
	}
	return out
}

// CellPolygon returns a cell's boundary as a closed orb polygon in lon/lat order.
func CellPolygon(cell h3.H3Index) orb.Polygon {
	boundary := CellBoundary(cell)
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, g := range boundary {
		ring = append(ring, orb.Point{g.Lon, g.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// ResolutionAreaKm2 returns the area of the cell containing the reference
// point at the given resolution.
func ResolutionAreaKm2(res int) (float64, error) {
	if res < 0 || res > MaxResolution {
		return 0, fmt.Errorf("%w: %d outside [0, %d]", ErrInvalidResolution, res, MaxResolution)
	}
	cell := h3.FromGeo(h3.GeoCoord{Latitude: areaReference.Lat, Longitude: areaReference.Lon}, res)
	return math.Abs(geo.Area(CellPolygon(cell))) / 1e6, nil
}
