package domain

import (
	"fmt"
	"math"
	"time"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is the rectangle enclosing a country, in degrees.
type BoundingBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Validate rejects boxes with inverted or out-of-range edges.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.LatMin, b.LatMax, b.LonMin, b.LonMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite edge", ErrInvalidBoundingBox)
		}
	}
	if b.LatMin < -90 || b.LatMax > 90 || b.LatMin > b.LatMax {
		return fmt.Errorf("%w: latitude range [%g, %g]", ErrInvalidBoundingBox, b.LatMin, b.LatMax)
	}
	if b.LonMin < -180 || b.LonMax > 180 || b.LonMin > b.LonMax {
		return fmt.Errorf("%w: longitude range [%g, %g]", ErrInvalidBoundingBox, b.LonMin, b.LonMax)
	}
	return nil
}

// Area returns the box in the [north, west, south, east] order used by the
// CDS "area" request field.
func (b BoundingBox) Area() [4]float64 {
	return [4]float64{b.LatMax, b.LonMin, b.LatMin, b.LonMax}
}

// Center is the midpoint of the box, used to position the map.
func (b BoundingBox) Center() Geo {
	return Geo{
		Lat: (b.LatMin + b.LatMax) / 2,
		Lon: (b.LonMin + b.LonMax) / 2,
	}
}

// Country is a selectable country with its enclosing rectangle.
type Country struct {
	Name string      `json:"name"`
	ISO3 string      `json:"iso3"`
	BBox BoundingBox `json:"bbox"`
}

// Storm is a reference storm used to preselect a date.
type Storm struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
	ISO3 string    `json:"iso3"`
}
