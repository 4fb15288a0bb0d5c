// Package mockdata generates synthetic ERA5-shaped wind datasets for local
// runs and tests, so maps can be built without CDS credentials.
package mockdata

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
)

const (
	// DefaultStep is the ERA5 single-levels grid spacing in degrees.
	DefaultStep = 0.25

	backgroundMS = 5.0  // calm wind away from the storm, m/s
	peakMS       = 35.0 // extra wind at the storm center, m/s
	radiusDeg    = 1.5  // gaussian radius of the wind field
	gustFactor   = 1.4
	aloftFactor  = 1.25 // 100 m winds relative to 10 m
)

// Storm synthesizes the dataset a CDS retrieval would return for req over
// bbox: a cyclone crossing the box from south-west to north-east during the
// selected hours. Latitudes run north to south, as in ERA5 downloads.
// The output is a pure function of its inputs.
func Storm(req domain.MapRequest, bbox domain.BoundingBox, step float64) (*domain.Dataset, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if step <= 0 {
		return nil, fmt.Errorf("mockdata: grid step must be positive, got %g", step)
	}
	names, err := req.Variable.FieldNames()
	if err != nil {
		return nil, err
	}

	lats := axis(bbox.LatMax, bbox.LatMin, -step)
	lons := axis(bbox.LonMin, bbox.LonMax, step)
	hours := req.SelectedHours()
	plane := len(lats) * len(lons)

	values := make([][]float64, len(names))
	for k := range values {
		values[k] = make([]float64, len(hours)*plane)
	}

	for t, h := range hours {
		// Storm center moves along the box diagonal over the day.
		frac := float64(h) / 23
		cLat := bbox.LatMin + frac*(bbox.LatMax-bbox.LatMin)
		cLon := bbox.LonMin + frac*(bbox.LonMax-bbox.LonMin)

		for i, lat := range lats {
			for j, lon := range lons {
				dy, dx := lat-cLat, lon-cLon
				d2 := dx*dx + dy*dy
				speed := backgroundMS + peakMS*math.Exp(-d2/(2*radiusDeg*radiusDeg))
				idx := t*plane + i*len(lons) + j

				switch req.Variable {
				case domain.Gust:
					values[0][idx] = round(speed * gustFactor)
				default:
					if req.Variable == domain.Sustained100m {
						speed *= aloftFactor
					}
					// Counter-clockwise circulation around the center.
					theta := math.Atan2(dy, dx) + math.Pi/2
					values[0][idx] = round(speed * math.Cos(theta))
					values[1][idx] = round(speed * math.Sin(theta))
				}
			}
		}
	}

	ds := &domain.Dataset{ID: req.DatasetName()}
	for k, name := range names {
		ds.Fields = append(ds.Fields, domain.Field{
			Name:       name,
			Times:      len(hours),
			Latitudes:  lats,
			Longitudes: lons,
			Values:     values[k],
		})
	}
	return ds, nil
}

// axis returns from, from+step, ... up to and including to (within rounding).
func axis(from, to, step float64) []float64 {
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = round(from + float64(i)*step)
	}
	return out
}

// round trims float noise to 1e-4, below ERA5 output precision.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
