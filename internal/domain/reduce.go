package domain

import (
	"fmt"
	"math"
)

// msToKmh converts wind speed from m/s to km/h.
const msToKmh = 3.6

// Field is one named variable over a (time, latitude, longitude) cube.
// Values are stored time-major: Values[t*len(Lat)*len(Lon) + i*len(Lon) + j].
type Field struct {
	Name       string
	Times      int
	Latitudes  []float64
	Longitudes []float64
	Values     []float64
}

// Validate checks that the value count matches the cube dimensions.
func (f *Field) Validate() error {
	want := f.Times * len(f.Latitudes) * len(f.Longitudes)
	if len(f.Values) != want {
		return fmt.Errorf("%w: field %s has %d values, want %d (%d×%d×%d)",
			ErrShapeMismatch, f.Name, len(f.Values), want, f.Times, len(f.Latitudes), len(f.Longitudes))
	}
	return nil
}

// maxOverTime collapses the time axis, keeping the per-point maximum. NaN
// fill values are ignored; a point that is NaN at every step stays NaN.
func (f *Field) maxOverTime() ([][]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	nLat, nLon := len(f.Latitudes), len(f.Longitudes)
	if f.Times == 0 && nLat*nLon > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTimesteps, f.Name)
	}

	out := newMatrix(nLat, nLon)
	plane := nLat * nLon
	for i := range nLat {
		for j := range nLon {
			idx := i*nLon + j
			m := f.Values[idx]
			for t := 1; t < f.Times; t++ {
				if v := f.Values[t*plane+idx]; v > m || math.IsNaN(m) {
					m = v
				}
			}
			out[i][j] = m
		}
	}
	return out, nil
}

// Dataset is an ordered collection of fields sharing one coordinate grid.
// ID identifies the download it came from and keys the aggregation cache.
type Dataset struct {
	ID     string
	Fields []Field
}

// Field returns the field with the given short name.
func (d *Dataset) Field(name string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// WindField is a magnitude grid in km/h. Magnitude[i][j] is the value at
// (Latitudes[i], Longitudes[j]).
type WindField struct {
	Latitudes  []float64
	Longitudes []float64
	Magnitude  [][]float64
}

// Validate checks that the matrix matches both coordinate vectors.
func (w WindField) Validate() error {
	return checkShape(w.Latitudes, w.Longitudes, w.Magnitude)
}

// Points returns the number of grid points.
func (w WindField) Points() int {
	return len(w.Latitudes) * len(w.Longitudes)
}

// ReduceWindField collapses the dataset's time axis into a single magnitude
// grid for the chosen variable. Coordinates are taken from the first field in
// the dataset; all fields are assumed to share that grid.
func ReduceWindField(ds *Dataset, v Variable) (WindField, error) {
	names, err := v.FieldNames()
	if err != nil {
		return WindField{}, err
	}
	if len(ds.Fields) == 0 {
		return WindField{}, fmt.Errorf("%w: dataset %q is empty", ErrMissingField, ds.ID)
	}

	maxes := make([][][]float64, len(names))
	for k, name := range names {
		f, ok := ds.Field(name)
		if !ok {
			return WindField{}, fmt.Errorf("%w: %s not in dataset %q", ErrMissingField, name, ds.ID)
		}
		if maxes[k], err = f.maxOverTime(); err != nil {
			return WindField{}, err
		}
	}

	first := ds.Fields[0]
	wf := WindField{
		Latitudes:  append([]float64(nil), first.Latitudes...),
		Longitudes: append([]float64(nil), first.Longitudes...),
	}

	switch v {
	case Gust:
		wf.Magnitude = scale(maxes[0])
	case Sustained10m, Sustained100m:
		if wf.Magnitude, err = componentMagnitude(maxes[0], maxes[1]); err != nil {
			return WindField{}, err
		}
	default:
		return WindField{}, fmt.Errorf("%w: %s", ErrInvalidVariableChoice, v)
	}

	if err := wf.Validate(); err != nil {
		return WindField{}, err
	}
	return wf, nil
}

func scale(m [][]float64) [][]float64 {
	for i := range m {
		for j := range m[i] {
			m[i][j] *= msToKmh
		}
	}
	return m
}

func componentMagnitude(u, v [][]float64) ([][]float64, error) {
	if len(u) != len(v) {
		return nil, fmt.Errorf("%w: u has %d rows, v has %d", ErrShapeMismatch, len(u), len(v))
	}
	out := make([][]float64, len(u))
	for i := range u {
		if len(u[i]) != len(v[i]) {
			return nil, fmt.Errorf("%w: row %d u has %d columns, v has %d", ErrShapeMismatch, i, len(u[i]), len(v[i]))
		}
		out[i] = make([]float64, len(u[i]))
		for j := range u[i] {
			out[i][j] = msToKmh * math.Hypot(u[i][j], v[i][j])
		}
	}
	return out, nil
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
