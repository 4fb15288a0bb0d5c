// Package netcdf reads ERA5 NetCDF extracts into domain datasets and writes
// synthetic ones for fixtures. Packed variables (short with scale_factor and
// add_offset) are unpacked on read; fill values become NaN.
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/fhs/go-netcdf/netcdf"
)

var (
	latNames  = []string{"latitude", "lat"}
	lonNames  = []string{"longitude", "lon"}
	timeNames = []string{"valid_time", "time"}
)

// Loader implements the pipeline DatasetLoader for local NetCDF files.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a NetCDF loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads the coordinate vectors and the named fields from path. Fields
// must be laid out (time, latitude, longitude) or (latitude, longitude).
func (l *Loader) Load(ctx context.Context, path string, fieldNames []string) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	lats, err := readCoord(nc, latNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lons, err := readCoord(nc, lonNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ds := &domain.Dataset{ID: path, Fields: make([]domain.Field, 0, len(fieldNames))}
	for _, name := range fieldNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := nc.Var(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s not in %s", domain.ErrMissingField, name, path)
		}
		times, err := fieldTimes(v, len(lats), len(lons))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", path, name, err)
		}
		values, err := readValues(v, times*len(lats)*len(lons))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", path, name, err)
		}
		ds.Fields = append(ds.Fields, domain.Field{
			Name:       name,
			Times:      times,
			Latitudes:  lats,
			Longitudes: lons,
			Values:     values,
		})
	}
	l.logger.Debug("netcdf dataset loaded", "path", path, "fields", fieldNames, "lat", len(lats), "lon", len(lons))
	return ds, nil
}

func readCoord(nc netcdf.Dataset, names []string) ([]float64, error) {
	for _, name := range names {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		dims, err := v.Dims()
		if err != nil {
			return nil, fmt.Errorf("%s dims: %w", name, err)
		}
		if len(dims) != 1 {
			return nil, fmt.Errorf("%w: coordinate %s has %d dimensions", domain.ErrShapeMismatch, name, len(dims))
		}
		n, err := dims[0].Len()
		if err != nil {
			return nil, fmt.Errorf("%s length: %w", name, err)
		}
		return readValues(v, int(n))
	}
	return nil, fmt.Errorf("%w: none of %v present", domain.ErrMissingField, names)
}

// fieldTimes checks a field's dimensions against the coordinate grid and
// returns its time-step count.
func fieldTimes(v netcdf.Var, nLat, nLon int) (int, error) {
	dims, err := v.Dims()
	if err != nil {
		return 0, err
	}
	lens := make([]int, len(dims))
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return 0, err
		}
		lens[i] = int(n)
	}

	switch len(lens) {
	case 2:
		if lens[0] != nLat || lens[1] != nLon {
			return 0, fmt.Errorf("%w: grid %v, want [%d %d]", domain.ErrShapeMismatch, lens, nLat, nLon)
		}
		return 1, nil
	case 3:
		if lens[1] != nLat || lens[2] != nLon {
			return 0, fmt.Errorf("%w: grid %v, want [t %d %d]", domain.ErrShapeMismatch, lens, nLat, nLon)
		}
		if name, err := dims[0].Name(); err == nil && !isTimeDim(name) {
			return 0, fmt.Errorf("%w: leading dimension %q is not time", domain.ErrShapeMismatch, name)
		}
		return lens[0], nil
	default:
		return 0, fmt.Errorf("%w: %d dimensions", domain.ErrShapeMismatch, len(lens))
	}
}

func isTimeDim(name string) bool {
	for _, t := range timeNames {
		if name == t {
			return true
		}
	}
	return false
}

// readValues reads n values as float64, applying packing attributes and
// mapping fill values to NaN.
func readValues(v netcdf.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("var type: %w", err)
	}

	out := make([]float64, n)
	switch t {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		for i, x := range tmp {
			out[i] = float64(x)
		}
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		for i, x := range tmp {
			out[i] = float64(x)
		}
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		for i, x := range tmp {
			out[i] = float64(x)
		}
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}

	fill, hasFill := attrFloat(v, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(v, "missing_value")
	}
	scale, hasScale := attrFloat(v, "scale_factor")
	offset, hasOffset := attrFloat(v, "add_offset")
	if !hasScale {
		scale = 1
	}

	for i, x := range out {
		if hasFill && x == fill {
			out[i] = math.NaN()
			continue
		}
		if hasScale || hasOffset {
			out[i] = x*scale + offset
		}
	}
	return out, nil
}

// attrFloat reads the first value of a numeric attribute.
func attrFloat(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, n)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, n)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	buf16 := make([]int16, n)
	if err := a.ReadInt16s(buf16); err == nil {
		return float64(buf16[0]), true
	}
	return 0, false
}
