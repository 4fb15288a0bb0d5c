package netcdf

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/fhs/go-netcdf/netcdf"
)

// packedFill is the fill value ERA5 uses for packed short variables.
const packedFill int16 = -32767

// WriteOptions controls the on-disk encoding of fields.
type WriteOptions struct {
	// Packed stores fields as short with scale_factor and add_offset, the
	// way legacy ERA5 NetCDF3 downloads are encoded.
	Packed bool
}

// Write stores ds as a NetCDF-4 file with dimensions (valid_time, latitude,
// longitude). All fields must share the first field's grid and time count.
func Write(path string, ds *domain.Dataset, opts WriteOptions) (err error) {
	if len(ds.Fields) == 0 {
		return errors.New("write netcdf: dataset has no fields")
	}
	first := ds.Fields[0]
	for i := range ds.Fields {
		f := &ds.Fields[i]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("write netcdf: %w", err)
		}
		if f.Times != first.Times || len(f.Latitudes) != len(first.Latitudes) || len(f.Longitudes) != len(first.Longitudes) {
			return fmt.Errorf("write netcdf: %w: field %s grid differs from %s", domain.ErrShapeMismatch, f.Name, first.Name)
		}
	}

	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := nc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	timeDim, err := nc.AddDim("valid_time", uint64(first.Times))
	if err != nil {
		return err
	}
	latDim, err := nc.AddDim("latitude", uint64(len(first.Latitudes)))
	if err != nil {
		return err
	}
	lonDim, err := nc.AddDim("longitude", uint64(len(first.Longitudes)))
	if err != nil {
		return err
	}

	latVar, err := nc.AddVar("latitude", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := nc.AddVar("longitude", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}
	timeVar, err := nc.AddVar("valid_time", netcdf.INT, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	if err := timeVar.Attr("units").WriteBytes([]byte("hours since start of day")); err != nil {
		return err
	}

	type pending struct {
		v      netcdf.Var
		field  *domain.Field
		scale  float64
		offset float64
	}
	fields := make([]pending, 0, len(ds.Fields))
	for i := range ds.Fields {
		f := &ds.Fields[i]
		p := pending{field: f}
		if opts.Packed {
			p.v, err = nc.AddVar(f.Name, netcdf.SHORT, []netcdf.Dim{timeDim, latDim, lonDim})
			if err != nil {
				return err
			}
			p.scale, p.offset = packing(f.Values)
			if err := p.v.Attr("scale_factor").WriteFloat64s([]float64{p.scale}); err != nil {
				return err
			}
			if err := p.v.Attr("add_offset").WriteFloat64s([]float64{p.offset}); err != nil {
				return err
			}
			if err := p.v.Attr("_FillValue").WriteInt16s([]int16{packedFill}); err != nil {
				return err
			}
		} else {
			p.v, err = nc.AddVar(f.Name, netcdf.FLOAT, []netcdf.Dim{timeDim, latDim, lonDim})
			if err != nil {
				return err
			}
		}
		if err := p.v.Attr("units").WriteBytes([]byte("m s**-1")); err != nil {
			return err
		}
		fields = append(fields, p)
	}

	if err := nc.EndDef(); err != nil {
		return err
	}

	if err := latVar.WriteFloat64s(first.Latitudes); err != nil {
		return err
	}
	if err := lonVar.WriteFloat64s(first.Longitudes); err != nil {
		return err
	}
	hours := make([]int32, first.Times)
	for i := range hours {
		hours[i] = int32(i)
	}
	if err := timeVar.WriteInt32s(hours); err != nil {
		return err
	}

	for _, p := range fields {
		if opts.Packed {
			if err := p.v.WriteInt16s(pack(p.field.Values, p.scale, p.offset)); err != nil {
				return fmt.Errorf("write %s: %w", p.field.Name, err)
			}
			continue
		}
		vals := make([]float32, len(p.field.Values))
		for i, x := range p.field.Values {
			vals[i] = float32(x)
		}
		if err := p.v.WriteFloat32s(vals); err != nil {
			return fmt.Errorf("write %s: %w", p.field.Name, err)
		}
	}
	return nil
}

// packing picks scale and offset so the finite range maps onto int16
// without touching the fill value.
func packing(values []float64) (scale, offset float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if math.IsInf(lo, 1) {
		return 1, 0
	}
	offset = (hi + lo) / 2
	scale = (hi - lo) / 65532
	if scale == 0 {
		scale = 1
	}
	return scale, offset
}

func pack(values []float64, scale, offset float64) []int16 {
	out := make([]int16, len(values))
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			out[i] = packedFill
			continue
		}
		out[i] = int16(math.Round((x - offset) / scale))
	}
	return out
}
