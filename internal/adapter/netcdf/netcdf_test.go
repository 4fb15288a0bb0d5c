package netcdf

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/fhs/go-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader() *Loader {
	return NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// windDataset is a 2-step, 2x3 u/v dataset with one missing value.
func windDataset() *domain.Dataset {
	lats := []float64{49.0, 48.75}
	lons := []float64{1.5, 1.75, 2.0}
	return &domain.Dataset{Fields: []domain.Field{
		{Name: "u10", Times: 2, Latitudes: lats, Longitudes: lons, Values: []float64{
			1, 2, 3, 4, 5, 6,
			-7, 8, 9, 10, 11, math.NaN(),
		}},
		{Name: "v10", Times: 2, Latitudes: lats, Longitudes: lons, Values: []float64{
			0, 0, 0, 0, 0, 0,
			1.5, 2.5, 3.5, 4.5, 5.5, 6.5,
		}},
	}}
}

func TestWriteLoad_Float(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.nc")
	want := windDataset()
	require.NoError(t, Write(path, want, WriteOptions{}))

	got, err := testLoader().Load(context.Background(), path, []string{"u10", "v10"})
	require.NoError(t, err)

	assert.Equal(t, path, got.ID)
	require.Len(t, got.Fields, 2)
	for i, f := range got.Fields {
		assert.Equal(t, want.Fields[i].Name, f.Name)
		assert.Equal(t, 2, f.Times)
		assert.Equal(t, want.Fields[i].Latitudes, f.Latitudes)
		assert.Equal(t, want.Fields[i].Longitudes, f.Longitudes)
		require.Len(t, f.Values, 12)
		for k, x := range want.Fields[i].Values {
			if math.IsNaN(x) {
				assert.True(t, math.IsNaN(f.Values[k]))
				continue
			}
			assert.InDelta(t, x, f.Values[k], 1e-6)
		}
	}
}

func TestWriteLoad_PackedUnpacksAndMasksFill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packed.nc")
	want := windDataset()
	require.NoError(t, Write(path, want, WriteOptions{Packed: true}))

	got, err := testLoader().Load(context.Background(), path, []string{"u10"})
	require.NoError(t, err)
	require.Len(t, got.Fields, 1)

	values := got.Fields[0].Values
	for k, x := range want.Fields[0].Values {
		if math.IsNaN(x) {
			assert.True(t, math.IsNaN(values[k]), "fill at %d should load as NaN", k)
			continue
		}
		// Quantization step is range/65532.
		assert.InDelta(t, x, values[k], 18.0/65532)
	}
}

func TestLoad_FeedsReducer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wind.nc")
	require.NoError(t, Write(path, windDataset(), WriteOptions{}))

	names, err := domain.Sustained10m.FieldNames()
	require.NoError(t, err)
	ds, err := testLoader().Load(context.Background(), path, names)
	require.NoError(t, err)

	wf, err := domain.ReduceWindField(ds, domain.Sustained10m)
	require.NoError(t, err)
	// Point (0,0): max u = 1, max v = 1.5.
	assert.InDelta(t, 3.6*math.Hypot(1, 1.5), wf.Magnitude[0][0], 1e-5)
}

func TestLoad_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wind.nc")
	require.NoError(t, Write(path, windDataset(), WriteOptions{}))

	_, err := testLoader().Load(context.Background(), path, []string{"i10fg"})
	require.ErrorIs(t, err, domain.ErrMissingField)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := testLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.nc"), []string{"u10"})
	require.Error(t, err)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testLoader().Load(ctx, "unused.nc", []string{"u10"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_TwoDimensionalField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.nc")
	writeRaw(t, path, func(nc netcdf.Dataset, lat, lon netcdf.Dim) {
		v, err := nc.AddVar("i10fg", netcdf.DOUBLE, []netcdf.Dim{lat, lon})
		require.NoError(t, err)
		require.NoError(t, nc.EndDef())
		require.NoError(t, v.WriteFloat64s([]float64{10, 20}))
	})

	ds, err := testLoader().Load(context.Background(), path, []string{"i10fg"})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Fields[0].Times)
	assert.Equal(t, []float64{10, 20}, ds.Fields[0].Values)
}

func TestLoad_GridMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nc")
	writeRaw(t, path, func(nc netcdf.Dataset, _, lon netcdf.Dim) {
		other, err := nc.AddDim("level", 3)
		require.NoError(t, err)
		v, err := nc.AddVar("i10fg", netcdf.DOUBLE, []netcdf.Dim{other, lon})
		require.NoError(t, err)
		require.NoError(t, nc.EndDef())
		require.NoError(t, v.WriteFloat64s(make([]float64, 6)))
	})

	_, err := testLoader().Load(context.Background(), path, []string{"i10fg"})
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestWrite_Errors(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, Write(filepath.Join(dir, "empty.nc"), &domain.Dataset{}, WriteOptions{}))

	bad := windDataset()
	bad.Fields[1].Values = bad.Fields[1].Values[:5]
	require.ErrorIs(t, Write(filepath.Join(dir, "bad.nc"), bad, WriteOptions{}), domain.ErrShapeMismatch)
}

func TestPacking(t *testing.T) {
	scale, offset := packing([]float64{math.NaN(), -10, 30})
	assert.InDelta(t, 10.0, offset, 1e-12)
	assert.InDelta(t, 40.0/65532, scale, 1e-12)

	scale, offset = packing([]float64{5, 5})
	assert.InDelta(t, 1.0, scale, 0)
	assert.InDelta(t, 5.0, offset, 0)

	packed := pack([]float64{-10, 30, math.Inf(1)}, 40.0/65532, 10)
	assert.Equal(t, []int16{-32766, 32766, packedFill}, packed)
}

// writeRaw creates a file with a 1x2 latitude/longitude grid and lets body
// add the data variables.
func writeRaw(t *testing.T, path string, body func(nc netcdf.Dataset, lat, lon netcdf.Dim)) {
	t.Helper()
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	require.NoError(t, err)
	defer func() { require.NoError(t, nc.Close()) }()

	lat, err := nc.AddDim("latitude", 1)
	require.NoError(t, err)
	lon, err := nc.AddDim("longitude", 2)
	require.NoError(t, err)
	latVar, err := nc.AddVar("latitude", netcdf.DOUBLE, []netcdf.Dim{lat})
	require.NoError(t, err)
	lonVar, err := nc.AddVar("longitude", netcdf.DOUBLE, []netcdf.Dim{lon})
	require.NoError(t, err)

	body(nc, lat, lon)

	require.NoError(t, latVar.WriteFloat64s([]float64{45}))
	require.NoError(t, lonVar.WriteFloat64s([]float64{3, 3.25}))
}
