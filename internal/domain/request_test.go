package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })
}

func validRequest() MapRequest {
	return MapRequest{
		Country:    "FRA",
		Date:       time.Date(2010, time.February, 28, 0, 0, 0, 0, time.UTC),
		Variable:   Gust,
		Resolution: 4,
	}
}

func TestParseMapRequest(t *testing.T) {
	req, err := ParseMapRequest([]byte(`{"country":"fra","date":"2010-02-28","hours":[6,0],"variable":"soutenu_10m","resolution":5}`), 4)
	require.NoError(t, err)

	assert.Equal(t, "FRA", req.Country)
	assert.Equal(t, time.Date(2010, time.February, 28, 0, 0, 0, 0, time.UTC), req.Date)
	assert.Equal(t, []int{6, 0}, req.Hours)
	assert.Equal(t, Sustained10m, req.Variable)
	assert.Equal(t, 5, req.Resolution)

	req, err = ParseMapRequest([]byte(`{"country":"DEU","storm":" Kyrill ","variable":"gust","resolution":0}`), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, req.Resolution)
	assert.Equal(t, "Kyrill", req.Storm)
	assert.True(t, req.Date.IsZero())

	req, err = ParseMapRequest([]byte(`{"country":"DEU","date":"2007-01-18","variable":"gust"}`), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, req.Resolution)
}

func TestParseMapRequest_Errors(t *testing.T) {
	_, err := ParseMapRequest([]byte(`{not json`), 4)
	require.Error(t, err)

	_, err = ParseMapRequest([]byte(`{"country":"FRA","date":"2010-02-28","variable":"breeze"}`), 4)
	require.ErrorIs(t, err, ErrInvalidVariableChoice)

	_, err = ParseMapRequest([]byte(`{"country":"FRA","date":"28/02/2010","variable":"gust"}`), 4)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseHours(t *testing.T) {
	hours, err := ParseHours("0, 6,12:00")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 6, 12}, hours)

	hours, err = ParseHours("")
	require.NoError(t, err)
	assert.Nil(t, hours)

	_, err = ParseHours("noon")
	require.ErrorIs(t, err, ErrInvalidHours)
}

func TestMapRequest_Validate(t *testing.T) {
	freezeClock(t)

	require.NoError(t, validRequest().Validate(15))

	cases := []struct {
		name   string
		mutate func(*MapRequest)
		base   int
		want   error
	}{
		{"bad country", func(r *MapRequest) { r.Country = "France" }, 15, ErrCountryNotFound},
		{"bad variable", func(r *MapRequest) { r.Variable = 0 }, 15, ErrInvalidVariableChoice},
		{"parent above base", func(r *MapRequest) { r.Resolution = 10 }, 9, ErrInvalidResolution},
		{"missing date", func(r *MapRequest) { r.Date = time.Time{} }, 15, ErrInvalidDate},
		{"before ERA5", func(r *MapRequest) { r.Date = time.Date(1978, 12, 31, 0, 0, 0, 0, time.UTC) }, 15, ErrInvalidDate},
		{"inside reanalysis lag", func(r *MapRequest) { r.Date = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC) }, 15, ErrInvalidDate},
		{"hour out of range", func(r *MapRequest) { r.Hours = []int{24} }, 15, ErrInvalidHours},
		{"duplicate hour", func(r *MapRequest) { r.Hours = []int{3, 3} }, 15, ErrInvalidHours},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			require.ErrorIs(t, req.Validate(tc.base), tc.want)
		})
	}
}

func TestLatestAvailableDate(t *testing.T) {
	freezeClock(t)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), LatestAvailableDate())

	req := validRequest()
	req.Date = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, req.Validate(15))
}

func TestMapRequest_DatasetName(t *testing.T) {
	req := validRequest()
	assert.Equal(t, "era_data_FRA_2010_2_28_all_day_gust.nc", req.DatasetName())
	assert.True(t, req.AllDay())

	req.Hours = []int{18, 3, 4}
	req.Variable = Sustained100m
	assert.Equal(t, "era_data_FRA_2010_2_28_part_day_h03-04-18_sustained_100m.nc", req.DatasetName())
	assert.False(t, req.AllDay())
	assert.Equal(t, []int{18, 3, 4}, req.Hours, "SelectedHours must not reorder the caller's slice")
}

func TestMapRequest_Title(t *testing.T) {
	assert.Equal(t, "Wind gust FRA 28-2-2010", validRequest().Title())
}

func TestNewRetrievalRequest(t *testing.T) {
	req := validRequest()
	req.Variable = Sustained10m
	req.Hours = []int{7, 6}
	bbox := BoundingBox{LatMin: 41.3, LatMax: 51.1, LonMin: -5.2, LonMax: 9.6}

	rr, err := NewRetrievalRequest(req, bbox)
	require.NoError(t, err)

	assert.Equal(t, ERA5Dataset, rr.Dataset)
	assert.Equal(t, req.DatasetName(), rr.FileName)
	assert.Equal(t, []string{"reanalysis"}, rr.ProductType)
	assert.Equal(t, []string{"10m_u_component_of_wind", "10m_v_component_of_wind"}, rr.Variable)
	assert.Equal(t, []string{"2010"}, rr.Year)
	assert.Equal(t, []string{"02"}, rr.Month)
	assert.Equal(t, []string{"28"}, rr.Day)
	assert.Equal(t, []string{"06:00", "07:00"}, rr.Time)
	assert.Equal(t, "netcdf", rr.DataFormat)
	assert.Equal(t, "unarchived", rr.DownloadFormat)
	assert.Equal(t, [4]float64{51.1, -5.2, 41.3, 9.6}, rr.Area)

	all, err := NewRetrievalRequest(validRequest(), bbox)
	require.NoError(t, err)
	assert.Len(t, all.Time, 24)
	assert.Equal(t, "23:00", all.Time[23])

	_, err = NewRetrievalRequest(req, BoundingBox{LatMin: 10, LatMax: 5})
	require.ErrorIs(t, err, ErrInvalidBoundingBox)
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{LatMin: 40, LatMax: 50, LonMin: -4, LonMax: 8}
	require.NoError(t, b.Validate())
	assert.Equal(t, Geo{Lat: 45, Lon: 2}, b.Center())

	require.ErrorIs(t, BoundingBox{LatMin: -91, LatMax: 0}.Validate(), ErrInvalidBoundingBox)
	require.ErrorIs(t, BoundingBox{LonMin: 10, LonMax: 5}.Validate(), ErrInvalidBoundingBox)
}
