// Command genmock writes synthetic ERA5-shaped NetCDF files into a data
// directory, named exactly as the CDS client names its downloads. A server
// pointed at that DATA_DIR serves maps from them without CDS credentials.
//
// Usage:
//
//	go run ./cmd/genmock -out wind_api_copernicus -country FRA -date 2010-02-28
//	go run ./cmd/genmock -out testdata -country DEU -date 2007-01-18 -variable sustained_100m -hours 0,6,12,18 -packed
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/couchcryptid/storm-wind-hexmap/internal/lookup"
	"github.com/couchcryptid/storm-wind-hexmap/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "wind_api_copernicus", "output data directory")
	country := flag.String("country", "FRA", "ISO3 country code")
	date := flag.String("date", "", "reference day, YYYY-MM-DD (required)")
	variables := flag.String("variable", "all", "gust, sustained_10m, sustained_100m or all")
	hours := flag.String("hours", "", "comma-separated hours, empty for the whole day")
	step := flag.Float64("step", mockdata.DefaultStep, "grid spacing in degrees")
	packed := flag.Bool("packed", false, "store fields as packed shorts like legacy ERA5 files")
	countriesFile := flag.String("countries", "", "country table CSV (default: embedded)")
	flag.Parse()

	if *date == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -date")
	}

	countries, err := lookup.LoadCountries(*countriesFile)
	if err != nil {
		return err
	}
	c, err := countries.Country(strings.ToUpper(*country))
	if err != nil {
		return err
	}
	day, err := domain.ParseDate(*date)
	if err != nil {
		return err
	}
	hourList, err := domain.ParseHours(*hours)
	if err != nil {
		return err
	}
	vars, err := selectVariables(*variables)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	for _, v := range vars {
		req := domain.MapRequest{Country: c.ISO3, Date: day, Hours: hourList, Variable: v}
		ds, err := mockdata.Storm(req, c.BBox, *step)
		if err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}
		path := filepath.Join(*out, req.DatasetName())
		if err := netcdf.Write(path, ds, netcdf.WriteOptions{Packed: *packed}); err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}
		f := ds.Fields[0]
		log.Printf("wrote %s (%d×%d grid, %d steps, fields %s)",
			path, len(f.Latitudes), len(f.Longitudes), f.Times, fieldNames(ds))
	}
	return nil
}

func selectVariables(s string) ([]domain.Variable, error) {
	if strings.EqualFold(s, "all") {
		return domain.Variables, nil
	}
	v, err := domain.ParseVariable(s)
	if err != nil {
		return nil, err
	}
	return []domain.Variable{v}, nil
}

func fieldNames(ds *domain.Dataset) string {
	names := make([]string, len(ds.Fields))
	for i, f := range ds.Fields {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}
