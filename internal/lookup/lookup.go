// Package lookup resolves countries and reference storms from CSV tables.
// The default tables are embedded; either can be replaced by a file on disk.
package lookup

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
)

//go:embed data/*.csv
var defaults embed.FS

var (
	countryHeader = []string{"name", "iso3", "lon_min", "lon_max", "lat_min", "lat_max"}
	stormHeader   = []string{"name", "date", "iso3"}
)

// Countries indexes countries by ISO3 code and by lower-cased name.
type Countries struct {
	byISO3 map[string]domain.Country
	byName map[string]string
}

// Storms indexes reference storms by lower-cased name.
type Storms struct {
	byName map[string]domain.Storm
}

// LoadCountries reads the country table at path, or the embedded table when
// path is empty.
func LoadCountries(path string) (*Countries, error) {
	rows, err := readTable(path, "data/countries.csv", countryHeader)
	if err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}
	return ParseCountries(rows)
}

// ParseCountries builds the index from header-less rows.
func ParseCountries(rows [][]string) (*Countries, error) {
	c := &Countries{
		byISO3: make(map[string]domain.Country, len(rows)),
		byName: make(map[string]string, len(rows)),
	}
	for i, row := range rows {
		country, err := parseCountry(row)
		if err != nil {
			return nil, fmt.Errorf("country row %d: %w", i+1, err)
		}
		if _, dup := c.byISO3[country.ISO3]; dup {
			return nil, fmt.Errorf("country row %d: duplicate iso3 %s", i+1, country.ISO3)
		}
		c.byISO3[country.ISO3] = country
		c.byName[strings.ToLower(country.Name)] = country.ISO3
	}
	return c, nil
}

func parseCountry(row []string) (domain.Country, error) {
	iso3 := strings.ToUpper(strings.TrimSpace(row[1]))
	if len(iso3) != 3 {
		return domain.Country{}, fmt.Errorf("iso3 %q must have 3 letters", row[1])
	}
	var edges [4]float64
	for k := range edges {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[2+k]), 64)
		if err != nil {
			return domain.Country{}, fmt.Errorf("%s: %w", countryHeader[2+k], err)
		}
		edges[k] = v
	}
	bbox := domain.BoundingBox{LonMin: edges[0], LonMax: edges[1], LatMin: edges[2], LatMax: edges[3]}
	if err := bbox.Validate(); err != nil {
		return domain.Country{}, fmt.Errorf("%s: %w", iso3, err)
	}
	return domain.Country{Name: strings.TrimSpace(row[0]), ISO3: iso3, BBox: bbox}, nil
}

// Country returns the country with the given ISO3 code (case-insensitive).
func (c *Countries) Country(iso3 string) (domain.Country, error) {
	country, ok := c.byISO3[strings.ToUpper(strings.TrimSpace(iso3))]
	if !ok {
		return domain.Country{}, fmt.Errorf("%w: %q", domain.ErrCountryNotFound, iso3)
	}
	return country, nil
}

// ByName returns the country with the given display name (case-insensitive).
func (c *Countries) ByName(name string) (domain.Country, error) {
	iso3, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.Country{}, fmt.Errorf("%w: %q", domain.ErrCountryNotFound, name)
	}
	return c.byISO3[iso3], nil
}

// All returns every country sorted by name.
func (c *Countries) All() []domain.Country {
	out := make([]domain.Country, 0, len(c.byISO3))
	for _, country := range c.byISO3 {
		out = append(out, country)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadStorms reads the storm table at path, or the embedded table when path is empty.
func LoadStorms(path string) (*Storms, error) {
	rows, err := readTable(path, "data/storms.csv", stormHeader)
	if err != nil {
		return nil, fmt.Errorf("load storms: %w", err)
	}
	return ParseStorms(rows)
}

// ParseStorms builds the index from header-less rows.
func ParseStorms(rows [][]string) (*Storms, error) {
	s := &Storms{byName: make(map[string]domain.Storm, len(rows))}
	for i, row := range rows {
		date, err := domain.ParseDate(row[1])
		if err != nil {
			return nil, fmt.Errorf("storm row %d: %w", i+1, err)
		}
		storm := domain.Storm{
			Name: strings.TrimSpace(row[0]),
			Date: date,
			ISO3: strings.ToUpper(strings.TrimSpace(row[2])),
		}
		s.byName[strings.ToLower(storm.Name)] = storm
	}
	return s, nil
}

// Storm returns the storm with the given name (case-insensitive).
func (s *Storms) Storm(name string) (domain.Storm, error) {
	storm, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.Storm{}, fmt.Errorf("%w: %q", domain.ErrStormNotFound, name)
	}
	return storm, nil
}

// All returns every storm, most recent first.
func (s *Storms) All() []domain.Storm {
	out := make([]domain.Storm, 0, len(s.byName))
	for _, storm := range s.byName {
		out = append(out, storm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func readTable(path, embedded string, header []string) ([][]string, error) {
	var r io.Reader
	if path == "" {
		f, err := defaults.Open(embedded)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readCSV(r, header)
}

// readCSV reads a table and checks its header row. Returned rows exclude the header.
func readCSV(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	got, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty table")
	}
	if err != nil {
		return nil, err
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(strings.TrimPrefix(got[i], "\ufeff"))) != col {
			return nil, fmt.Errorf("column %d is %q, want %q", i+1, got[i], col)
		}
	}
	return cr.ReadAll()
}
