package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// ERA5Dataset is the CDS dataset holding hourly single-level reanalysis.
	ERA5Dataset = "reanalysis-era5-single-levels"

	// dateLayout is the wire format of request dates.
	dateLayout = "2006-01-02"

	// reanalysisLag is how far behind real time ERA5 data becomes available.
	reanalysisLag = 5 * 24 * time.Hour
)

// firstReanalysisDay is the first day covered by ERA5 in the CDS catalogue.
var firstReanalysisDay = time.Date(1979, time.January, 1, 0, 0, 0, 0, time.UTC)

// MapRequest selects one hex map: a country, a day, a set of hours, a wind
// variable and the display resolution. When Storm is set and Date is zero, the
// storm's reference date is used.
type MapRequest struct {
	Country    string    `json:"country"`
	Date       time.Time `json:"date"`
	Hours      []int     `json:"hours,omitempty"`
	Variable   Variable  `json:"variable"`
	Resolution int       `json:"resolution"`
	Storm      string    `json:"storm,omitempty"`
}

// rawMapRequest is the JSON shape accepted on the request topic.
type rawMapRequest struct {
	Country    string `json:"country"`
	Date       string `json:"date"`
	Hours      []int  `json:"hours"`
	Variable   string `json:"variable"`
	Resolution *int   `json:"resolution"`
	Storm      string `json:"storm"`
}

// ParseMapRequest decodes a JSON map request. A missing resolution falls back
// to defaultResolution. Semantic checks are left to Validate.
func ParseMapRequest(data []byte, defaultResolution int) (MapRequest, error) {
	var raw rawMapRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return MapRequest{}, fmt.Errorf("parse map request: %w", err)
	}

	req := MapRequest{
		Country:    strings.ToUpper(strings.TrimSpace(raw.Country)),
		Hours:      raw.Hours,
		Resolution: defaultResolution,
		Storm:      strings.TrimSpace(raw.Storm),
	}
	if raw.Resolution != nil {
		req.Resolution = *raw.Resolution
	}

	v, err := ParseVariable(raw.Variable)
	if err != nil {
		return MapRequest{}, err
	}
	req.Variable = v

	if raw.Date != "" {
		if req.Date, err = ParseDate(raw.Date); err != nil {
			return MapRequest{}, err
		}
	}
	return req, nil
}

// ParseDate parses a YYYY-MM-DD day in UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, s)
	}
	return d, nil
}

// ParseHours parses a comma-separated hour list such as "0,6,12". An empty
// string selects the whole day.
func ParseHours(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	hours := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSuffix(strings.TrimSpace(p), ":00")
		h, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHours, p)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

// Validate checks the request against the reanalysis availability window and
// the configured base resolution.
func (r MapRequest) Validate(baseResolution int) error {
	if len(r.Country) != 3 {
		return fmt.Errorf("%w: %q is not an ISO3 code", ErrCountryNotFound, r.Country)
	}
	if !r.Variable.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidVariableChoice, r.Variable)
	}
	if err := ValidateResolutions(baseResolution, r.Resolution); err != nil {
		return err
	}
	if err := validateDate(r.Date); err != nil {
		return err
	}
	return validateHours(r.Hours)
}

// LatestAvailableDate is the most recent day with published reanalysis data.
func LatestAvailableDate() time.Time {
	return clock.Now().UTC().Add(-reanalysisLag).Truncate(24 * time.Hour)
}

func validateDate(d time.Time) error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	day := d.UTC().Truncate(24 * time.Hour)
	if day.Before(firstReanalysisDay) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDate, day.Format(dateLayout), firstReanalysisDay.Format(dateLayout))
	}
	if latest := LatestAvailableDate(); day.After(latest) {
		return fmt.Errorf("%w: %s is after latest available day %s", ErrInvalidDate, day.Format(dateLayout), latest.Format(dateLayout))
	}
	return nil
}

func validateHours(hours []int) error {
	seen := make(map[int]bool, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: hour %d outside [0, 23]", ErrInvalidHours, h)
		}
		if seen[h] {
			return fmt.Errorf("%w: hour %d selected twice", ErrInvalidHours, h)
		}
		seen[h] = true
	}
	return nil
}

// SelectedHours returns the sorted hour list, expanding an empty selection to
// all 24 hours.
func (r MapRequest) SelectedHours() []int {
	if len(r.Hours) == 0 {
		all := make([]int, 24)
		for h := range all {
			all[h] = h
		}
		return all
	}
	hours := slices.Clone(r.Hours)
	slices.Sort(hours)
	return hours
}

// AllDay reports whether every hour of the day is selected.
func (r MapRequest) AllDay() bool {
	return len(r.SelectedHours()) == 24
}

// DatasetName is the file name of the download backing this request. It is
// also the dataset identity for the aggregation cache, so every input that
// changes the downloaded data appears in it.
func (r MapRequest) DatasetName() string {
	span := "all_day"
	if !r.AllDay() {
		parts := make([]string, 0, len(r.Hours))
		for _, h := range r.SelectedHours() {
			parts = append(parts, fmt.Sprintf("%02d", h))
		}
		span = "part_day_h" + strings.Join(parts, "-")
	}
	return fmt.Sprintf("era_data_%s_%d_%d_%d_%s_%s.nc",
		r.Country, r.Date.Year(), int(r.Date.Month()), r.Date.Day(), span, r.Variable)
}

// Title is the map heading, e.g. "Wind gust FRA 28-2-2010".
func (r MapRequest) Title() string {
	return fmt.Sprintf("%s %s %d-%d-%d", r.Variable.Title(), r.Country, r.Date.Day(), int(r.Date.Month()), r.Date.Year())
}

// RetrievalRequest is the body of a CDS retrieve call for one MapRequest.
type RetrievalRequest struct {
	Dataset        string     `json:"-"`
	FileName       string     `json:"-"`
	ProductType    []string   `json:"product_type"`
	Variable       []string   `json:"variable"`
	Year           []string   `json:"year"`
	Month          []string   `json:"month"`
	Day            []string   `json:"day"`
	Time           []string   `json:"time"`
	DataFormat     string     `json:"data_format"`
	DownloadFormat string     `json:"download_format"`
	Area           [4]float64 `json:"area"`
}

// NewRetrievalRequest builds the CDS request for a map request over a bounding box.
func NewRetrievalRequest(r MapRequest, bbox BoundingBox) (RetrievalRequest, error) {
	vars, err := r.Variable.CDSNames()
	if err != nil {
		return RetrievalRequest{}, err
	}
	if err := bbox.Validate(); err != nil {
		return RetrievalRequest{}, err
	}

	hours := r.SelectedHours()
	times := make([]string, len(hours))
	for i, h := range hours {
		times[i] = fmt.Sprintf("%02d:00", h)
	}

	return RetrievalRequest{
		Dataset:        ERA5Dataset,
		FileName:       r.DatasetName(),
		ProductType:    []string{"reanalysis"},
		Variable:       vars,
		Year:           []string{strconv.Itoa(r.Date.Year())},
		Month:          []string{fmt.Sprintf("%02d", int(r.Date.Month()))},
		Day:            []string{fmt.Sprintf("%02d", r.Date.Day())},
		Time:           times,
		DataFormat:     "netcdf",
		DownloadFormat: "unarchived",
		Area:           bbox.Area(),
	}, nil
}
