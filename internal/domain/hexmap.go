package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/uber/h3-go/v3"
)

// RawRequest is an unprocessed map request read from the source topic.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// HexCell is one classified display cell.
type HexCell struct {
	Cell     string  `json:"cell"`
	MaxWind  float64 `json:"max_wind_kmh"`
	Color    Color   `json:"color"`
	Boundary []Geo   `json:"boundary"`
}

// HexMap is a fully classified map ready for rendering or publishing.
type HexMap struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Country        string        `json:"country"`
	Date           time.Time     `json:"date"`
	Hours          []int         `json:"hours"`
	Variable       Variable      `json:"variable"`
	BaseResolution int           `json:"base_resolution"`
	Resolution     int           `json:"resolution"`
	CellAreaKm2    float64       `json:"cell_area_km2"`
	Center         Geo           `json:"center"`
	Cells          []HexCell     `json:"cells"`
	Legend         []LegendEntry `json:"legend"`
	Warnings       []string      `json:"warnings,omitempty"`
	ProcessedAt    time.Time     `json:"processed_at"`
}

// MapID identifies the map for a dataset at a display resolution.
func MapID(datasetName string, resolution int) string {
	return datasetName + "@r" + strconv.Itoa(resolution)
}

// NewHexMap classifies every aggregated cell and attaches its boundary.
// Cells are ordered by H3 index so output is stable across runs.
func NewHexMap(req MapRequest, bbox BoundingBox, baseResolution int, agg AggregationMap) (HexMap, error) {
	legend, err := Legend(req.Variable)
	if err != nil {
		return HexMap{}, err
	}
	area, err := ResolutionAreaKm2(req.Resolution)
	if err != nil {
		return HexMap{}, err
	}

	ids := make([]h3.H3Index, 0, len(agg))
	for cell := range agg {
		ids = append(ids, cell)
	}
	slices.Sort(ids)

	cells := make([]HexCell, 0, len(ids))
	for _, id := range ids {
		value := agg[id]
		color, err := Classify(value, req.Variable)
		if err != nil {
			return HexMap{}, fmt.Errorf("classify cell %s: %w", h3.ToString(id), err)
		}
		cells = append(cells, HexCell{
			Cell:     h3.ToString(id),
			MaxWind:  value,
			Color:    color,
			Boundary: CellBoundary(id),
		})
	}

	return HexMap{
		ID:             MapID(req.DatasetName(), req.Resolution),
		Title:          req.Title(),
		Country:        req.Country,
		Date:           req.Date,
		Hours:          req.SelectedHours(),
		Variable:       req.Variable,
		BaseResolution: baseResolution,
		Resolution:     req.Resolution,
		CellAreaKm2:    area,
		Center:         bbox.Center(),
		Cells:          cells,
		Legend:         legend,
		ProcessedAt:    clock.Now(),
	}, nil
}

// SerializeHexMap marshals a map into an output event keyed by map ID.
func SerializeHexMap(m HexMap) (OutputEvent, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize hex map: %w", err)
	}
	return OutputEvent{
		Key:   []byte(m.ID),
		Value: data,
		Headers: map[string]string{
			"variable":     m.Variable.String(),
			"resolution":   strconv.Itoa(m.Resolution),
			"processed_at": m.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
