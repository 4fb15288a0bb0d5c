package domain

import (
	"fmt"
	"math"
)

// Color is a map fill color understood by Leaflet (CSS name or hex).
type Color string

const (
	Green      Color = "green"
	Yellow     Color = "yellow"
	Orange     Color = "orange"
	DarkOrange Color = "#FF8C00"
	Red        Color = "red"
)

// bandColors is the color of each band, lowest severity first.
var bandColors = [...]Color{Green, Yellow, Orange, DarkOrange, Red}

// bandThresholds are the lower bounds (km/h) of bands 1..4; band 0 starts at -Inf.
// The top band is "> 130" (or "> 170"), so its bound sits just above the integer.
//   - gust, 10 m sustained: 31 / 71 / 101 / >130
//   - 100 m sustained: 31 / 71 / 131 / >170
var bandThresholds = map[Variable][4]float64{
	Gust:          {31, 71, 101, above(130)},
	Sustained10m:  {31, 71, 101, above(130)},
	Sustained100m: {31, 71, 131, above(170)},
}

// above returns the smallest float greater than x.
func above(x float64) float64 {
	return math.Nextafter(x, math.Inf(1))
}

// Band is one severity class. Lower is inclusive, Upper exclusive; the first
// band has Lower = -Inf and the last Upper = +Inf.
type Band struct {
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	Color       Color   `json:"color"`
	Description string  `json:"description"`
}

// Contains reports whether value falls inside the band.
func (b Band) Contains(value float64) bool {
	return value >= b.Lower && value < b.Upper
}

// Bands returns the severity bands for a variable, lowest first.
func Bands(v Variable) ([]Band, error) {
	th, ok := bandThresholds[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVariableChoice, v)
	}
	bands := make([]Band, len(bandColors))
	lower := math.Inf(-1)
	for i, color := range bandColors {
		upper := math.Inf(1)
		if i < len(th) {
			upper = th[i]
		}
		bands[i] = Band{Lower: lower, Upper: upper, Color: color, Description: describeBand(lower, upper)}
		lower = upper
	}
	return bands, nil
}

// Classify maps an aggregated magnitude (km/h) to its band color.
func Classify(value float64, v Variable) (Color, error) {
	th, ok := bandThresholds[v]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidVariableChoice, v)
	}
	if math.IsNaN(value) {
		return "", fmt.Errorf("%w: NaN", ErrInvalidMagnitude)
	}
	for i, lower := range th {
		if value < lower {
			return bandColors[i], nil
		}
	}
	return bandColors[len(bandColors)-1], nil
}

// LegendEntry is one legend row.
type LegendEntry struct {
	Range string `json:"range"`
	Color Color  `json:"color"`
}

// Legend lists the (range, color) rows for a variable, lowest severity first.
func Legend(v Variable) ([]LegendEntry, error) {
	bands, err := Bands(v)
	if err != nil {
		return nil, err
	}
	entries := make([]LegendEntry, len(bands))
	for i, b := range bands {
		entries[i] = LegendEntry{Range: b.Description, Color: b.Color}
	}
	return entries, nil
}

func describeBand(lower, upper float64) string {
	switch {
	case math.IsInf(lower, -1):
		return fmt.Sprintf("< %g km/h", upper)
	case math.IsInf(upper, 1):
		return fmt.Sprintf("> %g km/h", math.Floor(lower))
	default:
		return fmt.Sprintf("%g - %g km/h", lower, math.Ceil(upper)-1)
	}
}
