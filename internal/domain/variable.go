package domain

import (
	"fmt"
	"strings"
)

// Variable selects which ERA5 wind quantity is reduced, aggregated and
// classified. The zero value is not a valid variable.
type Variable int

const (
	Gust Variable = iota + 1
	Sustained10m
	Sustained100m
)

// Variables lists every valid variable in display order.
var Variables = []Variable{Gust, Sustained10m, Sustained100m}

// variableSpec is the per-variable table: names on the wire, in the CDS request,
// in the downloaded NetCDF file, and in the map title.
type variableSpec struct {
	name       string
	aliases    []string
	cdsNames   []string
	fieldNames []string // [scalar] or [u, v]
	title      string
}

var variableSpecs = map[Variable]variableSpec{
	Gust: {
		name:       "gust",
		aliases:    []string{"rafale"},
		cdsNames:   []string{"instantaneous_10m_wind_gust"},
		fieldNames: []string{"i10fg"},
		title:      "Wind gust",
	},
	Sustained10m: {
		name:       "sustained_10m",
		aliases:    []string{"soutenu_10m"},
		cdsNames:   []string{"10m_u_component_of_wind", "10m_v_component_of_wind"},
		fieldNames: []string{"u10", "v10"},
		title:      "Sustained wind 10m",
	},
	Sustained100m: {
		name:       "sustained_100m",
		aliases:    []string{"soutenu_100m"},
		cdsNames:   []string{"100m_u_component_of_wind", "100m_v_component_of_wind"},
		fieldNames: []string{"u100", "v100"},
		title:      "Sustained wind 100m",
	},
}

// ParseVariable resolves a variable selector. Matching is case-insensitive and
// accepts the legacy French selectors (rafale, soutenu_10m, soutenu_100m).
func ParseVariable(s string) (Variable, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range Variables {
		spec := variableSpecs[v]
		if s == spec.name {
			return v, nil
		}
		for _, alias := range spec.aliases {
			if s == alias {
				return v, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q (use gust, sustained_10m or sustained_100m)", ErrInvalidVariableChoice, s)
}

// Valid reports whether v is one of the known variables.
func (v Variable) Valid() bool {
	_, ok := variableSpecs[v]
	return ok
}

func (v Variable) String() string {
	if spec, ok := variableSpecs[v]; ok {
		return spec.name
	}
	return fmt.Sprintf("Variable(%d)", int(v))
}

// Title is the human-readable name used in map titles and legends.
func (v Variable) Title() string {
	return variableSpecs[v].title
}

// CDSNames returns the variable names expected by the CDS retrieve API.
func (v Variable) CDSNames() ([]string, error) {
	spec, ok := variableSpecs[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVariableChoice, v)
	}
	return append([]string(nil), spec.cdsNames...), nil
}

// FieldNames returns the short names of the dataset fields the reducer reads.
func (v Variable) FieldNames() ([]string, error) {
	spec, ok := variableSpecs[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVariableChoice, v)
	}
	return append([]string(nil), spec.fieldNames...), nil
}

func (v Variable) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVariableChoice, v)
	}
	return []byte(v.String()), nil
}

func (v *Variable) UnmarshalText(text []byte) error {
	parsed, err := ParseVariable(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
