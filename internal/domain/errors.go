package domain

import "errors"

// Configuration and programmer errors. None of them are transient, so callers
// should fail fast rather than retry.
var (
	ErrInvalidVariableChoice = errors.New("invalid variable choice")
	ErrInvalidResolution     = errors.New("invalid hexagon resolution")
	ErrShapeMismatch         = errors.New("grid shape mismatch")
	ErrMissingField          = errors.New("missing dataset field")
	ErrNoTimesteps           = errors.New("field has no time steps")
	ErrInvalidMagnitude      = errors.New("invalid wind magnitude")
	ErrInvalidDate           = errors.New("invalid reference date")
	ErrInvalidHours          = errors.New("invalid hour selection")
	ErrInvalidBoundingBox    = errors.New("invalid bounding box")
	ErrCountryNotFound       = errors.New("country not found")
	ErrStormNotFound         = errors.New("storm not found")
)
