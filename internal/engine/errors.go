package engine

import "errors"

var (
	// ErrMissingColumn indicates no usable metric column could be identified.
	ErrMissingColumn = errors.New("engine: no usable metric column")

	// ErrInsufficientData indicates a growth metric was requested over fewer than two periods.
	ErrInsufficientData = errors.New("engine: insufficient data: at least 2 periods required")

	// ErrUndefinedGrowth indicates a compound growth rate has no real value,
	// e.g. a negative last value raised to a fractional exponent.
	ErrUndefinedGrowth = errors.New("engine: undefined growth rate")

	// ErrNoGroupFields indicates GroupAndSum was called without grouping fields.
	ErrNoGroupFields = errors.New("engine: at least one group field required")

	// ErrEmptyMetric indicates an empty metric column name.
	ErrEmptyMetric = errors.New("engine: metric column required")
)
