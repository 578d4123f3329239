package dataset

import "errors"

// Package error values.
var (
	// ErrNoSamples is returned when no sample has both a saved annotation
	// and an existing source image.
	ErrNoSamples = errors.New("no qualifying annotated samples")

	// ErrInvalidSplit is returned for split fractions outside their ranges.
	ErrInvalidSplit = errors.New("invalid dataset split")
)
