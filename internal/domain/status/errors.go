package status

import "errors"

// Package error values.
var (
	// ErrAlreadyActive is returned when a start is attempted while a run
	// is already preparing or training.
	ErrAlreadyActive = errors.New("training already in progress")

	// ErrNoActiveRun is returned when a stop is attempted with no run active.
	ErrNoActiveRun = errors.New("no training run is active")
)
