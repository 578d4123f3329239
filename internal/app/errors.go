package service

import "errors"

// Package error values.
var (
	// ErrNotStarted is returned when an operation needs a started service.
	ErrNotStarted = errors.New("service not started")

	// ErrInsufficientSamples is returned when a training start is attempted
	// below the annotated-sample threshold.
	ErrInsufficientSamples = errors.New("not enough annotated samples to train")
)
