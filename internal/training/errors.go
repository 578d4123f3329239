package training

import "errors"

// Package error values.
var (
	// ErrAlreadyRunning is returned when a launch is attempted while a
	// worker process is still alive.
	ErrAlreadyRunning = errors.New("a training process is already running")

	// ErrNotRunning is returned when a stop is attempted with no worker.
	ErrNotRunning = errors.New("no training process is running")

	// ErrNoSuccessMarker is returned when the worker exits cleanly but
	// never reported a model path.
	ErrNoSuccessMarker = errors.New("worker exited without reporting a model path")
)
