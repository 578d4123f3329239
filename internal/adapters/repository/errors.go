package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("entry not found")
	ErrArtifactTooSmall = errors.New("model artifact below minimum size")
	ErrInvalidName      = errors.New("invalid entry name")
)
