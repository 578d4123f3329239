// Package types contains common types used across the application
package types

import "time"

// ModelInfo describes a trained model artifact for listing endpoints.
type ModelInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	Path       string    `json:"path"`
}
