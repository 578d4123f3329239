// Package repository defines the sample and artifact store interfaces and errors.
package repository

import (
	"context"

	model "github.com/aquametrics/shrimpd/internal/domain/model"
	types "github.com/aquametrics/shrimpd/internal/domain/types"
)

// AnnotationStore provides access to saved per-sample annotations.
type AnnotationStore interface {
	// Save persists the region list for one sample image.
	Save(ctx context.Context, ann model.Annotation) error

	// Get returns the annotation for an image.
	// Returns ErrNotFound if the image has no saved annotation.
	Get(ctx context.Context, imageName string) (model.Annotation, error)

	// List returns every saved annotation.
	List(ctx context.Context) ([]model.Annotation, error)

	// Count returns the number of annotated samples.
	Count(ctx context.Context) int
}

// ImageStore provides access to uploaded source images.
type ImageStore interface {
	// Path resolves an image name to its on-disk path.
	// Returns ErrNotFound if the image does not exist.
	Path(ctx context.Context, imageName string) (string, error)

	// Dimensions returns the pixel width and height of an image.
	Dimensions(ctx context.Context, imageName string) (int, int, error)

	// List returns the names of all uploaded images.
	List(ctx context.Context) ([]string, error)
}

// ArtifactStore provides access to trained model artifacts.
type ArtifactStore interface {
	// List returns metadata for every stored model artifact.
	List(ctx context.Context) ([]types.ModelInfo, error)

	// Stat returns metadata for one artifact by name.
	// Returns ErrNotFound if the artifact does not exist.
	Stat(ctx context.Context, name string) (types.ModelInfo, error)

	// Validate checks that an artifact at path exists and is large enough
	// to be a genuinely trained model rather than a stub file.
	Validate(ctx context.Context, path string) error
}
