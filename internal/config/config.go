// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"

	"github.com/aquametrics/shrimpd/internal/domain/model"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UploadsDir holds raw uploaded images.
	UploadsDir string `koanf:"uploads_dir"`

	// AnnotationsDir holds per-sample annotation JSON files.
	AnnotationsDir string `koanf:"annotations_dir"`

	// DatasetDir is the staging root for train/val splits and the descriptor.
	DatasetDir string `koanf:"dataset_dir"`

	// ModelsDir receives trained model artifacts.
	ModelsDir string `koanf:"models_dir"`

	// TrainerCommand is the executable the launcher spawns for a training run.
	TrainerCommand string `koanf:"trainer_command"`

	// MinAnnotatedSamples gates training start.
	MinAnnotatedSamples int `koanf:"min_annotated_samples"`

	// MinArtifactBytes is the minimum size for a model artifact to count as real.
	MinArtifactBytes int64 `koanf:"min_artifact_bytes"`

	// WSWriteTimeout bounds each push-channel delivery attempt.
	WSWriteTimeout time.Duration `koanf:"ws_write_timeout"`

	// Training defaults applied when a start request omits fields.
	DefaultModelVariant string  `koanf:"default_model_variant"`
	DefaultEpochs       int     `koanf:"default_epochs"`
	DefaultBatchSize    int     `koanf:"default_batch_size"`
	DefaultImageSize    int     `koanf:"default_image_size"`
	DefaultLearningRate float64 `koanf:"default_learning_rate"`
	DefaultTrainSplit   float64 `koanf:"default_train_split"`
	DefaultValSplit     float64 `koanf:"default_val_split"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		UploadsDir:          "static/uploads",
		AnnotationsDir:      "static/annotations",
		DatasetDir:          "dataset",
		ModelsDir:           "models",
		TrainerCommand:      "shrimp-train",
		MinAnnotatedSamples: 5,
		MinArtifactBytes:    100_000,
		WSWriteTimeout:      5 * time.Second,
		DefaultModelVariant: "yolov8n",
		DefaultEpochs:       100,
		DefaultBatchSize:    16,
		DefaultImageSize:    640,
		DefaultLearningRate: 0.01,
		DefaultTrainSplit:   0.8,
		DefaultValSplit:     0.2,
	}
	return c
}

// TrainingDefaults bundles the configured training defaults.
func (c *Config) TrainingDefaults() model.TrainingConfig {
	return model.TrainingConfig{
		ModelVariant: c.DefaultModelVariant,
		Epochs:       c.DefaultEpochs,
		BatchSize:    c.DefaultBatchSize,
		ImageSize:    c.DefaultImageSize,
		LearningRate: c.DefaultLearningRate,
		TrainSplit:   c.DefaultTrainSplit,
		ValSplit:     c.DefaultValSplit,
	}
}
