package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if SHRIMPD_CONFIG is set
//  3. env (prefix SHRIMPD_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("SHRIMPD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SHRIMPD_ADDR, SHRIMPD_DATASET_DIR, ...
	// Map env keys like SHRIMPD_DATASET_DIR -> dataset_dir (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("SHRIMPD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "shrimpd_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs basic sanity checks on the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TrainerCommand == "":
		return fmt.Errorf("%w: trainer_command must not be empty", ErrInvalidConfig)
	case c.MinAnnotatedSamples < 1:
		return fmt.Errorf("%w: min_annotated_samples must be positive", ErrInvalidConfig)
	case c.DefaultTrainSplit <= 0 || c.DefaultTrainSplit > 1:
		return fmt.Errorf("%w: default_train_split must be in (0,1]", ErrInvalidConfig)
	case c.DefaultValSplit < 0 || c.DefaultValSplit > 1:
		return fmt.Errorf("%w: default_val_split must be in [0,1]", ErrInvalidConfig)
	case c.DefaultTrainSplit+c.DefaultValSplit > 1.0:
		return fmt.Errorf("%w: default splits must sum to at most 1.0", ErrInvalidConfig)
	}
	return nil
}
