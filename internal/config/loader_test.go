package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/aquametrics/shrimpd/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.TrainerCommand, convey.ShouldEqual, "shrimp-train")
				convey.So(cfg.MinAnnotatedSamples, convey.ShouldEqual, 5)
				convey.So(cfg.DefaultModelVariant, convey.ShouldEqual, "yolov8n")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SHRIMPD_ADDR", ":8080")
			_ = os.Setenv("SHRIMPD_TRAINER_COMMAND", "/usr/local/bin/yolo-train")
			_ = os.Setenv("SHRIMPD_MIN_ANNOTATED_SAMPLES", "10")
			_ = os.Setenv("SHRIMPD_DEFAULT_EPOCHS", "50")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.TrainerCommand, convey.ShouldEqual, "/usr/local/bin/yolo-train")
				convey.So(cfg.MinAnnotatedSamples, convey.ShouldEqual, 10)
				convey.So(cfg.DefaultEpochs, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
dataset_dir: "/data/dataset"
models_dir: "/data/models"
default_epochs: 25
default_train_split: 0.7
default_val_split: 0.3
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SHRIMPD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DatasetDir, convey.ShouldEqual, "/data/dataset")
				convey.So(cfg.ModelsDir, convey.ShouldEqual, "/data/models")
				convey.So(cfg.DefaultEpochs, convey.ShouldEqual, 25)
				convey.So(cfg.DefaultTrainSplit, convey.ShouldEqual, 0.7)
				convey.So(cfg.DefaultValSplit, convey.ShouldEqual, 0.3)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
default_epochs: 25
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SHRIMPD_CONFIG", tmpFile)
			_ = os.Setenv("SHRIMPD_ADDR", ":8080") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")   // Overridden by env
				convey.So(cfg.DefaultEpochs, convey.ShouldEqual, 25) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SHRIMPD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SHRIMPD_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("SHRIMPD_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with splits that exceed 1.0", func() {
			_ = os.Setenv("SHRIMPD_DEFAULT_TRAIN_SPLIT", "0.9")
			_ = os.Setenv("SHRIMPD_DEFAULT_VAL_SPLIT", "0.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			yamlContent := `
addr: ":9090"
min_artifact_bytes: 500000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SHRIMPD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")                  // From file
				convey.So(cfg.MinArtifactBytes, convey.ShouldEqual, 500000)       // From file
				convey.So(cfg.MinAnnotatedSamples, convey.ShouldEqual, 5)         // From defaults
				convey.So(cfg.DefaultModelVariant, convey.ShouldEqual, "yolov8n") // From defaults
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"SHRIMPD_CONFIG",
		"SHRIMPD_ADDR",
		"SHRIMPD_TRAINER_COMMAND",
		"SHRIMPD_MIN_ANNOTATED_SAMPLES",
		"SHRIMPD_DEFAULT_EPOCHS",
		"SHRIMPD_DEFAULT_TRAIN_SPLIT",
		"SHRIMPD_DEFAULT_VAL_SPLIT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "shrimpd-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
