package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/aquametrics/shrimpd/internal/trainsim"
)

// Default simulation constants.
const (
	defaultEpochs     = 10
	defaultBatch      = 16
	defaultImageSize  = 640
	defaultLR         = 0.01
	defaultEpochDelay = 100 * time.Millisecond
	defaultArtifact   = 1 << 20
)

func main() {
	var (
		dataPath     = flag.String("data", "", "Path to the dataset descriptor YAML")
		modelVariant = flag.String("model", "yolov8n", "Base model variant")
		epochs       = flag.Int("epochs", defaultEpochs, "Number of epochs to simulate")
		batch        = flag.Int("batch", defaultBatch, "Batch size")
		imgsz        = flag.Int("imgsz", defaultImageSize, "Input image size")
		lr           = flag.Float64("lr", defaultLR, "Initial learning rate")
		output       = flag.String("output", "", "Directory to drop the artifact into")
		epochDelay   = flag.Duration("epoch-delay", defaultEpochDelay, "Wall time simulated per epoch")
		failAt       = flag.Int("fail-at", 0, "Abort with an error at this epoch; 0 disables")
		artifactSize = flag.Int("artifact-size", defaultArtifact, "Size of the fake artifact in bytes")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		trainsim.ShowHelp()
		return
	}

	cfg := &trainsim.Config{
		DataPath:     *dataPath,
		ModelVariant: *modelVariant,
		Epochs:       *epochs,
		BatchSize:    *batch,
		ImageSize:    *imgsz,
		LearningRate: *lr,
		OutputDir:    *output,
		EpochDelay:   *epochDelay,
		FailAtEpoch:  *failAt,
		ArtifactSize: *artifactSize,
	}

	if _, err := trainsim.Run(context.Background(), cfg); err != nil {
		os.Exit(1)
	}
}
