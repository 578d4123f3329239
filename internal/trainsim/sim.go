// Package trainsim simulates a YOLO-style training process for exercising
// the orchestrator without a GPU. It reads the dataset descriptor, prints
// the same progress lines a real trainer would, drops a fake artifact and
// reports it with a terminal marker.
package trainsim

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Simulation tuning constants.
const (
	downloadSteps       = 4
	lossJitterDivisor   = 1000
	lossJitterScale     = 0.05
	lossDecayRate       = 0.82
	initialLossBase     = 1.2
	defaultArtifactSize = 1 << 20
	artifactPermission  = 0o644
	artifactName        = "shrimp_best.pt"
)

// descriptor mirrors the dataset YAML fields the simulator checks.
type descriptor struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// jitter returns a random float64 in [0, scale) using crypto/rand.
func jitter(scale float64) float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(lossJitterDivisor))
	return float64(n.Int64()) / float64(lossJitterDivisor) * scale
}

// Run executes one simulated training run, writing progress lines to
// stdout exactly as the launcher expects to parse them.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	if err := validate(cfg); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return stats, err
	}

	desc, err := readDescriptor(cfg.DataPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return stats, err
	}
	fmt.Printf("Loaded dataset %s: %d classes %v\n", cfg.DataPath, desc.NC, desc.Names)

	simulateDownload(cfg.ModelVariant)

	loss := initialLossBase + cfg.LearningRate
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			fmt.Println("ERROR: training interrupted")
			return stats, fmt.Errorf("training interrupted: %w", ctx.Err())
		case <-time.After(cfg.EpochDelay):
		}

		if cfg.FailAtEpoch > 0 && epoch == cfg.FailAtEpoch {
			fmt.Printf("ERROR: simulated failure at epoch %d\n", epoch)
			return stats, fmt.Errorf("simulated failure at epoch %d", epoch)
		}

		loss = loss*lossDecayRate + jitter(lossJitterScale)
		fmt.Printf("Epoch %d/%d: box_loss=%.4f loss=%.4f imgsz=%d batch=%d\n",
			epoch, cfg.Epochs, loss*0.6, loss, cfg.ImageSize, cfg.BatchSize)

		stats.EpochsRun = epoch
		stats.FinalLoss = loss
	}

	artifact, err := writeArtifact(cfg)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return stats, err
	}
	stats.ArtifactPath = artifact
	stats.Duration = time.Since(stats.StartTime)

	fmt.Printf("Results saved to %s\n", cfg.OutputDir)
	fmt.Printf("SUCCESS: %s\n", artifact)
	return stats, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.DataPath == "":
		return fmt.Errorf("missing --data")
	case cfg.OutputDir == "":
		return fmt.Errorf("missing --output")
	case cfg.Epochs < 1:
		return fmt.Errorf("epochs must be at least 1")
	}
	return nil
}

func readDescriptor(path string) (*descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset descriptor: %w", err)
	}
	var desc descriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parsing dataset descriptor: %w", err)
	}
	if desc.NC < 1 {
		return nil, fmt.Errorf("dataset descriptor declares no classes")
	}
	return &desc, nil
}

// simulateDownload prints weight-download progress the way ultralytics does.
func simulateDownload(variant string) {
	if variant == "" {
		variant = "yolov8n"
	}
	for step := 0; step <= downloadSteps; step++ {
		pct := step * 100 / downloadSteps
		fmt.Printf("Downloading %s.pt: %d%%\n", variant, pct)
	}
}

func writeArtifact(cfg *Config) (string, error) {
	size := cfg.ArtifactSize
	if size <= 0 {
		size = defaultArtifactSize
	}

	path := filepath.Join(cfg.OutputDir, artifactName)
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(path, make([]byte, size), artifactPermission); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}
