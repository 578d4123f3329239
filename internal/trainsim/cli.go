package trainsim

import "os"

// ShowHelp prints usage information for the training simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Shrimpd Training Simulator
==========================

Stands in for the real YOLO trainer so the orchestrator can be exercised
without a GPU. Speaks the same flag set and progress-line protocol.

Usage:
  go run cmd/train-sim/main.go [options]

Options:
  -data string
        Path to the dataset descriptor YAML (required)
  -model string
        Base model variant (default "yolov8n")
  -epochs int
        Number of epochs to simulate (default 10)
  -batch int
        Batch size, reported in progress lines (default 16)
  -imgsz int
        Input image size, reported in progress lines (default 640)
  -lr float
        Initial learning rate for the loss curve (default 0.01)
  -output string
        Directory to drop the artifact into (required)
  -epoch-delay duration
        Wall time simulated per epoch (default 100ms)
  -fail-at int
        Abort with an ERROR marker at this epoch; 0 disables
  -artifact-size int
        Size of the fake artifact in bytes (default 1 MiB)
  -help
        Show this help message

Examples:
  # Simulate a quick successful run
  go run cmd/train-sim/main.go -data dataset/dataset.yaml -output models -epochs 5

  # Simulate a failing run
  go run cmd/train-sim/main.go -data dataset/dataset.yaml -output models -fail-at 3
`)
}
