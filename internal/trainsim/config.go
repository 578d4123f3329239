package trainsim

import "time"

// Config holds configuration for one simulated training run.
type Config struct {
	DataPath     string        // Path to the dataset descriptor YAML
	ModelVariant string        // Base model variant, e.g. yolov8n
	Epochs       int           // Number of epochs to simulate
	BatchSize    int           // Batch size (reported only)
	ImageSize    int           // Input image size (reported only)
	LearningRate float64       // Initial learning rate for the loss curve
	OutputDir    string        // Directory to drop the artifact into
	EpochDelay   time.Duration // Wall time simulated per epoch
	FailAtEpoch  int           // Abort with an error at this epoch; 0 disables
	ArtifactSize int           // Size of the fake artifact in bytes
}

// Stats holds counters from one simulated run.
type Stats struct {
	EpochsRun    int
	FinalLoss    float64
	ArtifactPath string
	StartTime    time.Time
	Duration     time.Duration
}
