// Package model contains domain models passed between layers.
package model

import "fmt"

// Status enumerates the lifecycle states of a training run.
type Status string

// Training run states.
const (
	StatusIdle      Status = "idle"
	StatusPreparing Status = "preparing"
	StatusTraining  Status = "training"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Active reports whether the status denotes an in-flight run.
func (s Status) Active() bool {
	return s == StatusPreparing || s == StatusTraining
}

// TrainingStatus is the single process-wide training state record.
// Loss and Accuracy are pointers so "not yet observed" is distinguishable
// from a literal zero reading.
type TrainingStatus struct {
	Status       Status   `json:"status"`
	Progress     float64  `json:"progress"`
	CurrentEpoch int      `json:"current_epoch"`
	TotalEpochs  int      `json:"total_epochs"`
	Loss         *float64 `json:"loss,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Message      string   `json:"message"`
	ModelPath    string   `json:"model_path,omitempty"`
}

// TrainingConfig is the immutable input for one training run.
type TrainingConfig struct {
	ModelVariant string  `json:"model_variant"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	ImageSize    int     `json:"image_size"`
	LearningRate float64 `json:"learning_rate"`
	TrainSplit   float64 `json:"train_split"`
	ValSplit     float64 `json:"val_split"`
}

// Validate checks a training config once, before a run starts.
func (c TrainingConfig) Validate() error {
	switch {
	case c.ModelVariant == "":
		return fmt.Errorf("model_variant must not be empty")
	case c.Epochs < 1:
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.BatchSize < 1:
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	case c.ImageSize < 32:
		return fmt.Errorf("image_size must be at least 32, got %d", c.ImageSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	case c.TrainSplit <= 0 || c.TrainSplit > 1:
		return fmt.Errorf("train_split must be in (0,1], got %g", c.TrainSplit)
	case c.ValSplit < 0 || c.ValSplit > 1:
		return fmt.Errorf("val_split must be in [0,1], got %g", c.ValSplit)
	case c.TrainSplit+c.ValSplit > 1.0:
		return fmt.Errorf("train_split and val_split must sum to at most 1.0, got %g", c.TrainSplit+c.ValSplit)
	}
	return nil
}

// EventKind classifies a parsed progress event.
type EventKind string

// Progress event kinds emitted by the output parser.
const (
	EventEpoch        EventKind = "epoch"
	EventLoss         EventKind = "loss"
	EventInitProgress EventKind = "init_progress"
	EventTerminal     EventKind = "terminal"
)

// ProgressEvent is a transient, typed reading extracted from one line of
// trainer output. It is consumed immediately and never persisted.
type ProgressEvent struct {
	Kind EventKind

	// Epoch fields, set when Kind == EventEpoch.
	Epoch       int
	TotalEpochs int

	// Loss, set when Kind == EventLoss.
	Loss float64

	// Percent of the initialization phase, set when Kind == EventInitProgress.
	Percent float64

	// Message carries terminal success/error text when Kind == EventTerminal.
	Message string
}

// StatusUpdate is the wire payload pushed to live subscribers whenever the
// status record changes.
type StatusUpdate struct {
	Type         string   `json:"type"`
	Status       Status   `json:"status"`
	Progress     float64  `json:"progress"`
	Message      string   `json:"message"`
	CurrentEpoch int      `json:"current_epoch"`
	TotalEpochs  int      `json:"total_epochs"`
	Loss         *float64 `json:"loss,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
}

// UpdateTypeTraining is the Type value on every StatusUpdate.
const UpdateTypeTraining = "training_update"

// NewStatusUpdate copies a status snapshot into its broadcast form.
func NewStatusUpdate(s TrainingStatus) StatusUpdate {
	return StatusUpdate{
		Type:         UpdateTypeTraining,
		Status:       s.Status,
		Progress:     s.Progress,
		Message:      s.Message,
		CurrentEpoch: s.CurrentEpoch,
		TotalEpochs:  s.TotalEpochs,
		Loss:         s.Loss,
		Accuracy:     s.Accuracy,
	}
}
