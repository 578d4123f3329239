// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	repository "github.com/aquametrics/shrimpd/internal/adapters/repository"
	ws "github.com/aquametrics/shrimpd/internal/adapters/ws"
	"github.com/aquametrics/shrimpd/internal/dataset"
	"github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/internal/domain/progress"
	"github.com/aquametrics/shrimpd/internal/domain/status"
	"github.com/aquametrics/shrimpd/internal/domain/types"
	"github.com/aquametrics/shrimpd/internal/training"
	"github.com/aquametrics/shrimpd/pkg/logger"
	"github.com/aquametrics/shrimpd/pkg/metrics"
)

// Progress-band mapping for the preparation phase. Dataset staging covers
// the start of the band; weight downloads during worker startup cover the
// rest, up to just below the training band.
const (
	prepStagingSpan   = 15.0
	downloadBandStart = 15.0
	downloadBandSpan  = 9.0
)

// VariantInfo describes one selectable base model.
type VariantInfo struct {
	Name        string `json:"name"`
	Params      string `json:"params"`
	Description string `json:"description"`
}

// Model variants the trainer accepts, smallest first.
var variantCatalog = []VariantInfo{
	{Name: "yolov8n", Params: "3.2M", Description: "nano, fastest, good for small datasets"},
	{Name: "yolov8s", Params: "11.2M", Description: "small, balanced speed and accuracy"},
	{Name: "yolov8m", Params: "25.9M", Description: "medium, best accuracy, needs more data"},
}

// Sample-count thresholds for the variant recommendation.
const (
	smallDatasetSamples  = 50
	mediumDatasetSamples = 500
)

// recommendVariant picks a base model sized to the annotated dataset.
func recommendVariant(samples int) string {
	switch {
	case samples < smallDatasetSamples:
		return "yolov8n"
	case samples < mediumDatasetSamples:
		return "yolov8s"
	default:
		return "yolov8m"
	}
}

func variantNames() []string {
	names := make([]string, len(variantCatalog))
	for i, v := range variantCatalog {
		names[i] = v.Name
	}
	return names
}

// TrainingOptions describes what a start request may set, for UI forms.
type TrainingOptions struct {
	ModelVariants    []string             `json:"model_variants"`
	Variants         []VariantInfo        `json:"variants"`
	Recommended      string               `json:"recommended"`
	Defaults         model.TrainingConfig `json:"defaults"`
	MinSamples       int                  `json:"min_samples"`
	AnnotatedSamples int                  `json:"annotated_samples"`
}

// Service implements the API dependencies for the training system.
type Service struct {
	mu sync.RWMutex

	// Core components
	annotations repository.AnnotationStore
	images      repository.ImageStore
	artifacts   *repository.FileArtifactStore
	preparer    *dataset.Preparer
	launcher    *training.Launcher
	status      *status.Store
	hub         *ws.Hub

	// Configuration
	uploadsDir       string
	annotationsDir   string
	datasetDir       string
	modelsDir        string
	trainerCommand   string
	minSamples       int
	minArtifactBytes int64
	wsWriteTimeout   time.Duration
	classNames       []string
	defaults         model.TrainingConfig

	// State
	started       bool
	runCancel     context.CancelFunc
	stopRequested bool
	runStarted    time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataDirs sets the uploads, annotations, dataset, and models roots.
func WithDataDirs(uploads, annotations, datasetDir, models string) Option {
	return func(s *Service) {
		if uploads != "" {
			s.uploadsDir = uploads
		}
		if annotations != "" {
			s.annotationsDir = annotations
		}
		if datasetDir != "" {
			s.datasetDir = datasetDir
		}
		if models != "" {
			s.modelsDir = models
		}
	}
}

// WithTrainerCommand sets the executable spawned for a training run.
func WithTrainerCommand(command string) Option {
	return func(s *Service) {
		if command != "" {
			s.trainerCommand = command
		}
	}
}

// WithMinAnnotatedSamples sets the threshold gating a training start.
func WithMinAnnotatedSamples(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minSamples = n
		}
	}
}

// WithMinArtifactBytes sets the minimum valid model artifact size.
func WithMinArtifactBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.minArtifactBytes = n
		}
	}
}

// WithTrainingDefaults sets the config applied when a start request omits
// fields.
func WithTrainingDefaults(defaults model.TrainingConfig) Option {
	return func(s *Service) {
		s.defaults = defaults
	}
}

// WithWSWriteTimeout bounds push-channel delivery attempts.
func WithWSWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.wsWriteTimeout = d
		}
	}
}

// WithClassNames sets the detector class taxonomy.
func WithClassNames(names []string) Option {
	return func(s *Service) {
		if len(names) > 0 {
			s.classNames = names
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		uploadsDir:       "static/uploads",
		annotationsDir:   "static/annotations",
		datasetDir:       "dataset",
		modelsDir:        "models",
		trainerCommand:   "shrimp-train",
		minSamples:       5,
		minArtifactBytes: 100_000,
		wsWriteTimeout:   5 * time.Second,
		classNames:       []string{"shrimp"},
		defaults: model.TrainingConfig{
			ModelVariant: "yolov8n",
			Epochs:       100,
			BatchSize:    16,
			ImageSize:    640,
			LearningRate: 0.01,
			TrainSplit:   0.8,
			ValSplit:     0.2,
		},
		logger: nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting training service...")

	s.annotations = repository.NewFileAnnotationStore(s.annotationsDir)
	s.images = repository.NewFileImageStore(s.uploadsDir)
	s.artifacts = repository.NewFileArtifactStore(s.modelsDir,
		repository.WithMinArtifactBytes(s.minArtifactBytes),
	)

	s.status = status.NewStore()
	s.hub = ws.NewHub(
		ws.WithWriteTimeout(s.wsWriteTimeout),
		ws.WithLogger(s.logger.Named("ws")),
	)

	// Every status mutation fans out to the live subscribers.
	s.status.OnChange(func(update model.StatusUpdate) {
		s.hub.Broadcast(update)
		metrics.UpdateTrainingProgress(update.Progress)
		metrics.UpdateCurrentEpoch(update.CurrentEpoch)
	})

	s.preparer = dataset.NewPreparer(s.annotations, s.images, s.datasetDir,
		dataset.WithClassNames(s.classNames),
		dataset.WithLogger(s.logger.Named("dataset")),
		dataset.WithProgressFunc(func(frac float64, msg string) {
			s.status.AdvancePreparation(frac*prepStagingSpan, msg)
		}),
	)
	s.launcher = training.NewLauncher(s.trainerCommand, s.modelsDir, s.artifacts,
		training.WithLogger(s.logger.Named("launcher")),
	)

	s.started = true
	s.logger.Info(ctx, "training service started",
		logger.String("trainer_command", s.trainerCommand),
		logger.String("dataset_dir", s.datasetDir),
		logger.String("models_dir", s.modelsDir),
		logger.Int("min_annotated_samples", s.minSamples),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping training service...")

	if s.runCancel != nil {
		s.stopRequested = true
		s.runCancel()
		s.runCancel = nil
	}
	if s.hub != nil {
		s.hub.CloseAll()
	}

	s.started = false
	s.logger.Info(context.Background(), "training service stopped")
}

// StartTraining validates preconditions and kicks off a run. It returns the
// accepted config and the initial status snapshot immediately; the run
// itself proceeds in the background.
func (s *Service) StartTraining(ctx context.Context, cfg model.TrainingConfig) (model.TrainingConfig, model.TrainingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return model.TrainingConfig{}, model.TrainingStatus{}, ErrNotStarted
	}

	cfg = s.applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return model.TrainingConfig{}, s.status.Get(), fmt.Errorf("invalid training config: %w", err)
	}

	count := s.annotations.Count(ctx)
	if count < s.minSamples {
		return model.TrainingConfig{}, s.status.Get(),
			fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, count, s.minSamples)
	}

	// The status store owns the single-flight check; the transition to
	// preparing happens atomically with it.
	if err := s.status.Start(cfg); err != nil {
		return model.TrainingConfig{}, s.status.Get(), err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	s.stopRequested = false
	s.runStarted = time.Now()

	metrics.RecordRunStarted()
	s.logger.Info(ctx, "training run accepted",
		logger.String("model_variant", cfg.ModelVariant),
		logger.Int("epochs", cfg.Epochs),
		logger.Int("annotated_samples", count),
	)

	go s.run(runCtx, cfg)

	return cfg, s.status.Get(), nil
}

// run drives one training run end to end: dataset preparation, worker
// launch, output draining, and the terminal transition.
func (s *Service) run(ctx context.Context, cfg model.TrainingConfig) {
	defer func() {
		s.mu.Lock()
		s.runCancel = nil
		s.mu.Unlock()
	}()

	desc, err := s.preparer.Prepare(ctx, cfg.TrainSplit, cfg.ValSplit)
	if err != nil {
		if s.wasStopped() {
			return
		}
		metrics.RecordRunFailed()
		metrics.RecordErrorByComponent("dataset", "prepare_failed")
		s.status.Fail(fmt.Sprintf("Dataset preparation failed: %v", err))
		s.logger.Error(ctx, "dataset preparation failed", logger.Error(err))
		return
	}

	s.status.AdvancePreparation(downloadBandStart, "Starting training process...")

	parser := progress.NewLineParser(cfg.Epochs)
	modelPath, err := s.launcher.Launch(ctx, dataset.DescriptorPath(s.datasetDir), cfg, parser, func(ev model.ProgressEvent) {
		s.handleEvent(ev)
	})

	if s.wasStopped() {
		s.logger.Info(ctx, "training run stopped by user")
		return
	}

	if err != nil {
		metrics.RecordRunFailed()
		s.status.Fail(fmt.Sprintf("Training failed: %v", err))
		s.logger.Error(ctx, "training run failed", logger.Error(err))
		return
	}

	s.status.Complete(modelPath)
	metrics.RecordRunCompleted()
	metrics.RecordRunDuration(time.Since(s.runStarted).Seconds())
	s.logger.Info(ctx, "training run completed",
		logger.String("model_path", modelPath),
		logger.Int("train_samples", desc.TrainCount),
		logger.Int("val_samples", desc.ValCount),
	)
}

// handleEvent folds one parsed progress event into the status record.
func (s *Service) handleEvent(ev model.ProgressEvent) {
	switch ev.Kind {
	case model.EventEpoch:
		s.status.AdvanceTraining(ev.Epoch, ev.TotalEpochs, 0, 0)
	case model.EventLoss:
		s.status.RecordLoss(ev.Loss)
	case model.EventInitProgress:
		pct := downloadBandStart + ev.Percent/100*downloadBandSpan
		s.status.AdvancePreparation(pct, "Downloading model weights...")
	case model.EventTerminal:
		// Terminal markers resolve through the launcher's return value.
	}
}

// StopTraining transitions an active run to idle and kills the worker.
func (s *Service) StopTraining(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	if err := s.status.Stop(); err != nil {
		return err
	}

	s.stopRequested = true
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	if err := s.launcher.Stop(); err != nil && !errors.Is(err, training.ErrNotRunning) {
		s.logger.Warn(ctx, "failed to kill trainer process", logger.Error(err))
	}

	metrics.RecordRunStopped()
	s.logger.Info(ctx, "training run stopped")
	return nil
}

func (s *Service) wasStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopRequested
}

// GetStatus returns the current training status snapshot.
func (s *Service) GetStatus() model.TrainingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.TrainingStatus{Status: model.StatusIdle}
	}
	return s.status.Get()
}

// Hub exposes the live subscription registry for the push-channel handler.
func (s *Service) Hub() *ws.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// Options returns the accepted training options and current sample counts.
func (s *Service) Options(ctx context.Context) TrainingOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := TrainingOptions{
		ModelVariants: variantNames(),
		Variants:      variantCatalog,
		Defaults:      s.defaults,
		MinSamples:    s.minSamples,
	}
	if s.started {
		opts.AnnotatedSamples = s.annotations.Count(ctx)
	}
	opts.Recommended = recommendVariant(opts.AnnotatedSamples)
	return opts
}

// ListModels returns metadata for every trained model artifact.
func (s *Service) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.artifacts.List(ctx)
}

// GetModel returns metadata for one trained model artifact.
func (s *Service) GetModel(ctx context.Context, name string) (types.ModelInfo, error) {
	if !s.isStarted() {
		return types.ModelInfo{}, ErrNotStarted
	}
	return s.artifacts.Stat(ctx, name)
}

// SaveAnnotation persists the region list for one sample image.
func (s *Service) SaveAnnotation(ctx context.Context, ann model.Annotation) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	return s.annotations.Save(ctx, ann)
}

// GetAnnotation returns the saved annotation for an image.
func (s *Service) GetAnnotation(ctx context.Context, imageName string) (model.Annotation, error) {
	if !s.isStarted() {
		return model.Annotation{}, ErrNotStarted
	}
	return s.annotations.Get(ctx, imageName)
}

// ListAnnotations returns every saved annotation.
func (s *Service) ListAnnotations(ctx context.Context) ([]model.Annotation, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.annotations.List(ctx)
}

// ListImages returns the names of all uploaded images.
func (s *Service) ListImages(ctx context.Context) ([]string, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.images.List(ctx)
}

// ImagePath resolves an uploaded image name to its on-disk path.
func (s *Service) ImagePath(ctx context.Context, imageName string) (string, error) {
	if !s.isStarted() {
		return "", ErrNotStarted
	}
	return s.images.Path(ctx, imageName)
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// applyDefaults fills zero-valued config fields from the configured
// defaults.
func (s *Service) applyDefaults(cfg model.TrainingConfig) model.TrainingConfig {
	if cfg.ModelVariant == "" {
		cfg.ModelVariant = s.defaults.ModelVariant
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = s.defaults.Epochs
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = s.defaults.BatchSize
	}
	if cfg.ImageSize == 0 {
		cfg.ImageSize = s.defaults.ImageSize
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = s.defaults.LearningRate
	}
	if cfg.TrainSplit == 0 {
		cfg.TrainSplit = s.defaults.TrainSplit
	}
	if cfg.ValSplit == 0 {
		cfg.ValSplit = s.defaults.ValSplit
	}
	return cfg
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":               s.started,
		"trainer_command":       s.trainerCommand,
		"min_annotated_samples": s.minSamples,
	}

	if s.started {
		ctx := context.Background()
		snap := s.status.Get()

		stats["status"] = string(snap.Status)
		stats["progress"] = snap.Progress
		stats["annotated_samples"] = s.annotations.Count(ctx)
		stats["subscribers"] = s.hub.Count()

		if models, err := s.artifacts.List(ctx); err == nil {
			stats["trained_models"] = len(models)
		}

		train, val, unlabeled := dataset.StagedCounts(s.datasetDir)
		stats["staged_train_samples"] = train
		stats["staged_val_samples"] = val
		if unlabeled > 0 {
			stats["staged_unlabeled_images"] = unlabeled
		}
	}

	return stats
}
