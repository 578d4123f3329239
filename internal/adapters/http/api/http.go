// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	ws "github.com/aquametrics/shrimpd/internal/adapters/ws"
	service "github.com/aquametrics/shrimpd/internal/app"
	"github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Training orchestration.
	StartTraining(ctx context.Context, cfg model.TrainingConfig) (model.TrainingConfig, model.TrainingStatus, error)
	StopTraining(ctx context.Context) error
	GetStatus() model.TrainingStatus
	Options(ctx context.Context) service.TrainingOptions

	// Trained model artifacts.
	ListModels(ctx context.Context) ([]types.ModelInfo, error)
	GetModel(ctx context.Context, name string) (types.ModelInfo, error)

	// Annotation and image access.
	SaveAnnotation(ctx context.Context, ann model.Annotation) error
	GetAnnotation(ctx context.Context, imageName string) (model.Annotation, error)
	ListAnnotations(ctx context.Context) ([]model.Annotation, error)
	ListImages(ctx context.Context) ([]string, error)
	ImagePath(ctx context.Context, imageName string) (string, error)

	// Live push channel.
	Hub() *ws.Hub
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	trainingHandler    *TrainingHandler
	modelsHandler      *ModelsHandler
	annotationsHandler *AnnotationsHandler
	wsHandler          *WSHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		trainingHandler:    NewTrainingHandler(deps),
		modelsHandler:      NewModelsHandler(deps),
		annotationsHandler: NewAnnotationsHandler(deps),
		wsHandler:          NewWSHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/train/start", MetricsMiddleware(s.trainingHandler.HandleStart, "train_start"))
	mux.HandleFunc("/api/train/status", MetricsMiddleware(s.trainingHandler.HandleStatus, "train_status"))
	mux.HandleFunc("/api/train/stop", MetricsMiddleware(s.trainingHandler.HandleStop, "train_stop"))
	mux.HandleFunc("/api/train/options", MetricsMiddleware(s.trainingHandler.HandleOptions, "train_options"))
	mux.HandleFunc("/api/train/models", MetricsMiddleware(s.modelsHandler.HandleList, "train_models"))
	mux.HandleFunc("/api/train/models/", MetricsMiddleware(s.modelsHandler.HandleGet, "train_model"))
	mux.HandleFunc("/api/annotations", MetricsMiddleware(s.annotationsHandler.HandleAnnotations, "annotations"))
	mux.HandleFunc("/api/annotations/", MetricsMiddleware(s.annotationsHandler.HandleGetAnnotation, "annotation"))
	mux.HandleFunc("/api/images", MetricsMiddleware(s.annotationsHandler.HandleListImages, "images"))
	mux.HandleFunc("/api/images/", MetricsMiddleware(s.annotationsHandler.HandleGetImage, "image"))
	mux.HandleFunc("/ws/training", s.wsHandler.HandleTraining)
}

// trainRequest mirrors the start-training request body. Zero-valued fields
// fall back to the configured defaults.
type trainRequest struct {
	ModelVariant string  `json:"model_variant"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	ImageSize    int     `json:"image_size"`
	LearningRate float64 `json:"learning_rate"`
	TrainSplit   float64 `json:"train_split"`
	ValSplit     float64 `json:"val_split"`
}

func (t trainRequest) validate() error {
	switch {
	case t.Epochs < 0:
		return errors.New("epochs must not be negative")
	case t.BatchSize < 0:
		return errors.New("batch_size must not be negative")
	case t.ImageSize < 0:
		return errors.New("image_size must not be negative")
	case t.LearningRate < 0:
		return errors.New("learning_rate must not be negative")
	case t.TrainSplit < 0 || t.TrainSplit > 1:
		return errors.New("train_split must be in [0,1]")
	case t.ValSplit < 0 || t.ValSplit > 1:
		return errors.New("val_split must be in [0,1]")
	}
	return nil
}

func (t trainRequest) config() model.TrainingConfig {
	return model.TrainingConfig{
		ModelVariant: strings.TrimSpace(t.ModelVariant),
		Epochs:       t.Epochs,
		BatchSize:    t.BatchSize,
		ImageSize:    t.ImageSize,
		LearningRate: t.LearningRate,
		TrainSplit:   t.TrainSplit,
		ValSplit:     t.ValSplit,
	}
}

type startResponse struct {
	Status string               `json:"status"`
	Config model.TrainingConfig `json:"config"`
	State  model.TrainingStatus `json:"training_status"`
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound allows the API to translate upstream not-found errors to 404.
// This stays generic to avoid tight coupling with specific packages.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
