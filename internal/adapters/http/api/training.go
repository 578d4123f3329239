// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	service "github.com/aquametrics/shrimpd/internal/app"
	"github.com/aquametrics/shrimpd/internal/domain/status"
)

// TrainingHandler handles training orchestration requests.
type TrainingHandler struct {
	deps Dependencies
}

// NewTrainingHandler creates a new training handler.
func NewTrainingHandler(deps Dependencies) *TrainingHandler {
	return &TrainingHandler{deps: deps}
}

// HandleStart handles POST /api/train/start requests.
func (h *TrainingHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.train_start"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		// An empty body means "train with defaults".
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	cfg, snap, err := h.deps.StartTraining(r.Context(), req.config())
	if err != nil {
		switch {
		case errors.Is(err, status.ErrAlreadyActive):
			writeError(w, http.StatusConflict, "already_training", WrapKind(op, ErrAlreadyTraining, err))
		case errors.Is(err, service.ErrInsufficientSamples):
			writeError(w, http.StatusBadRequest, "insufficient_samples", err)
		default:
			writeError(w, http.StatusBadRequest, "bad_request", err)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, startResponse{
		Status: "started",
		Config: cfg,
		State:  snap,
	})
}

// HandleStatus handles GET /api/train/status requests.
func (h *TrainingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.GetStatus())
}

// HandleStop handles POST /api/train/stop requests.
func (h *TrainingHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	const op = "api.train_stop"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if err := h.deps.StopTraining(r.Context()); err != nil {
		if errors.Is(err, status.ErrNoActiveRun) {
			writeError(w, http.StatusBadRequest, "no_active_run", WrapKind(op, ErrNoActiveRun, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, ackResponse{Status: "stopped"})
}

// HandleOptions handles GET /api/train/options requests.
func (h *TrainingHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Options(r.Context()))
}
