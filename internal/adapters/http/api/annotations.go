// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aquametrics/shrimpd/internal/domain/model"
)

// AnnotationsHandler serves annotation storage and image listing.
type AnnotationsHandler struct {
	deps Dependencies
}

// NewAnnotationsHandler creates a new annotations handler.
func NewAnnotationsHandler(deps Dependencies) *AnnotationsHandler {
	return &AnnotationsHandler{deps: deps}
}

// HandleAnnotations handles /api/annotations requests.
// POST saves an annotation; GET lists all saved annotations.
func (h *AnnotationsHandler) HandleAnnotations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSave(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AnnotationsHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	const op = "api.annotation_save"

	var ann model.Annotation
	if err := json.NewDecoder(r.Body).Decode(&ann); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if ann.ImageName == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.SaveAnnotation(r.Context(), ann); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "saved"})
}

func (h *AnnotationsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	anns, err := h.deps.ListAnnotations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if anns == nil {
		anns = []model.Annotation{}
	}
	writeJSON(w, http.StatusOK, anns)
}

// HandleGetAnnotation handles GET /api/annotations/{image} requests.
func (h *AnnotationsHandler) HandleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/annotations/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("api.annotation_get", ErrBadRequest))
		return
	}

	ann, err := h.deps.GetAnnotation(r.Context(), name)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

// HandleGetImage handles GET /api/images/{name} requests, serving the
// raw image bytes for the annotation UI.
func (h *AnnotationsHandler) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind("api.image_get", ErrBadRequest))
		return
	}

	path, err := h.deps.ImagePath(r.Context(), name)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	http.ServeFile(w, r, path)
}

// HandleListImages handles GET /api/images requests.
func (h *AnnotationsHandler) HandleListImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	images, err := h.deps.ListImages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if images == nil {
		images = []string{}
	}
	writeJSON(w, http.StatusOK, images)
}
