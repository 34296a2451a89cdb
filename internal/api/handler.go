// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/asheridan/loom/internal/engine"
	"github.com/asheridan/loom/pkg/models"
)

// Orchestrator is the engine surface the API needs.
type Orchestrator interface {
	Submit(ctx context.Context, req *models.Request) (string, error)
	GetStatus(runID string) (*models.RunSnapshot, error)
	Cancel(runID string) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine Orchestrator
}

// NewHandler creates a new API handler.
func NewHandler(eng Orchestrator) *Handler {
	return &Handler{engine: eng}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", h.healthCheck)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.submitRun)
		r.Get("/{id}", h.getRun)
		r.Delete("/{id}", h.cancelRun)
	})

	return r
}

// submitRequest is the POST /runs payload.
type submitRequest struct {
	Description string    `json:"description"`
	MaxParallel int       `json:"max_parallel"`
	Deadline    time.Time `json:"deadline,omitempty"`
	Quality     float64   `json:"quality_threshold,omitempty"`
}

// submitResponse is the POST /runs response.
type submitResponse struct {
	RunID string `json:"run_id"`
}

func (h *Handler) submitRun(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.MaxParallel == 0 {
		body.MaxParallel = 1
	}

	req := &models.Request{
		Description: body.Description,
		Constraints: models.Constraints{
			MaxParallel:      body.MaxParallel,
			Deadline:         body.Deadline,
			QualityThreshold: body.Quality,
		},
	}

	runID, err := h.engine.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{RunID: runID})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	snap, err := h.engine.GetStatus(runID)
	if err != nil {
		if errors.Is(err, engine.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if err := h.engine.Cancel(runID); err != nil {
		if errors.Is(err, engine.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
