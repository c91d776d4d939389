package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/geofence"
	"pawtrack/internal/types"
)

// LocationIngester is the subset of the geofence service the location
// handler needs.
type LocationIngester interface {
	Ingest(ctx context.Context, petID string, lat, lng float64) (*geofence.Evaluation, error)
	IngestByTracker(ctx context.Context, code string, lat, lng float64) (*geofence.Evaluation, error)
}

// LocationHandler accepts position fixes from tracker devices and the
// mobile app. It is mounted on the v1 public surface: trackers push fixes
// identified only by pet id or bound device code.
type LocationHandler struct {
	service LocationIngester
	logger  *slog.Logger
}

// NewLocationHandler creates a new LocationHandler with the provided
// dependencies.
func NewLocationHandler(svc LocationIngester, logger *slog.Logger) *LocationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the location ingest endpoints.
func (h *LocationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/locations", func(r chi.Router) {
		r.Post("/pet/{id}", h.HandleIngestByPet)
		r.Post("/tracker/{code}", h.HandleIngestByTracker)
	})
}

type locationFix struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HandleIngestByPet handles POST /v1/locations/pet/{id}.
func (h *LocationHandler) HandleIngestByPet(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "id")

	var fix locationFix
	if err := core.DecodeJSON(w, r, &fix); err != nil {
		core.Error(w, r, err)
		return
	}

	eval, err := h.service.Ingest(r.Context(), petID, fix.Lat, fix.Lng)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: eval})
}

// HandleIngestByTracker handles POST /v1/locations/tracker/{code}.
func (h *LocationHandler) HandleIngestByTracker(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var fix locationFix
	if err := core.DecodeJSON(w, r, &fix); err != nil {
		core.Error(w, r, err)
		return
	}

	eval, err := h.service.IngestByTracker(r.Context(), code, fix.Lat, fix.Lng)
	if err != nil {
		// Unknown tracker codes surface as pet-not-found; log at debug so a
		// misconfigured device cannot flood the error logs.
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeNotFoundPet {
			h.logger.DebugContext(r.Context(), "fix from unknown tracker",
				slog.String("code", code),
			)
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: eval})
}
