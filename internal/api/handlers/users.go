package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/types"
)

// HomeUpdater persists the caller's geofence anchor.
type HomeUpdater interface {
	UpdateHome(ctx context.Context, id string, lat, lng float64, address string) error
}

// UserHandler serves the caller's own account surface.
type UserHandler struct {
	users  HomeUpdater
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler with the provided dependencies.
func NewUserHandler(users HomeUpdater, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes mounts the account endpoints. All routes assume RequireUser
// is already applied.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.HandleMe)
	r.Put("/me/home", h.HandleSetHome)
}

// HandleMe handles GET /v1/me: the resolved caller record.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: types.GetUser(r.Context())})
}

type setHomeRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// HandleSetHome handles PUT /v1/me/home: sets the home anchor the geofence
// engine measures exit distance against.
func (h *UserHandler) HandleSetHome(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	var req setHomeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidCoord,
			"home coordinates out of range",
			nil,
		))
		return
	}

	if err := h.users.UpdateHome(r.Context(), user.ID, req.Lat, req.Lng, req.Address); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "home anchor updated", slog.String("user_id", user.ID))
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "updated"}})
}
