// Package handlers contains the HTTP handler implementations for the
// Pawtrack API. Each handler declares a local interface for the service it
// consumes, keeping handler packages decoupled from service packages and
// trivially mockable in tests.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/quota"
	"pawtrack/internal/types"
)

// PetQuotaService is the subset of the quota service the pet handler needs.
type PetQuotaService interface {
	CanAdd(ctx context.Context, userID string) (quota.Decision, error)
	RequestPet(ctx context.Context, requesterID string, input quota.NewPetInput) (*types.Pet, error)
}

// PetLister reads a user's pets, newest activity first.
type PetLister interface {
	ListByUser(ctx context.Context, userID string) ([]*types.Pet, error)
	GetByID(ctx context.Context, id string) (*types.Pet, error)
}

// PetHandler maps the authenticated pet endpoints to the quota service.
type PetHandler struct {
	service PetQuotaService
	pets    PetLister
	logger  *slog.Logger
}

// NewPetHandler creates a new PetHandler with the provided dependencies.
func NewPetHandler(svc PetQuotaService, pets PetLister, logger *slog.Logger) *PetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PetHandler{service: svc, pets: pets, logger: logger}
}

// RegisterRoutes mounts the pet endpoints. All routes assume RequireUser is
// already applied.
func (h *PetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/pets", h.HandleList)
	r.Post("/pets", h.HandleRequest)
	r.Get("/pets/can-add", h.HandleCanAdd)
	r.Get("/pets/{id}", h.HandleGet)
}

// HandleCanAdd handles GET /v1/pets/can-add: the advisory admission
// pre-check the UI calls before showing the registration form.
func (h *PetHandler) HandleCanAdd(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	decision, err := h.service.CanAdd(r.Context(), user.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: decision})
}

// HandleRequest handles POST /v1/pets: registers a pending pet for the
// caller, subject to the admission gate re-check inside the transaction.
func (h *PetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	var input quota.NewPetInput
	if err := core.DecodeJSON(w, r, &input); err != nil {
		core.Error(w, r, err)
		return
	}
	if input.Name == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"name is required",
			nil,
		))
		return
	}

	pet, err := h.service.RequestPet(r.Context(), user.ID, input)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pet requested",
		slog.String("pet_id", pet.ID),
		slog.String("user_id", user.ID),
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: pet})
}

// HandleList handles GET /v1/pets: the caller's pets ordered by recency.
func (h *PetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	pets, err := h.pets.ListByUser(r.Context(), user.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pets})
}

// HandleGet handles GET /v1/pets/{id}. Callers may only read their own pets;
// other pets are reported as not found rather than forbidden.
func (h *PetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())
	petID := chi.URLParam(r, "id")

	pet, err := h.pets.GetByID(r.Context(), petID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if pet.UserID != user.ID && user.Role != types.RoleAdmin {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundPet,
			"pet not found",
			nil,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pet})
}
