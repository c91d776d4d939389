package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/types"
)

// AdminQuotaService is the subset of the quota service the admin handler
// needs: the approval workflow, direct plan changes, and the standalone
// reconciler for support work.
type AdminQuotaService interface {
	Approve(ctx context.Context, petID string, adminID string) (*types.Pet, error)
	Reject(ctx context.Context, petID string) (bool, error)
	ChangePlan(ctx context.Context, userID string, target types.PlanTier) (*types.PlanChangeResult, error)
	Reconcile(ctx context.Context, userID string) (activated, deactivated int64, err error)
}

// AdminPetStore covers the review queue and maintenance operations.
type AdminPetStore interface {
	ListPending(ctx context.Context) ([]*types.PendingPet, error)
	CountOrphans(ctx context.Context) (int, error)
	AttachOrphans(ctx context.Context, userID string) (int64, error)
	SetTracker(ctx context.Context, petID string, code string) error
}

// AdminHandler serves the admin surface: pending review queue,
// approve/reject, direct plan changes, orphan reassignment and tracker
// binding. All routes are mounted behind RequireUser + RequireAdmin.
type AdminHandler struct {
	service AdminQuotaService
	pets    AdminPetStore
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler with the provided dependencies.
func NewAdminHandler(svc AdminQuotaService, pets AdminPetStore, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{service: svc, pets: pets, logger: logger}
}

// RegisterRoutes mounts the admin endpoints.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/pets/pending", h.HandleListPending)
	r.Post("/pets/{id}/approve", h.HandleApprove)
	r.Post("/pets/{id}/reject", h.HandleReject)
	r.Put("/pets/{id}/tracker", h.HandleSetTracker)
	r.Put("/users/{id}/plan", h.HandleSetPlan)
	r.Post("/users/{id}/reconcile", h.HandleReconcile)
	r.Get("/orphans", h.HandleCountOrphans)
	r.Post("/orphans/attach", h.HandleAttachOrphans)
}

// HandleListPending handles GET /v1/admin/pets/pending: the review queue,
// oldest request first.
func (h *AdminHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.pets.ListPending(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pending})
}

// HandleApprove handles POST /v1/admin/pets/{id}/approve. A quota-exceeded
// failure leaves the pet pending; the admin must free capacity first.
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	admin := types.GetUser(r.Context())
	petID := chi.URLParam(r, "id")

	pet, err := h.service.Approve(r.Context(), petID, admin.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pet approved",
		slog.String("pet_id", petID),
		slog.String("admin_id", admin.ID),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pet})
}

// HandleReject handles POST /v1/admin/pets/{id}/reject. Rejection deletes
// the pet outright and is idempotent: rejecting an unknown id succeeds.
func (h *AdminHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "id")

	deleted, err := h.service.Reject(r.Context(), petID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]bool{"deleted": deleted}})
}

type setPlanRequest struct {
	Plan types.PlanTier `json:"plan"`
}

// HandleSetPlan handles PUT /v1/admin/users/{id}/plan: the direct plan
// change path, which persists the plan and reconciles the user's pets in one
// transaction.
func (h *AdminHandler) HandleSetPlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req setPlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.ChangePlan(r.Context(), userID, req.Plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "plan changed by admin",
		slog.String("user_id", userID),
		slog.String("plan", string(req.Plan)),
		slog.Int("activated", result.Activated),
		slog.Int("deactivated", result.Deactivated),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleReconcile handles POST /v1/admin/users/{id}/reconcile: re-runs
// reconciliation for an account without touching its plan. Useful after
// manual data fixes; a converged account reports zeros.
func (h *AdminHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	activated, deactivated, err := h.service.Reconcile(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account reconciled by admin",
		slog.String("user_id", userID),
		slog.Int64("activated", activated),
		slog.Int64("deactivated", deactivated),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int64{
		"activated":   activated,
		"deactivated": deactivated,
	}})
}

// HandleCountOrphans handles GET /v1/admin/orphans: how many pets currently
// have no owner.
func (h *AdminHandler) HandleCountOrphans(w http.ResponseWriter, r *http.Request) {
	count, err := h.pets.CountOrphans(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int{"count": count}})
}

type attachOrphansRequest struct {
	UserID string `json:"user_id"`
}

// HandleAttachOrphans handles POST /v1/admin/orphans/attach: reattaches all
// orphaned pets to the given user as inactive, leaving reconciliation to the
// next plan change.
func (h *AdminHandler) HandleAttachOrphans(w http.ResponseWriter, r *http.Request) {
	var req attachOrphansRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.UserID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"user_id is required",
			nil,
		))
		return
	}

	attached, err := h.pets.AttachOrphans(r.Context(), req.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "orphans attached",
		slog.String("user_id", req.UserID),
		slog.Int64("attached", attached),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int64{"attached": attached}})
}

type setTrackerRequest struct {
	Code string `json:"code"`
}

// HandleSetTracker handles PUT /v1/admin/pets/{id}/tracker: binds a tracker
// device code to a pet.
func (h *AdminHandler) HandleSetTracker(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "id")

	var req setTrackerRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Code == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"code is required",
			nil,
		))
		return
	}

	if err := h.pets.SetTracker(r.Context(), petID, req.Code); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "bound"}})
}
