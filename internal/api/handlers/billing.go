package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/plans"
	"pawtrack/internal/types"
)

// PurchaseLedger is the subset of the purchase ledger the billing handler
// needs.
type PurchaseLedger interface {
	OpenIntent(ctx context.Context, userID string, target types.PlanTier) (*types.PurchaseIntent, string, error)
	ApplyTargetWithoutPayment(ctx context.Context, token string, target types.PlanTier) (*types.PlanChangeResult, error)
	History(ctx context.Context, userID string) ([]*types.PurchaseIntent, error)
}

// SelfPlanChanger applies a plan change for the caller's own account.
type SelfPlanChanger interface {
	ChangePlan(ctx context.Context, userID string, target types.PlanTier) (*types.PlanChangeResult, error)
}

// BillingHandler serves the authenticated billing surface: opening purchase
// intents, self-serve downgrades/cancellation, and purchase history.
type BillingHandler struct {
	ledger  PurchaseLedger
	changer SelfPlanChanger
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler with the provided
// dependencies.
func NewBillingHandler(ledger PurchaseLedger, changer SelfPlanChanger, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{ledger: ledger, changer: changer, logger: logger}
}

// RegisterRoutes mounts the billing endpoints. All routes assume RequireUser
// is already applied.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/intents", h.HandleOpenIntent)
	r.Post("/billing/intents/{token}/apply", h.HandleApplyWithoutPayment)
	r.Post("/billing/plan", h.HandleSetOwnPlan)
	r.Get("/billing/history", h.HandleHistory)
}

type openIntentRequest struct {
	TargetPlan types.PlanTier `json:"target_plan"`
}

// intentResponse is the open-intent reply. The token is the only reference a
// client holds onto; the intent's own JSON never carries it.
type intentResponse struct {
	Token       string                `json:"token"`
	CheckoutURL string                `json:"checkout_url"`
	Intent      *types.PurchaseIntent `json:"intent"`
}

// HandleOpenIntent handles POST /v1/billing/intents: opens a pending
// purchase intent for a plan upgrade and returns the provider checkout URL.
func (h *BillingHandler) HandleOpenIntent(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	var req openIntentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	intent, checkoutURL, err := h.ledger.OpenIntent(r.Context(), user.ID, req.TargetPlan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "purchase intent opened",
		slog.String("purchase_id", intent.ID),
		slog.String("user_id", user.ID),
		slog.String("target_plan", string(req.TargetPlan)),
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: intentResponse{
		Token:       intent.Token,
		CheckoutURL: checkoutURL,
		Intent:      intent,
	}})
}

type applyPlanRequest struct {
	Plan types.PlanTier `json:"plan"`
}

// HandleApplyWithoutPayment handles POST /v1/billing/intents/{token}/apply:
// closes an open intent with a caller-supplied target plan without going
// through payment. This backs the downgrade/cancel actions the checkout UI
// offers next to an open upgrade intent.
func (h *BillingHandler) HandleApplyWithoutPayment(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req applyPlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.ledger.ApplyTargetWithoutPayment(r.Context(), token, req.Plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleSetOwnPlan handles POST /v1/billing/plan: self-serve plan changes
// that never require payment, i.e. cancellation (target Free) and
// downgrades. Upgrades must go through an intent and checkout.
func (h *BillingHandler) HandleSetOwnPlan(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	var req applyPlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if !plans.IsValid(req.Plan) || req.Plan == types.PlanOwner {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePlanInvalidTarget,
			"target plan is not available",
			nil,
		))
		return
	}
	if plans.RankOf(req.Plan) > plans.RankOf(user.Plan) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePlanInvalidTarget,
			"upgrades require checkout",
			nil,
		))
		return
	}

	result, err := h.changer.ChangePlan(r.Context(), user.ID, req.Plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "self-serve plan change",
		slog.String("user_id", user.ID),
		slog.String("plan", string(req.Plan)),
		slog.Int("deactivated", result.Deactivated),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleHistory handles GET /v1/billing/history: the caller's purchase
// intents, newest first.
func (h *BillingHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user := types.GetUser(r.Context())

	history, err := h.ledger.History(r.Context(), user.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: history})
}
