package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/types"
)

// CheckoutLedger is the subset of the purchase ledger the public checkout
// surface needs.
type CheckoutLedger interface {
	Get(ctx context.Context, token string) (*types.PurchaseIntent, error)
	FinalizePaid(ctx context.Context, token string) (*types.PlanChangeResult, error)
	Cancel(ctx context.Context, token string) error
}

// CheckoutHandler serves the mock checkout surface reached through the
// URL returned by OpenIntent. It is public: the opaque unguessable token is
// the only credential, exactly like a hosted provider payment page.
type CheckoutHandler struct {
	ledger CheckoutLedger
	logger *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler with the provided
// dependencies.
func NewCheckoutHandler(ledger CheckoutLedger, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{ledger: ledger, logger: logger}
}

// RegisterRoutes mounts the checkout endpoints on the public router.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Get("/checkout", h.HandleShow)
	r.Post("/checkout/pay", h.HandlePay)
	r.Post("/checkout/cancel", h.HandleCancel)
}

// checkoutView is what the payment page renders: the intent without any
// account details beyond the target plan and price.
type checkoutView struct {
	TargetPlan  types.PlanTier       `json:"target_plan"`
	AmountCents int64                `json:"amount_cents"`
	Status      types.PurchaseStatus `json:"status"`
}

// HandleShow handles GET /checkout?t={token}: the intent summary the mock
// payment page displays.
func (h *CheckoutHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("t")
	if token == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"t query parameter is required",
			nil,
		))
		return
	}

	intent, err := h.ledger.Get(r.Context(), token)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: checkoutView{
		TargetPlan:  intent.TargetPlan,
		AmountCents: intent.AmountCents,
		Status:      intent.Status,
	}})
}

type checkoutTokenRequest struct {
	Token string `json:"token"`
}

// HandlePay handles POST /checkout/pay: the mock provider's "payment
// succeeded" confirmation. Finalizing an already-paid intent is a no-op
// success, so the endpoint is safe to retry.
func (h *CheckoutHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	var req checkoutTokenRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Token == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"token is required",
			nil,
		))
		return
	}

	result, err := h.ledger.FinalizePaid(r.Context(), req.Token)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "mock checkout finalized",
		slog.String("final_plan", string(result.FinalPlan)),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleCancel handles POST /checkout/cancel: marks the intent canceled.
// Unconditional and idempotent, mirroring a provider's cancel redirect.
func (h *CheckoutHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req checkoutTokenRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Token == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"token is required",
			nil,
		))
		return
	}

	if err := h.ledger.Cancel(r.Context(), req.Token); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "canceled"}})
}
