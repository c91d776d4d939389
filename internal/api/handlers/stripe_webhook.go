// This file implements the Stripe webhook handler.
//
// The handler is NOT behind identity middleware; it is called directly by
// Stripe. Security is provided by verifying the Stripe-Signature header
// using HMAC-SHA256.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/core"
	"pawtrack/internal/external"
	"pawtrack/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook
// payload (64 KB). Checkout session events are small; this limit protects
// against abuse.
const maxWebhookBodySize = 64 * 1024

// eventCheckoutCompleted is the only event type this deployment subscribes
// to; everything else is acknowledged and ignored.
const eventCheckoutCompleted = "checkout.session.completed"

// WebhookVerifier validates a webhook payload against its signature header.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// PaymentFinalizer closes a purchase intent after the provider confirms
// payment.
type PaymentFinalizer interface {
	FinalizePaid(ctx context.Context, token string) (*types.PlanChangeResult, error)
}

// StripeWebhookHandler handles asynchronous events from Stripe.
type StripeWebhookHandler struct {
	verifier WebhookVerifier
	ledger   PaymentFinalizer
	secret   string
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler with the
// provided dependencies.
func NewStripeWebhookHandler(verifier WebhookVerifier, ledger PaymentFinalizer, secret string, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		ledger:   ledger,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint on the v1 public
// surface.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// stripeWebhookEvent is the envelope subset we consume.
type stripeWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object external.CheckoutSessionEvent `json:"object"`
	} `json:"data"`
}

// Handle processes incoming Stripe webhook events:
//  1. Reads the body and the Stripe-Signature header.
//  2. Verifies the signature against the webhook signing secret.
//  3. Parses the event JSON.
//  4. On checkout.session.completed, finalizes the intent named by the
//     purchase token in the session metadata.
//  5. Returns 200 OK even when internal processing fails, per Stripe
//     retry guidance; failures are logged for investigation.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthInvalidSignature,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthInvalidSignature,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
			"error", err,
		)
		// Return 200 anyway to prevent Stripe from retrying indefinitely.
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches the webhook event by type.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case eventCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			slog.String("event_type", event.Type),
		)
		return nil
	}
}

// handleCheckoutCompleted finalizes the purchase intent referenced by the
// session metadata. FinalizePaid is idempotent for already-paid intents, so
// Stripe redeliveries are harmless.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	token := event.Data.Object.PurchaseToken()
	if token == "" {
		return fmt.Errorf("checkout.session.completed: missing purchase token in event %s", event.ID)
	}

	result, err := h.ledger.FinalizePaid(ctx, token)
	if err != nil {
		return fmt.Errorf("finalizing purchase: %w", err)
	}

	h.logger.InfoContext(ctx, "purchase finalized from webhook",
		slog.String("event_id", event.ID),
		slog.String("final_plan", string(result.FinalPlan)),
		slog.Int("activated", result.Activated),
	)
	return nil
}
