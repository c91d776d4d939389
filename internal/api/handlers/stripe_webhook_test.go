package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"pawtrack/internal/types"
)

// --- Mocks ---

type mockVerifier struct {
	err error
}

func (m *mockVerifier) Verify(_ []byte, _ string, _ string) error {
	return m.err
}

type mockFinalizer struct {
	result *types.PlanChangeResult
	err    error
	tokens []string
}

func (m *mockFinalizer) FinalizePaid(_ context.Context, token string) (*types.PlanChangeResult, error) {
	m.tokens = append(m.tokens, token)
	return m.result, m.err
}

// --- Helpers ---

func makeWebhookRouter(verifier WebhookVerifier, ledger PaymentFinalizer) http.Handler {
	r := chi.NewRouter()
	NewStripeWebhookHandler(verifier, ledger, "whsec_test", discardLogger()).RegisterRoutes(r)
	return r
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

const checkoutCompletedBody = `{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {"object": {"id": "cs_1", "metadata": {"purchase_token": "tok_abc"}}}
}`

// --- Tests ---

func TestStripeWebhook_MissingSignature(t *testing.T) {
	ledger := &mockFinalizer{}
	router := makeWebhookRouter(&mockVerifier{}, ledger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(checkoutCompletedBody, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ledger.tokens)
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	ledger := &mockFinalizer{}
	router := makeWebhookRouter(&mockVerifier{err: errors.New("signature mismatch")}, ledger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(checkoutCompletedBody, "t=1,v1=bad"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ledger.tokens)
}

func TestStripeWebhook_CheckoutCompleted(t *testing.T) {
	ledger := &mockFinalizer{result: &types.PlanChangeResult{FinalPlan: types.PlanPlus}}
	router := makeWebhookRouter(&mockVerifier{}, ledger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(checkoutCompletedBody, "t=1,v1=good"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tok_abc"}, ledger.tokens)
}

func TestStripeWebhook_UnhandledEventType(t *testing.T) {
	ledger := &mockFinalizer{}
	router := makeWebhookRouter(&mockVerifier{}, ledger)

	body := `{"id":"evt_2","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(body, "t=1,v1=good"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ledger.tokens)
}

func TestStripeWebhook_ProcessingFailureStillAcks(t *testing.T) {
	// A stale token must not make Stripe retry forever.
	ledger := &mockFinalizer{
		err: types.NewAppError(types.ErrCodeNotFoundPurchase, "purchase not found", nil),
	}
	router := makeWebhookRouter(&mockVerifier{}, ledger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(checkoutCompletedBody, "t=1,v1=good"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeWebhook_MissingToken(t *testing.T) {
	ledger := &mockFinalizer{}
	router := makeWebhookRouter(&mockVerifier{}, ledger)

	body := `{"id":"evt_3","type":"checkout.session.completed","data":{"object":{"id":"cs_2"}}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(body, "t=1,v1=good"))

	// Acknowledged, but nothing finalized.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ledger.tokens)
}

func TestStripeWebhook_MalformedJSON(t *testing.T) {
	router := makeWebhookRouter(&mockVerifier{}, &mockFinalizer{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(`{"id":`, "t=1,v1=good"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
