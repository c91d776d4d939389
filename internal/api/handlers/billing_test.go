package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawtrack/internal/types"
)

// --- Mocks ---

type mockLedger struct {
	intent   *types.PurchaseIntent
	url      string
	openErr  error
	applied  *types.PlanChangeResult
	applyErr error
	history  []*types.PurchaseIntent

	appliedToken string
	appliedPlan  types.PlanTier
}

func (m *mockLedger) OpenIntent(_ context.Context, _ string, _ types.PlanTier) (*types.PurchaseIntent, string, error) {
	return m.intent, m.url, m.openErr
}

func (m *mockLedger) ApplyTargetWithoutPayment(_ context.Context, token string, target types.PlanTier) (*types.PlanChangeResult, error) {
	m.appliedToken = token
	m.appliedPlan = target
	return m.applied, m.applyErr
}

func (m *mockLedger) History(_ context.Context, _ string) ([]*types.PurchaseIntent, error) {
	return m.history, nil
}

type mockChanger struct {
	result *types.PlanChangeResult
	err    error

	calledUser string
	calledPlan types.PlanTier
	calls      int
}

func (m *mockChanger) ChangePlan(_ context.Context, userID string, target types.PlanTier) (*types.PlanChangeResult, error) {
	m.calledUser = userID
	m.calledPlan = target
	m.calls++
	return m.result, m.err
}

// --- Helpers ---

func makeBillingRouter(ledger PurchaseLedger, changer SelfPlanChanger) http.Handler {
	r := chi.NewRouter()
	NewBillingHandler(ledger, changer, discardLogger()).RegisterRoutes(r)
	return r
}

func billingRequest(user *types.User, method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return withUser(req, user)
}

// --- Tests ---

func TestBillingHandler_OpenIntent_Success(t *testing.T) {
	ledger := &mockLedger{
		intent: &types.PurchaseIntent{
			ID:          "pur_1",
			TargetPlan:  types.PlanPlus,
			Token:       "tok_abc",
			AmountCents: 9990,
			Status:      types.PurchasePending,
		},
		url: "https://pawtrack.example.com/checkout?t=tok_abc",
	}
	router := makeBillingRouter(ledger, &mockChanger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(basicUser(), http.MethodPost, "/billing/intents",
		`{"target_plan":"Plus"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data intentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok_abc", resp.Data.Token)
	assert.Contains(t, resp.Data.CheckoutURL, "t=tok_abc")
}

func TestBillingHandler_OpenIntent_NotAnUpgrade(t *testing.T) {
	ledger := &mockLedger{
		openErr: types.NewAppError(types.ErrCodePlanNotAnUpgrade, "already at or above that plan", nil),
	}
	router := makeBillingRouter(ledger, &mockChanger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(basicUser(), http.MethodPost, "/billing/intents",
		`{"target_plan":"Basic"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "plan_not_an_upgrade", decodeError(t, rec.Body.Bytes()).Error.Code)
}

func TestBillingHandler_ApplyWithoutPayment(t *testing.T) {
	ledger := &mockLedger{applied: &types.PlanChangeResult{FinalPlan: types.PlanFree, Deactivated: 2}}
	router := makeBillingRouter(ledger, &mockChanger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(basicUser(), http.MethodPost,
		"/billing/intents/tok_abc/apply", `{"plan":"Free"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok_abc", ledger.appliedToken)
	assert.Equal(t, types.PlanFree, ledger.appliedPlan)
}

func TestBillingHandler_SetOwnPlan_CancelToFree(t *testing.T) {
	changer := &mockChanger{result: &types.PlanChangeResult{FinalPlan: types.PlanFree, Deactivated: 1}}
	router := makeBillingRouter(&mockLedger{}, changer)

	user := &types.User{ID: "user_1", Role: types.RoleUser, Plan: types.PlanPlus}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(user, http.MethodPost, "/billing/plan", `{"plan":"Free"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_1", changer.calledUser)
	assert.Equal(t, types.PlanFree, changer.calledPlan)
}

func TestBillingHandler_SetOwnPlan_UpgradeRequiresCheckout(t *testing.T) {
	changer := &mockChanger{}
	router := makeBillingRouter(&mockLedger{}, changer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(basicUser(), http.MethodPost, "/billing/plan", `{"plan":"Plus"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, changer.calls)
}

func TestBillingHandler_SetOwnPlan_OwnerRejected(t *testing.T) {
	router := makeBillingRouter(&mockLedger{}, &mockChanger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(basicUser(), http.MethodPost, "/billing/plan", `{"plan":"Owner"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "plan_invalid_target", decodeError(t, rec.Body.Bytes()).Error.Code)
}

func TestBillingHandler_History(t *testing.T) {
	ledger := &mockLedger{history: []*types.PurchaseIntent{
		{ID: "pur_2", Status: types.PurchasePaid},
		{ID: "pur_1", Status: types.PurchaseCanceled},
	}}
	router := makeBillingRouter(ledger, &mockChanger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, billingRequest(basicUser(), http.MethodGet, "/billing/history", ""))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.PurchaseIntent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}
