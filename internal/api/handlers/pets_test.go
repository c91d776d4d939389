package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawtrack/internal/core"
	"pawtrack/internal/quota"
	"pawtrack/internal/types"
)

// --- Mocks ---

type mockPetQuota struct {
	decision    quota.Decision
	decisionErr error
	pet         *types.Pet
	petErr      error
}

func (m *mockPetQuota) CanAdd(_ context.Context, _ string) (quota.Decision, error) {
	return m.decision, m.decisionErr
}

func (m *mockPetQuota) RequestPet(_ context.Context, _ string, _ quota.NewPetInput) (*types.Pet, error) {
	return m.pet, m.petErr
}

type mockPetLister struct {
	pets   []*types.Pet
	pet    *types.Pet
	getErr error
}

func (m *mockPetLister) ListByUser(_ context.Context, _ string) ([]*types.Pet, error) {
	return m.pets, nil
}

func (m *mockPetLister) GetByID(_ context.Context, _ string) (*types.Pet, error) {
	return m.pet, m.getErr
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePetRouter(h *PetHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// withUser simulates the RequireUser middleware having resolved the caller.
func withUser(r *http.Request, u *types.User) *http.Request {
	return r.WithContext(types.WithUser(r.Context(), u))
}

func basicUser() *types.User {
	return &types.User{ID: "user_1", Role: types.RoleUser, Plan: types.PlanBasic}
}

func decodeError(t *testing.T, body []byte) core.APIErrorResponse {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

// --- Tests ---

func TestPetHandler_CanAdd(t *testing.T) {
	svc := &mockPetQuota{decision: quota.Decision{Allowed: true}}
	router := makePetRouter(NewPetHandler(svc, &mockPetLister{}, discardLogger()))

	req := withUser(httptest.NewRequest(http.MethodGet, "/pets/can-add", nil), basicUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data quota.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Allowed)
}

func TestPetHandler_Request_Success(t *testing.T) {
	svc := &mockPetQuota{pet: &types.Pet{ID: "pet_1", Name: "Rocky", Status: types.PetPending}}
	router := makePetRouter(NewPetHandler(svc, &mockPetLister{}, discardLogger()))

	req := withUser(httptest.NewRequest(http.MethodPost, "/pets",
		strings.NewReader(`{"name":"Rocky","breed":"boxer"}`)), basicUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data types.Pet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pet_1", resp.Data.ID)
	assert.Equal(t, types.PetPending, resp.Data.Status)
}

func TestPetHandler_Request_MissingName(t *testing.T) {
	router := makePetRouter(NewPetHandler(&mockPetQuota{}, &mockPetLister{}, discardLogger()))

	req := withUser(httptest.NewRequest(http.MethodPost, "/pets",
		strings.NewReader(`{"breed":"boxer"}`)), basicUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_missing_required_field", decodeError(t, rec.Body.Bytes()).Error.Code)
}

func TestPetHandler_Request_QuotaExceeded(t *testing.T) {
	svc := &mockPetQuota{
		petErr: types.NewAppError(types.ErrCodeQuotaPetsExceeded, "pet limit reached", nil),
	}
	router := makePetRouter(NewPetHandler(svc, &mockPetLister{}, discardLogger()))

	req := withUser(httptest.NewRequest(http.MethodPost, "/pets",
		strings.NewReader(`{"name":"Rocky"}`)), basicUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_pets_exceeded", decodeError(t, rec.Body.Bytes()).Error.Code)
}

func TestPetHandler_List(t *testing.T) {
	lister := &mockPetLister{pets: []*types.Pet{{ID: "pet_1"}, {ID: "pet_2"}}}
	router := makePetRouter(NewPetHandler(&mockPetQuota{}, lister, discardLogger()))

	req := withUser(httptest.NewRequest(http.MethodGet, "/pets", nil), basicUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.Pet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestPetHandler_Get_OtherOwnerHidden(t *testing.T) {
	lister := &mockPetLister{pet: &types.Pet{ID: "pet_9", UserID: "user_other"}}
	router := makePetRouter(NewPetHandler(&mockPetQuota{}, lister, discardLogger()))

	req := withUser(httptest.NewRequest(http.MethodGet, "/pets/pet_9", nil), basicUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPetHandler_Get_AdminSeesAll(t *testing.T) {
	lister := &mockPetLister{pet: &types.Pet{ID: "pet_9", UserID: "user_other"}}
	router := makePetRouter(NewPetHandler(&mockPetQuota{}, lister, discardLogger()))

	admin := &types.User{ID: "user_admin", Role: types.RoleAdmin}
	req := withUser(httptest.NewRequest(http.MethodGet, "/pets/pet_9", nil), admin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
