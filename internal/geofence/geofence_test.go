package geofence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawtrack/internal/types"
)

func fptr(v float64) *float64 { return &v }

// --- Haversine ---

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// Plaza de Armas to Cerro San Cristobal, Santiago: roughly 2.1 km.
	d := DistanceMeters(-33.4378, -70.6505, -33.4253, -70.6311)
	assert.InDelta(t, 2220, d, 150)
}

func TestDistanceMeters_SamePoint(t *testing.T) {
	assert.Zero(t, DistanceMeters(-33.45, -70.66, -33.45, -70.66))
}

func TestDistanceMeters_SmallOffset(t *testing.T) {
	// ~0.0002 degrees of latitude is about 22 meters.
	d := DistanceMeters(-33.45, -70.66, -33.4498, -70.66)
	assert.InDelta(t, 22, d, 2)
}

// --- Evaluator ---

func TestEvaluator_NoHomeIsUnknown(t *testing.T) {
	e := NewEvaluator(20)

	eval := e.Evaluate(types.GeofenceInside, nil, nil, -33.45, -70.66)
	assert.Equal(t, types.GeofenceUnknown, eval.State)
	assert.False(t, eval.Alert)
}

func TestEvaluator_InsideRadius(t *testing.T) {
	e := NewEvaluator(20)

	eval := e.Evaluate(types.GeofenceUnknown, fptr(-33.45), fptr(-70.66), -33.45, -70.66)
	assert.Equal(t, types.GeofenceInside, eval.State)
	assert.False(t, eval.Alert)
}

func TestEvaluator_ExitAlertsOnce(t *testing.T) {
	e := NewEvaluator(20)
	home := fptr(-33.45)
	homeLng := fptr(-70.66)

	// ~110 m north of home: outside the 20 m fence.
	first := e.Evaluate(types.GeofenceInside, home, homeLng, -33.449, -70.66)
	assert.Equal(t, types.GeofenceOutside, first.State)
	assert.True(t, first.Alert)
	assert.Greater(t, first.DistanceMeters, 20.0)

	// Still outside: no repeat alert.
	second := e.Evaluate(first.State, home, homeLng, -33.4485, -70.66)
	assert.Equal(t, types.GeofenceOutside, second.State)
	assert.False(t, second.Alert)
}

func TestEvaluator_UnknownToOutsideAlerts(t *testing.T) {
	e := NewEvaluator(20)

	eval := e.Evaluate(types.GeofenceUnknown, fptr(-33.45), fptr(-70.66), -33.449, -70.66)
	assert.Equal(t, types.GeofenceOutside, eval.State)
	assert.True(t, eval.Alert)
}

func TestEvaluator_ReturnHomeClearsState(t *testing.T) {
	e := NewEvaluator(20)

	eval := e.Evaluate(types.GeofenceOutside, fptr(-33.45), fptr(-70.66), -33.45, -70.66)
	assert.Equal(t, types.GeofenceInside, eval.State)
	assert.False(t, eval.Alert)
}

// --- Service ---

type fakePets struct {
	mu       sync.Mutex
	pet      *types.Pet
	owner    *types.User
	trackers map[string]string
	updated  []types.GeofenceState
}

func (f *fakePets) ResolveTracker(_ context.Context, code string) (string, error) {
	if id, ok := f.trackers[code]; ok {
		return id, nil
	}
	return "", types.NewAppError(types.ErrCodeNotFoundPet, "no pet bound to tracker", nil)
}

func (f *fakePets) GetWithOwner(_ context.Context, petID string) (*types.Pet, *types.User, error) {
	if f.pet == nil || f.pet.ID != petID {
		return nil, nil, types.NewAppError(types.ErrCodeNotFoundPet, "pet not found", nil)
	}
	return f.pet, f.owner, nil
}

func (f *fakePets) UpdateLocation(_ context.Context, _ string, lat, lng float64, _ time.Time, state types.GeofenceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pet.LastLat = &lat
	f.pet.LastLng = &lng
	f.pet.GeofenceState = state
	f.updated = append(f.updated, state)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	errCh chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{errCh: make(chan struct{}, 10)}
}

func (f *fakeNotifier) SendSMS(_ context.Context, phone, message string) error {
	f.mu.Lock()
	f.sent = append(f.sent, phone+": "+message)
	f.mu.Unlock()
	f.errCh <- struct{}{}
	return nil
}

func (f *fakeNotifier) waitForSend(t *testing.T) {
	t.Helper()
	select {
	case <-f.errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sms send")
	}
}

func newTestService(pets *fakePets, notifier Notifier) *Service {
	return NewService(pets, NewEvaluator(20), notifier, types.RealClock{}, nil)
}

func TestService_Ingest_InsideNoAlert(t *testing.T) {
	pets := &fakePets{
		pet:   &types.Pet{ID: "pet_1", Name: "Rocky", GeofenceState: types.GeofenceInside},
		owner: &types.User{ID: "user_1", Phone: "+56911111111", HomeLat: fptr(-33.45), HomeLng: fptr(-70.66)},
	}
	notifier := newFakeNotifier()
	svc := newTestService(pets, notifier)

	eval, err := svc.Ingest(context.Background(), "pet_1", -33.45, -70.66)
	require.NoError(t, err)
	assert.Equal(t, types.GeofenceInside, eval.State)
	assert.False(t, eval.Alert)
	assert.Empty(t, notifier.sent)
}

func TestService_Ingest_ExitSendsSMS(t *testing.T) {
	pets := &fakePets{
		pet:   &types.Pet{ID: "pet_1", Name: "Rocky", GeofenceState: types.GeofenceInside},
		owner: &types.User{ID: "user_1", Phone: "+56911111111", HomeLat: fptr(-33.45), HomeLng: fptr(-70.66)},
	}
	notifier := newFakeNotifier()
	svc := newTestService(pets, notifier)

	eval, err := svc.Ingest(context.Background(), "pet_1", -33.449, -70.66)
	require.NoError(t, err)
	assert.True(t, eval.Alert)

	notifier.waitForSend(t)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "+56911111111")
	assert.Contains(t, notifier.sent[0], "Rocky has left the safe zone")
}

func TestService_Ingest_NoHomeNeverAlerts(t *testing.T) {
	pets := &fakePets{
		pet:   &types.Pet{ID: "pet_1", Name: "Rocky", GeofenceState: types.GeofenceUnknown},
		owner: &types.User{ID: "user_1", Phone: "+56911111111"},
	}
	notifier := newFakeNotifier()
	svc := newTestService(pets, notifier)

	eval, err := svc.Ingest(context.Background(), "pet_1", -33.449, -70.66)
	require.NoError(t, err)
	assert.Equal(t, types.GeofenceUnknown, eval.State)
	assert.False(t, eval.Alert)
}

func TestService_Ingest_InvalidCoordinates(t *testing.T) {
	svc := newTestService(&fakePets{}, nil)

	_, err := svc.Ingest(context.Background(), "pet_1", 91, 0)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidCoord, appErr.Code)
}

func TestService_Ingest_NilNotifierDropsAlert(t *testing.T) {
	pets := &fakePets{
		pet:   &types.Pet{ID: "pet_1", Name: "Rocky", GeofenceState: types.GeofenceInside},
		owner: &types.User{ID: "user_1", Phone: "+56911111111", HomeLat: fptr(-33.45), HomeLng: fptr(-70.66)},
	}
	svc := newTestService(pets, nil)

	eval, err := svc.Ingest(context.Background(), "pet_1", -33.449, -70.66)
	require.NoError(t, err)
	assert.True(t, eval.Alert)
	// The state is still persisted even though delivery is disabled.
	assert.Equal(t, types.GeofenceOutside, pets.pet.GeofenceState)
}

func TestService_IngestByTracker_ResolvesPet(t *testing.T) {
	pets := &fakePets{
		pet:      &types.Pet{ID: "pet_1", Name: "Rocky", GeofenceState: types.GeofenceInside},
		owner:    &types.User{ID: "user_1", HomeLat: fptr(-33.45), HomeLng: fptr(-70.66)},
		trackers: map[string]string{"TRK-001": "pet_1"},
	}
	svc := newTestService(pets, nil)

	eval, err := svc.IngestByTracker(context.Background(), "TRK-001", -33.45, -70.66)
	require.NoError(t, err)
	assert.Equal(t, types.GeofenceInside, eval.State)
}

func TestService_IngestByTracker_UnknownCode(t *testing.T) {
	svc := newTestService(&fakePets{trackers: map[string]string{}}, nil)

	_, err := svc.IngestByTracker(context.Background(), "TRK-404", -33.45, -70.66)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPet, appErr.Code)
}
