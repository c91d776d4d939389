package external

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawtrack/internal/types"
)

func noSleep(time.Duration) {}

func newTestBaseClient(retries int) *BaseClient {
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test",
		RetryPolicy{MaxRetries: retries, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond},
		"Pawtrack-Test/1.0",
		WithSleepFunc(noSleep),
	)
}

func TestBaseClient_Do_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Pawtrack-Test/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestBaseClient(2)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBaseClient_Do_RetriesOn500ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestBaseClient(3)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_Do_ExhaustedRetriesMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestBaseClient(1)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	_, err := client.Do(req)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}

func TestBaseClient_Do_429MapsToRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestBaseClient(1)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	_, err := client.Do(req)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestBaseClient_Do_4xxReturnedAsIs(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := newTestBaseClient(3)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	// No retries for non-retryable statuses.
	assert.Equal(t, int32(1), calls.Load())
}

func TestBaseClient_ComputeBackoff_RespectsRetryAfterSeconds(t *testing.T) {
	client := NewBaseClient(
		http.DefaultClient,
		"test",
		RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 3 * time.Second},
		"",
	)

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"2"}}}
	assert.Equal(t, 2*time.Second, client.computeBackoff(0, resp))

	// Clamped to MaxWait.
	resp = &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	assert.Equal(t, 3*time.Second, client.computeBackoff(0, resp))
}
