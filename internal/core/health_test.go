package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	name string
	err  error
}

func (p *fakeProbe) Name() string                  { return p.name }
func (p *fakeProbe) Check(_ context.Context) error { return p.err }

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.HealthProbes = []HealthProbe{
		&fakeProbe{name: "database"},
	}

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Components["database"].Status)
}

func TestHandleHealth_UnhealthyProbe(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.HealthProbes = []HealthProbe{
		&fakeProbe{name: "database"},
		&fakeProbe{name: "sms-gateway", err: errors.New("connection refused")},
	}

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
	assert.Equal(t, "unhealthy", resp.Components["sms-gateway"].Status)
	assert.Contains(t, resp.Components["sms-gateway"].Message, "connection refused")
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.HealthProbes = []HealthProbe{&panicProbe{}}

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type panicProbe struct{}

func (p *panicProbe) Name() string                  { return "flaky" }
func (p *panicProbe) Check(_ context.Context) error { panic("probe exploded") }
