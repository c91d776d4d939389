package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to every request
// context. Geofence alerts and provider calls that must outlive a request
// detach via context.WithoutCancel.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs to prevent accidental leakage of credentials.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
	"X-User-ID",
}

// RouteRegistrar registers a group of domain handler routes on a router.
// Handler packages export registrars; main wires them onto the server. This
// indirection avoids import cycles between core and handler packages.
type RouteRegistrar func(chi.Router)

// MountRoutes defines the top-level routing hierarchy: the global middleware
// chain, the public surface, and the /v1 identity-scoped groups.
//
// Registrar groups:
//   - public: root-level, no identity required (pet card, mock checkout).
//   - v1Public: under /v1, no identity required (location ingest, webhooks).
//   - user: under /v1 behind RequireUser.
//   - admin: under /v1/admin behind RequireUser + RequireAdmin.
func (s *Server) MountRoutes(public, v1Public, user, admin []RouteRegistrar) {
	s.registerGlobalMiddleware()

	s.router.Get("/health", s.HandleHealth)

	for _, registrar := range public {
		registrar(s.router)
	}

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range v1Public {
			registrar(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.RequireUser)
			for _, registrar := range user {
				registrar(r)
			}
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.RequireUser)
			r.Use(s.RequireAdmin)
			for _, registrar := range admin {
				registrar(r)
			}
		})
	})
}

// registerGlobalMiddleware applies middleware in strict order:
//  1. Recoverer        - outermost, catches all panics.
//  2. ContextTimeout   - soft deadline on the request context.
//  3. RequestID        - correlation ID for tracing.
//  4. SecurityHeaders  - present on every response, including errors.
//  5. RequestLogger    - structured logging with redacted headers.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
}

// ContextTimeoutMiddleware sets a deadline on the request context. If the
// deadline is exceeded, downstream handlers receive a cancelled context; the
// response is controlled by the handler's behavior on cancellation.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs. If the incoming request contains an X-Request-Id
// header, that value is reused; otherwise, a new random ID is generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string suitable
// for use as a request correlation ID.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback: this should never happen in practice. If crypto/rand
		// fails, we still need a non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
