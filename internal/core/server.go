// Package core provides the API chassis for the Pawtrack platform.
// It creates a chi router served over standard HTTP and enforces
// cross-cutting concerns (identity resolution, logging, error handling,
// panic recovery) before requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawtrack/internal/config"
	"pawtrack/internal/types"
)

// UserLoader resolves the caller identity carried by a request into a full
// user record. Implemented by the users repository in production.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// Server encapsulates the chassis dependencies for the Pawtrack API,
// allowing for easy injection during testing and distinct configuration for
// different environments.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Users        UserLoader
	HealthProbes []HealthProbe

	router *chi.Mux

	// closers run during Shutdown, in registration order.
	closers []func(context.Context) error
}

// NewServer validates the chassis dependencies and prepares the router.
// The caller is responsible for mounting routes after construction; this
// separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger, users UserLoader) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		Users:  users,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function invoked during Shutdown.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Shutdown performs a graceful termination of server resources, running
// registered cleanup functions in order. The first error aborts the chain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, fn := range s.closers {
		if err := fn(ctx); err != nil {
			s.Logger.Error("error during shutdown", "error", err)
			return fmt.Errorf("running shutdown hook: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
