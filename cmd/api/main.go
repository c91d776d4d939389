// Package main is the entry point for the Pawtrack API server.
//
// It loads the configuration, connects the PostgreSQL pool (optionally
// running embedded migrations), wires the quota, purchase and geofence
// services onto the HTTP chassis, and serves until SIGINT/SIGTERM triggers
// a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"pawtrack/internal/api/handlers"
	"pawtrack/internal/config"
	"pawtrack/internal/core"
	"pawtrack/internal/db"
	"pawtrack/internal/external"
	"pawtrack/internal/geofence"
	"pawtrack/internal/purchase"
	"pawtrack/internal/quota"
	"pawtrack/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("pawtrack API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	// Repositories bound to the pool serve reads outside transactions; the
	// store factories below rebind them per transaction.
	petRepo := db.NewPetRepository(pool)
	userRepo := db.NewUserRepository(pool)
	runner := db.NewTxRunner(pool)

	quotaSvc := quota.NewService(
		runner,
		func(tx db.DBTX) quota.Stores {
			return quota.Stores{
				Pets:  db.NewPetRepository(tx),
				Users: db.NewUserRepository(tx),
			}
		},
		token.NewHexSource("qr_"),
		nil,
		logger,
	)

	provider := newCheckoutProvider(cfg, logger)
	ledger := purchase.NewLedger(
		runner,
		func(tx db.DBTX) purchase.Stores {
			return purchase.Stores{
				Purchases: db.NewPurchaseRepository(tx),
				Users:     db.NewUserRepository(tx),
			}
		},
		quotaSvc,
		provider,
		token.NewHexSource("tok_"),
		nil,
		logger,
	)

	geofenceSvc := geofence.NewService(
		petRepo,
		geofence.NewEvaluator(cfg.Geofence.RadiusMeters),
		newNotifier(cfg, logger),
		nil,
		logger,
	)

	srv, err := core.NewServer(cfg, logger, userRepo)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{&databaseProbe{pool: pool}}

	public := []core.RouteRegistrar{
		handlers.NewPublicHandler(petRepo, logger).RegisterRoutes,
		handlers.NewCheckoutHandler(ledger, logger).RegisterRoutes,
	}
	v1Public := []core.RouteRegistrar{
		handlers.NewLocationHandler(geofenceSvc, logger).RegisterRoutes,
	}
	if cfg.Billing.StripeWebhookSecret.Reveal() != "" {
		v1Public = append(v1Public, handlers.NewStripeWebhookHandler(
			&external.StripeVerifier{},
			ledger,
			cfg.Billing.StripeWebhookSecret.Reveal(),
			logger,
		).RegisterRoutes)
	}
	user := []core.RouteRegistrar{
		handlers.NewPetHandler(quotaSvc, petRepo, logger).RegisterRoutes,
		handlers.NewUserHandler(userRepo, logger).RegisterRoutes,
		handlers.NewBillingHandler(ledger, quotaSvc, logger).RegisterRoutes,
	}
	admin := []core.RouteRegistrar{
		handlers.NewAdminHandler(quotaSvc, petRepo, logger).RegisterRoutes,
	}

	srv.MountRoutes(public, v1Public, user, admin)

	return serve(ctx, srv, cfg, logger)
}

// newPool builds the pgx connection pool from the database configuration.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Reveal())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newCheckoutProvider returns the Stripe provider when credentials are
// configured, otherwise the mock provider whose checkout URL points at the
// local payment page.
func newCheckoutProvider(cfg *config.Config, logger *slog.Logger) purchase.CheckoutProvider {
	if cfg.Billing.StripeSecretKey.Reveal() != "" {
		logger.Info("checkout provider: stripe")
		return external.NewStripeClient(
			&http.Client{Timeout: 15 * time.Second},
			external.StripeClientConfig{
				SecretKey:     cfg.Billing.StripeSecretKey.Reveal(),
				PublicBaseURL: cfg.Server.PublicBaseURL,
				Currency:      cfg.Billing.Currency,
				Logger:        logger,
			},
		)
	}
	logger.Info("checkout provider: mock")
	return purchase.NewMockProvider(cfg.Server.PublicBaseURL)
}

// newNotifier returns the SMS gateway client, or nil when no gateway is
// configured. The geofence service logs and drops alerts on a nil notifier.
func newNotifier(cfg *config.Config, logger *slog.Logger) geofence.Notifier {
	if cfg.SMS.GatewayURL == "" {
		logger.Warn("no SMS gateway configured; geofence alerts will be dropped")
		return nil
	}
	return external.NewSMSGatewayClient(
		&http.Client{Timeout: cfg.SMS.Timeout},
		external.SMSGatewayConfig{
			GatewayURL: cfg.SMS.GatewayURL,
			UserAgent:  cfg.SMS.UserAgent,
			Logger:     logger,
		},
	)
}

// serve runs the HTTP server until the context is cancelled or the listener
// fails, then drains in-flight requests.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// databaseProbe reports PostgreSQL availability on the health endpoint.
type databaseProbe struct {
	pool *pgxpool.Pool
}

func (p *databaseProbe) Name() string { return "database" }

func (p *databaseProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
