// Package config defines the global configuration structure for the
// Pawtrack platform. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by
// strictly separating code from configuration.
//
// Any missing required value or invalid format causes the application to
// fail immediately on startup (fail fast).
package config

import (
	"time"

	"pawtrack/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the Pawtrack platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"pawtrack-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	SMS      SMSConfig
	Geofence GeofenceConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
//
// PublicBaseURL is the externally reachable base used to build checkout and
// public-card links. It is injected into the components that construct URLs
// rather than read as ambient state deep inside the core.
type ServerConfig struct {
	Port          string `envconfig:"PORT" default:"8080"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" validate:"required,url"` // e.g., https://pawtrack.example.com
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	RunMigrations     bool          `envconfig:"DB_RUN_MIGRATIONS" default:"true"`
}

// BillingConfig holds Stripe payment integration credentials. Both values
// may be empty: the mock checkout path works without a provider, and the
// Stripe routes are only mounted when a secret key is configured.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
	Currency            string       `envconfig:"STRIPE_CURRENCY" default:"clp"`
}

// SMSConfig holds settings for the outbound SMS gateway used by geofence
// alerts. An empty URL disables delivery (alerts are logged and dropped).
type SMSConfig struct {
	GatewayURL string        `envconfig:"SMS_GATEWAY_URL"`
	Timeout    time.Duration `envconfig:"SMS_TIMEOUT" default:"5s"`
	UserAgent  string        `envconfig:"SMS_USER_AGENT" default:"Pawtrack/1.0"`
}

// GeofenceConfig holds the safe-zone evaluation parameters.
type GeofenceConfig struct {
	RadiusMeters float64 `envconfig:"GEOFENCE_RADIUS_M" default:"20"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}
