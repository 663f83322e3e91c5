// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) returns a Config filled with defaults.
// - Load(ctx) layers .env, an optional YAML file and SALLE_* env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"strings"
	"time"
)

// Store drivers understood by the record store factory.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultJWTSecret is only suitable for local development.
const DefaultJWTSecret = "salle-dev-secret-change-me"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the record store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	// DatabaseURL is a postgres DSN or a sqlite file path.
	DatabaseURL string `koanf:"database_url"`

	DBMaxOpenConns       int `koanf:"db_max_open_conns"`
	DBMaxIdleConns       int `koanf:"db_max_idle_conns"`
	DBConnMaxLifetimeSec int `koanf:"db_conn_max_lifetime_sec"`

	// RequestTimeoutMS bounds each record store call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// ScoreMin and ScoreMax bound a valid bout score.
	ScoreMin int `koanf:"score_min"`
	ScoreMax int `koanf:"score_max"`
	// WinningScore is the touch count that ends a bout.
	WinningScore int `koanf:"winning_score"`
	// RequireSession rejects bouts recorded without an active session.
	RequireSession bool `koanf:"require_session"`
	// OptimisticWrites applies writes locally before the record store confirms them.
	OptimisticWrites bool `koanf:"optimistic_writes"`

	// QueueSize bounds the change notification queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of change workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds remembered idempotency keys. Only completed keys are
	// evicted, so keys in flight may push the table past it briefly.
	DedupeSize int `koanf:"dedupe_size"`
	// RefreshIntervalSec re-syncs the state store periodically; 0 disables it.
	RefreshIntervalSec int `koanf:"refresh_interval_sec"`

	JWTSecret        string `koanf:"jwt_secret"`
	TokenTTLMin      int    `koanf:"token_ttl_min"`
	MagicLinkTTLMin  int    `koanf:"magic_link_ttl_min"`
	InviteTTLHours   int    `koanf:"invite_ttl_hours"`
	AppBaseURL       string `koanf:"app_base_url"`
	AdminEmail       string `koanf:"admin_email"`
	AdminPassword    string `koanf:"admin_password"`
	CORSAllowOrigins string `koanf:"cors_allowed_origins"`

	ExportBucket          string `koanf:"export_bucket"`
	ExportEndpoint        string `koanf:"export_endpoint"`
	ExportRegion          string `koanf:"export_region"`
	ExportAccessKeyID     string `koanf:"export_access_key_id"`
	ExportSecretAccessKey string `koanf:"export_secret_access_key"`
	ExportPublicBaseURL   string `koanf:"export_public_base_url"`
}

// New creates a Config with defaults. Context is accepted to follow the
// project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		StoreDriver:          DriverSQLite,
		DatabaseURL:          "salle.db",
		DBMaxOpenConns:       25,
		DBMaxIdleConns:       25,
		DBConnMaxLifetimeSec: 300,
		RequestTimeoutMS:     5_000,
		ScoreMin:             0,
		ScoreMax:             5,
		WinningScore:         5,
		RequireSession:       true,
		OptimisticWrites:     false,
		QueueSize:            1_024,
		WorkerCount:          2,
		DedupeSize:           10_000,
		RefreshIntervalSec:   60,
		JWTSecret:            DefaultJWTSecret,
		TokenTTLMin:          12 * 60,
		MagicLinkTTLMin:      15,
		InviteTTLHours:       7 * 24,
		AppBaseURL:           "http://localhost:9080",
		CORSAllowOrigins:     "*",
		ExportRegion:         "auto",
	}
}

// RequestTimeout returns the per-call record store timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RefreshInterval returns the background refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// TokenTTL returns the access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMin) * time.Minute
}

// MagicLinkTTL returns the magic link lifetime.
func (c *Config) MagicLinkTTL() time.Duration {
	return time.Duration(c.MagicLinkTTLMin) * time.Minute
}

// InviteTTL returns the invite lifetime.
func (c *Config) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLHours) * time.Hour
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSec) * time.Second
}

// AllowedOrigins splits the comma separated CORS origins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ExportEnabled reports whether an export bucket is configured.
func (c *Config) ExportEnabled() bool {
	return c.ExportBucket != ""
}
