// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Store Backends

const (
	// StorePostgres selects the pgx-backed credential store.
	StorePostgres = "postgres"
	// StoreMongo selects the MongoDB-backed credential store.
	StoreMongo = "mongo"
)

// minSessionSecretLength is the shortest accepted cookie signing secret.
const minSessionSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the authentication server.
type Config struct {

	// Server settings
	ServerPort     string        `env:"SERVER_PORT"      envDefault:"5000"`
	Environment    string        `env:"ENVIRONMENT"      envDefault:"development"`
	Debug          bool          `env:"DEBUG"            envDefault:"false"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"30s"`
	FrontendURL    string        `env:"FRONTEND_URL"     envDefault:"http://localhost:5173"`

	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// Credential store selection
	UserStore string `env:"USER_STORE" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// Document Database (MongoDB)
	MongoURI      string `env:"MONGODB_URI"      envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"reactforge"`

	// Key-Value Session Store (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Session cookie and storage
	SessionSecret     string        `env:"SESSION_SECRET,required"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"reactforge.sid"`
	SessionKeyPrefix  string        `env:"SESSION_KEY_PREFIX"  envDefault:"reactforge:sess:"`
	SessionTTL        time.Duration `env:"SESSION_TTL"         envDefault:"168h"`

	// Google identity federation
	GoogleClientID             string `env:"GOOGLE_CLIENT_ID"`
	GoogleAllowClientClaims    bool   `env:"GOOGLE_ALLOW_CLIENT_CLAIMS"    envDefault:"true"`
	GoogleRequireVerifiedEmail bool   `env:"GOOGLE_REQUIRE_VERIFIED_EMAIL" envDefault:"true"`

	// Password hashing
	BcryptCost      int `env:"BCRYPT_COST"      envDefault:"12"`
	HashConcurrency int `env:"HASH_CONCURRENCY" envDefault:"0"`

	// Boundary policies. Both are off by default.
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	GuestOnly bool            `env:"GUEST_ONLY_ENABLED" envDefault:"false"`
}

// RateLimitConfig describes the per-client request budgets.
type RateLimitConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"false"`

	GlobalRequests int           `env:"GLOBAL_REQUESTS" envDefault:"100"`
	GlobalWindow   time.Duration `env:"GLOBAL_WINDOW"   envDefault:"15m"`

	AuthRequests int           `env:"AUTH_REQUESTS" envDefault:"5"`
	AuthWindow   time.Duration `env:"AUTH_WINDOW"   envDefault:"15m"`

	LoginRequests int           `env:"LOGIN_REQUESTS" envDefault:"10"`
	LoginWindow   time.Duration `env:"LOGIN_WINDOW"   envDefault:"15m"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.UserStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when USER_STORE=postgres"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when USER_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("USER_STORE must be %q or %q, got %q", StorePostgres, StoreMongo, c.UserStore))
	}

	if len(c.SessionSecret) < minSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}

	if c.RateLimit.Enabled {
		policies := []struct {
			name     string
			requests int
			window   time.Duration
		}{
			{"GLOBAL", c.RateLimit.GlobalRequests, c.RateLimit.GlobalWindow},
			{"AUTH", c.RateLimit.AuthRequests, c.RateLimit.AuthWindow},
			{"LOGIN", c.RateLimit.LoginRequests, c.RateLimit.LoginWindow},
		}
		for _, policy := range policies {
			if policy.requests <= 0 || policy.window <= 0 {
				errs = append(errs, fmt.Errorf("RATE_LIMIT_%s_REQUESTS and RATE_LIMIT_%s_WINDOW must be positive", policy.name, policy.name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
