// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package config provides layered configuration loading for VigIA.
//
// Configuration precedence: environment variables > config file > defaults.
// See koanf.go for the loading pipeline and the environment variable map.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the VigIA server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Marketplace MarketplaceConfig `koanf:"marketplace"`
	Monitor     MonitorConfig     `koanf:"monitor"`
	SMTP        SMTPConfig        `koanf:"smtp"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// MarketplaceConfig holds the external marketplace integration settings:
// the OAuth2 client registration and the API endpoints.
type MarketplaceConfig struct {
	// ClientID and ClientSecret identify this application to the
	// marketplace authorization server.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// RedirectURI is the callback URL registered with the provider.
	RedirectURI string `koanf:"redirect_uri"`

	// Scopes requested during authorization.
	Scopes []string `koanf:"scopes"`

	// AuthorizationEndpoint and TokenEndpoint of the authorization server.
	AuthorizationEndpoint string `koanf:"authorization_endpoint"`
	TokenEndpoint         string `koanf:"token_endpoint"`

	// APIBaseURL is the base URL of the marketplace REST API.
	APIBaseURL string `koanf:"api_base_url"`

	// StateTTL bounds how long a pending authorization (PKCE verifier)
	// stays redeemable.
	StateTTL time.Duration `koanf:"state_ttl"`

	// RefreshMargin is the safety window before token expiry inside which
	// a refresh is attempted instead of using the cached token.
	RefreshMargin time.Duration `koanf:"refresh_margin"`

	// RequestTimeout applies to item/search calls; TokenTimeout applies to
	// token endpoint calls (exchange and refresh are allowed a bit longer).
	RequestTimeout time.Duration `koanf:"request_timeout"`
	TokenTimeout   time.Duration `koanf:"token_timeout"`

	// RequestsPerSecond throttles outbound API calls across the whole
	// process. Zero disables throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// MonitorConfig holds the background monitoring scheduler settings.
type MonitorConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between poll cycles.
	Interval time.Duration `koanf:"interval"`

	// Concurrency bounds how many products are polled at once.
	Concurrency int `koanf:"concurrency"`

	// PollTimeout bounds a single product poll, alert evaluation included.
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

// SMTPConfig holds alert email delivery settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	UseTLS   bool   `koanf:"use_tls"`
}

// SecurityConfig holds user-facing auth and rate limiting settings.
type SecurityConfig struct {
	// JWTSecret signs user session tokens. Required in production.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionDuration is how long issued user tokens stay valid.
	SessionDuration time.Duration `koanf:"session_duration"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for internal consistency.
// Struct-tag validation runs first, then cross-field rules that tags
// cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Marketplace.ClientID != "" && c.Marketplace.RedirectURI == "" {
		return fmt.Errorf("marketplace.redirect_uri is required when marketplace.client_id is set")
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive when the monitor is enabled")
	}
	if c.Monitor.Enabled && c.Monitor.Concurrency <= 0 {
		return fmt.Errorf("monitor.concurrency must be positive when the monitor is enabled")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if c.Marketplace.RefreshMargin < 0 {
		return fmt.Errorf("marketplace.refresh_margin must not be negative")
	}

	return nil
}

// MonitorEnabled reports whether the background monitor should run.
// The monitor needs a marketplace client registration to do anything.
func (c *Config) MonitorEnabled() bool {
	return c.Monitor.Enabled && c.Marketplace.ClientID != ""
}
