// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vigia/config.yaml",
	"/etc/vigia/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/vigia.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Marketplace: MarketplaceConfig{
			ClientID:              "",
			ClientSecret:          "",
			RedirectURI:           "",
			Scopes:                []string{"read", "offline_access"},
			AuthorizationEndpoint: "https://auth.mercadolivre.com.br/authorization",
			TokenEndpoint:         "https://api.mercadolibre.com/oauth/token",
			APIBaseURL:            "https://api.mercadolibre.com",
			StateTTL:              10 * time.Minute,
			RefreshMargin:         5 * time.Minute,
			RequestTimeout:        10 * time.Second,
			TokenTimeout:          20 * time.Second,
			RequestsPerSecond:     5,
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			Interval:    30 * time.Minute,
			Concurrency: 4,
			PollTimeout: 30 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:     "",
			Port:     587,
			Username: "",
			Password: "",
			From:     "no-reply@vigia.app",
			FromName: "VigIA",
			UseTLS:   true,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionDuration: 7 * 24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; split the known slice fields
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied through the environment.
var sliceConfigPaths = []string{
	"marketplace.scopes",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment noise cannot leak
// into the configuration.
//
// Examples:
//   - ML_CLIENT_ID -> marketplace.client_id
//   - MONITOR_INTERVAL -> monitor.interval
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Marketplace OAuth mappings (ML_ prefix kept from the original deployment)
		"ml_client_id":              "marketplace.client_id",
		"ml_client_secret":          "marketplace.client_secret",
		"ml_redirect_uri":           "marketplace.redirect_uri",
		"ml_scopes":                 "marketplace.scopes",
		"ml_authorization_endpoint": "marketplace.authorization_endpoint",
		"ml_token_endpoint":         "marketplace.token_endpoint",
		"ml_api_base_url":           "marketplace.api_base_url",
		"ml_state_ttl":              "marketplace.state_ttl",
		"ml_refresh_margin":         "marketplace.refresh_margin",
		"ml_request_timeout":        "marketplace.request_timeout",
		"ml_token_timeout":          "marketplace.token_timeout",
		"ml_requests_per_second":    "marketplace.requests_per_second",

		// Monitor mappings
		"monitor_enabled":      "monitor.enabled",
		"monitor_interval":     "monitor.interval",
		"monitor_concurrency":  "monitor.concurrency",
		"monitor_poll_timeout": "monitor.poll_timeout",

		// SMTP mappings
		"smtp_host":      "smtp.host",
		"smtp_port":      "smtp.port",
		"smtp_username":  "smtp.username",
		"smtp_password":  "smtp.password",
		"smtp_from":      "smtp.from",
		"smtp_from_name": "smtp.from_name",
		"smtp_use_tls":   "smtp.use_tls",

		// Security mappings
		"jwt_secret":          "security.jwt_secret",
		"session_duration":    "security.session_duration",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped entirely.
	return ""
}
