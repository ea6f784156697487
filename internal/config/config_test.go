// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 4, cfg.Monitor.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Marketplace.RefreshMargin)
	assert.Equal(t, 10*time.Minute, cfg.Marketplace.StateTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.SessionDuration)
	assert.Equal(t, "https://api.mercadolibre.com", cfg.Marketplace.APIBaseURL)
	assert.Equal(t, []string{"read", "offline_access"}, cfg.Marketplace.Scopes)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ML_CLIENT_ID", "app-123")
	t.Setenv("ML_REDIRECT_URI", "https://example.com/callback")
	t.Setenv("MONITOR_INTERVAL", "5m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "app-123", cfg.Marketplace.ClientID)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadCommaSeparatedSlices(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ML_SCOPES", "read,write,offline_access")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.CORSOrigins)
	assert.Equal(t, []string{"read", "write", "offline_access"}, cfg.Marketplace.Scopes)
}

func TestLoadIgnoresUnmappedEnvVars(t *testing.T) {
	t.Setenv("PATH_INFO", "garbage")
	t.Setenv("SERVER_SOFTWARE", "garbage")

	_, err := Load()
	require.NoError(t, err)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsClientIDWithoutRedirectURI(t *testing.T) {
	t.Setenv("ML_CLIENT_ID", "app-123")
	t.Setenv("ML_REDIRECT_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect_uri")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 8123\nmonitor:\n  concurrency: 2\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Monitor.Concurrency)
	// Untouched settings keep their defaults.
	assert.Equal(t, 30*time.Minute, cfg.Monitor.Interval)
}

func TestEnvBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestMonitorEnabled(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	// Enabled by default but inert without marketplace credentials.
	assert.True(t, cfg.Monitor.Enabled)
	assert.False(t, cfg.MonitorEnabled())

	cfg.Marketplace.ClientID = "app-123"
	assert.True(t, cfg.MonitorEnabled())

	cfg.Monitor.Enabled = false
	assert.False(t, cfg.MonitorEnabled())
}
