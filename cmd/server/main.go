// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package main is the entry point for the VigIA server.
//
// VigIA is a self-hosted price monitoring backend for Mercado Livre
// listings. Users connect their marketplace account via OAuth, track
// products, and receive an email the first time a product's price
// reaches their target.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Database: DuckDB with the users/products/price_history/alerts schema
//  3. OAuth client: PKCE authorization flow and token lifecycle
//  4. Marketplace client: rate-limited HTTP client behind a circuit breaker
//  5. Monitor: periodic price polling, history, and alert evaluation
//  6. HTTP server: REST API under /api/v1 plus /health and /metrics
//
// All long-running components run under a suture supervision tree, so a
// crashing monitor cycle is restarted without taking the API down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. The minimum production settings are:
//
//	export ML_CLIENT_ID=your-app-id
//	export ML_CLIENT_SECRET=your-app-secret
//	export ML_REDIRECT_URI=https://your-host/api/auth/ml/callback
//	export JWT_SECRET=$(openssl rand -base64 32)
//	./vigia
//
// SMTP settings are optional; without them alerts are logged instead of
// emailed.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests and the current
// monitoring cycle, then checkpoints and closes the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vigia-app/vigia/internal/api"
	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/database"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/marketplace"
	"github.com/vigia-app/vigia/internal/monitor"
	"github.com/vigia-app/vigia/internal/notify"
	"github.com/vigia-app/vigia/internal/oauth"
	"github.com/vigia-app/vigia/internal/supervisor"
	"github.com/vigia-app/vigia/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("monitor_enabled", cfg.MonitorEnabled()).
		Bool("smtp_configured", cfg.SMTP.Host != "").
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	// Token lifecycle and the PKCE authorization flow.
	sessions := oauth.NewSessionStore(cfg.Marketplace.StateTTL)
	tokens := oauth.NewTokenStore()
	oauthClient := oauth.NewClient(cfg.Marketplace, sessions, tokens)

	// Outbound marketplace traffic goes through the circuit breaker so a
	// provider outage fails fast instead of stalling every poll.
	market := marketplace.NewCircuitBreakerClient(marketplace.NewClient(cfg.Marketplace, oauthClient))

	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewEmailNotifier(cfg.SMTP)
	} else {
		logging.Warn().Msg("SMTP not configured, price alerts will only be logged")
		notifier = notify.NewLogNotifier()
	}

	scheduler := monitor.NewScheduler(cfg.Monitor, db, market, notifier)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session signing")
	}

	handler := api.NewHandler(db, jwtManager, oauthClient, market, scheduler)
	router := api.NewRouter(handler, jwtManager, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// zerolog bridged to slog for sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))
	tree.AddBackgroundService(services.NewSessionReaperService(sessions, cfg.Marketplace.StateTTL))
	if cfg.MonitorEnabled() {
		tree.AddBackgroundService(services.NewMonitorService(scheduler))
		logging.Info().
			Dur("interval", cfg.Monitor.Interval).
			Int("concurrency", cfg.Monitor.Concurrency).
			Msg("Price monitor enabled")
	} else {
		logging.Info().Msg("Price monitor disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting VigIA")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	// Drain the channel so shutdown errors are not lost.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped gracefully")
}
