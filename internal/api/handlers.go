// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package api provides the HTTP handlers and router for the VigIA
// backend: account management, marketplace authorization, product
// tracking, price history, and alerts.
package api

import (
	"time"

	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/database"
	"github.com/vigia-app/vigia/internal/marketplace"
	"github.com/vigia-app/vigia/internal/monitor"
	"github.com/vigia-app/vigia/internal/oauth"
)

// Handler bundles the dependencies every endpoint needs.
type Handler struct {
	db      *database.DB
	jwt     *auth.JWTManager
	oauth   *oauth.Client
	market  marketplace.API
	monitor *monitor.Scheduler

	startTime time.Time
}

// NewHandler creates the API handler set.
func NewHandler(db *database.DB, jwt *auth.JWTManager, oc *oauth.Client, market marketplace.API, mon *monitor.Scheduler) *Handler {
	return &Handler{
		db:        db,
		jwt:       jwt,
		oauth:     oc,
		market:    market,
		monitor:   mon,
		startTime: time.Now(),
	}
}
