// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports process liveness and dependency readiness.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database,omitempty"`
}

// HealthLive answers as long as the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, HealthResponse{
		Status:        "alive",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthReady verifies the database is reachable before reporting ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ready",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Database:      "ok",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "database not available", err)
		return
	}
	respondSuccess(w, http.StatusOK, resp)
}
