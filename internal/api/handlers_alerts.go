// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"net/http"

	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/logging"
)

// CreateAlertRequest is the payload for POST /api/alerts.
type CreateAlertRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	TargetPrice float64 `json:"target_price" validate:"required,gt=0"`
}

// CreateAlert arms a target-price alert on one of the user's products.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req CreateAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	alert, err := h.db.CreateAlert(r.Context(), userID, req.ProductID, req.TargetPrice)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Int64("alert_id", alert.ID).
		Int64("product_id", alert.ProductID).
		Float64("target_price", alert.TargetPrice).
		Msg("Alert created")
	respondSuccess(w, http.StatusCreated, alert)
}

// ListAlerts returns all of the user's alerts, fired and armed.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	alerts, err := h.db.ListAlerts(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, alerts)
}

// DeleteAlert removes an alert.
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := h.db.DeleteAlert(r.Context(), id, userID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"deleted": true})
}
