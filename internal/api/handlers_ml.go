// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/oauth"
)

// MLAuthStartResponse carries the provider URL the frontend must send
// the user's browser to.
type MLAuthStartResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// MLStatusResponse describes the user's marketplace connection.
type MLStatusResponse struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scope     string     `json:"scope,omitempty"`
}

// StartMLAuth begins the marketplace authorization flow for the
// authenticated user.
func (h *Handler) StartMLAuth(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	authURL, err := h.oauth.AuthorizationURL(userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to start authorization", err)
		return
	}

	respondSuccess(w, http.StatusOK, MLAuthStartResponse{AuthorizationURL: authURL})
}

// MLCallback completes the flow. The marketplace redirects the browser
// here, so the endpoint is unauthenticated: the state parameter is the
// only credential, and it maps back to the user who started the flow.
func (h *Handler) MLCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "code and state query parameters are required", nil)
		return
	}

	userID, err := h.oauth.ExchangeCode(r.Context(), code, state)
	if err != nil {
		if errors.Is(err, oauth.ErrVerifierMissing) {
			respondError(w, http.StatusBadRequest, "INVALID_STATE",
				"authorization state is unknown, expired, or already used", nil)
			return
		}
		respondError(w, http.StatusBadGateway, "EXCHANGE_FAILED", "token exchange with marketplace failed", err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("user_id", userID).Msg("Marketplace account connected")
	respondSuccess(w, http.StatusOK, map[string]interface{}{"connected": true, "user_id": userID})
}

// MLStatus reports whether the user currently holds a marketplace token.
func (h *Handler) MLStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	token, ok := h.oauth.Tokens().Get(userID)
	if !ok {
		respondSuccess(w, http.StatusOK, MLStatusResponse{Connected: false})
		return
	}
	respondSuccess(w, http.StatusOK, MLStatusResponse{
		Connected: true,
		ExpiresAt: &token.ExpiresAt,
		Scope:     token.Scope,
	})
}

// RevokeML disconnects the user's marketplace account. Revoking an
// unconnected account succeeds; the end state is the same.
func (h *Handler) RevokeML(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	h.oauth.Revoke(userID)
	logging.Ctx(r.Context()).Info().Int64("user_id", userID).Msg("Marketplace account disconnected")
	respondSuccess(w, http.StatusOK, MLStatusResponse{Connected: false})
}
