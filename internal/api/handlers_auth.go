// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"errors"
	"net/http"

	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/database"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/models"
)

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse carries a fresh session token and its owner.
type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new account and returns a session token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to process password", err)
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create session", err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("user_id", user.ID).Msg("User registered")
	respondSuccess(w, http.StatusCreated, SessionResponse{Token: token, User: user})
}

// Login verifies credentials and returns a session token. Unknown email
// and wrong password are indistinguishable to the caller.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create session", err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("user_id", user.ID).Msg("User logged in")
	respondSuccess(w, http.StatusOK, SessionResponse{Token: token, User: user})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", nil)
		return
	}

	user, err := h.db.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Token outlived the account.
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists", nil)
			return
		}
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, user)
}
