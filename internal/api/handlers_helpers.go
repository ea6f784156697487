// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/vigia-app/vigia/internal/database"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/marketplace"
	"github.com/vigia-app/vigia/internal/models"
)

var validate = validator.New()

// sanitizeLogValue removes control characters from strings to prevent
// log injection.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Data:     nil,
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondMarketplaceError maps the marketplace error taxonomy onto HTTP
// statuses. Every handler that proxies a marketplace call funnels its
// error through here so the mapping stays uniform.
func respondMarketplaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketplace.ErrAuthenticationRequired):
		respondError(w, http.StatusUnauthorized, "MARKETPLACE_AUTH_REQUIRED",
			"marketplace authorization missing or expired, reconnect your account", nil)
	case errors.Is(err, marketplace.ErrUnreachable):
		respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"marketplace did not respond", err)
	default:
		var rle *marketplace.RateLimitError
		if errors.As(err, &rle) {
			if rle.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())))
			}
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"marketplace rate limit exceeded, try again later", nil)
			return
		}
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			"marketplace request failed", err)
	}
}

// respondStoreError maps persistence errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, database.ErrDuplicate):
		respondError(w, http.StatusConflict, "CONFLICT", "resource already exists", nil)
	default:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "storage operation failed", err)
	}
}

// decodeJSON decodes a request body into dst and validates it.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// idParam extracts a positive int64 URL parameter.
func idParam(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", key)
	}
	return id, nil
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}
