// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/models"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// UserIDFromContext returns the authenticated user ID set by Middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// ContextWithUserID stamps a user ID on the context. Exported for tests
// that call handlers directly.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Middleware rejects requests without a valid Bearer session token and
// stamps the user ID on the request context for everything downstream.
func Middleware(m *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "authorization header must be a bearer token")
				return
			}

			userID, _, err := m.ValidateToken(token)
			if err != nil {
				logging.Debug().Err(err).Msg("Session token rejected")
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			ctx = logging.ContextWithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// unauthorized writes the standard error envelope without importing the
// api package, which sits above this one.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: "UNAUTHORIZED", Message: message},
	})
}
