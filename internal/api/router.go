// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/middleware"
)

// NewRouter wires the complete HTTP surface.
func NewRouter(h *Handler, jwt *auth.JWTManager, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := auth.Middleware(jwt)

	// Health endpoints stay unauthenticated so orchestrators can probe.
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthLive)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Account endpoints carry strict rate limiting against brute force.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Post("/register", h.Register)
		r.With(httprate.LimitByIP(5, cfg.Security.RateLimitWindow)).Post("/login", h.Login)

		// The marketplace redirects the browser here mid-flow; the state
		// parameter authenticates it.
		r.Get("/ml/callback", h.MLCallback)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/ml/start", h.StartMLAuth)
			r.Get("/ml/status", h.MLStatus)
			r.Post("/ml/revoke", h.RevokeML)
		})
	})

	// Data endpoints require a session.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(authenticate)

		r.Get("/users/me", h.Me)
		r.Get("/search", h.SearchProducts)

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Post("/{id}/refresh", h.RefreshProduct)
			r.Get("/{id}/history", h.ListHistory)
			r.Get("/{id}/reviews", h.ListReviews)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", h.CreateAlert)
			r.Get("/", h.ListAlerts)
			r.Delete("/{id}", h.DeleteAlert)
		})
	})

	return r
}
