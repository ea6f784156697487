// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package metrics provides Prometheus instrumentation for VigIA:
// API endpoint latency and throughput, marketplace client outcomes,
// OAuth token lifecycle events, monitor cycles, and alert delivery.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Marketplace client metrics
	MarketplaceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_requests_total",
			Help: "Total number of outbound marketplace API requests by outcome",
		},
		[]string{"endpoint", "outcome"}, // "success", "auth_required", "rate_limited", "unreachable", "error"
	)

	MarketplaceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_request_duration_seconds",
			Help:    "Outbound marketplace API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// OAuth token lifecycle metrics
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_exchanges_total",
			Help: "Total number of authorization-code exchanges",
		},
		[]string{"result"}, // "success", "invalid_state", "error"
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_refreshes_total",
			Help: "Total number of refresh-grant attempts",
		},
		[]string{"result"}, // "success", "revoked", "error"
	)

	TokensStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oauth_tokens_stored",
			Help: "Current number of users with a stored token record",
		},
	)

	PendingAuthorizations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oauth_pending_authorizations",
			Help: "Current number of pending PKCE authorizations",
		},
	)

	// Monitor metrics
	MonitorCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Total number of completed monitor poll cycles",
		},
	)

	MonitorCyclesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_cycles_dropped_total",
			Help: "Total number of monitor ticks dropped because a cycle was still running",
		},
	)

	MonitorCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Monitor poll cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	MonitorPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_polls_total",
			Help: "Total number of per-product polls by outcome",
		},
		[]string{"outcome"}, // "success", "auth_required", "rate_limited", "unreachable", "error"
	)

	// Alert metrics
	AlertsFiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_fired_total",
			Help: "Total number of alert rules transitioned to fired",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of alert notification attempts",
		},
		[]string{"result"}, // "sent", "failed"
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMarketplaceRequest records one outbound marketplace call.
func RecordMarketplaceRequest(endpoint, outcome string, duration time.Duration) {
	MarketplaceRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	MarketplaceRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
