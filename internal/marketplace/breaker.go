// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/metrics"
	"github.com/vigia-app/vigia/internal/models"
)

// API is the read surface the rest of the application depends on. Both
// the plain Client and the CircuitBreakerClient satisfy it.
type API interface {
	GetItem(ctx context.Context, userID int64, itemID string) (*models.Item, error)
	Search(ctx context.Context, userID int64, query string, limit, offset int) (*models.SearchResult, error)
	GetItemReviews(ctx context.Context, userID int64, itemID string) (*models.ReviewsResult, error)
}

// CircuitBreakerClient wraps the marketplace client so that a provider
// outage stops generating outbound traffic instead of stalling every
// monitoring cycle on timeouts.
type CircuitBreakerClient struct {
	client API
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps client with a breaker that opens after a
// 60% failure rate over at least 10 requests, and probes recovery after
// 2 minutes. Only connectivity failures count: auth errors, rate limits,
// and 4xx responses are the provider answering, not the provider down.
func NewCircuitBreakerClient(client API) *CircuitBreakerClient {
	cbName := "marketplace-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, ErrUnreachable) {
				return false
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
				return false
			}
			return true
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// GetItem fetches a listing with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetItem(ctx context.Context, userID int64, itemID string) (*models.Item, error) {
	return castResult[models.Item](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetItem(ctx, userID, itemID)
	}))
}

// Search runs a keyword search with circuit breaker protection.
func (cbc *CircuitBreakerClient) Search(ctx context.Context, userID int64, query string, limit, offset int) (*models.SearchResult, error) {
	return castResult[models.SearchResult](cbc.execute(func() (interface{}, error) {
		return cbc.client.Search(ctx, userID, query, limit, offset)
	}))
}

// GetItemReviews fetches listing reviews with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetItemReviews(ctx context.Context, userID int64, itemID string) (*models.ReviewsResult, error) {
	return castResult[models.ReviewsResult](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetItemReviews(ctx, userID, itemID)
	}))
}

func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			// An open breaker is indistinguishable from an unreachable
			// provider for callers deciding whether to skip a poll.
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
