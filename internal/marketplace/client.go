// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/metrics"
	"github.com/vigia-app/vigia/internal/models"
	"github.com/vigia-app/vigia/internal/oauth"
)

// Client performs authenticated reads against the marketplace API on
// behalf of a user. Tokens come from the OAuth client; callers never see
// or pass raw credentials.
//
// Error contract for every method:
//   - ErrAuthenticationRequired: no stored token, or the token and one
//     refresh were both rejected. No stale data is returned.
//   - *RateLimitError: the marketplace answered 429.
//   - ErrUnreachable: timeout or connection failure.
//   - *APIError: any other non-2xx status.
type Client struct {
	cfg        config.MarketplaceConfig
	oauth      *oauth.Client
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a marketplace API client. Outbound calls are
// throttled client-side so one monitoring cycle cannot burst past the
// provider's per-app quota.
func NewClient(cfg config.MarketplaceConfig, oc *oauth.Client) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		oauth:      oc,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GetItem fetches a single listing by its marketplace ID.
func (c *Client) GetItem(ctx context.Context, userID int64, itemID string) (*models.Item, error) {
	var item models.Item
	if err := c.get(ctx, userID, "/items/"+url.PathEscape(itemID), nil, "get_item", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Search runs a keyword search on the configured site.
func (c *Client) Search(ctx context.Context, userID int64, query string, limit, offset int) (*models.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var result models.SearchResult
	if err := c.get(ctx, userID, "/sites/MLB/search", q, "search", &result); err != nil {
		return nil, err
	}
	result.Query = query
	return &result, nil
}

// GetItemReviews fetches buyer reviews for a listing.
func (c *Client) GetItemReviews(ctx context.Context, userID int64, itemID string) (*models.ReviewsResult, error) {
	var result models.ReviewsResult
	if err := c.get(ctx, userID, "/reviews/item/"+url.PathEscape(itemID), nil, "get_reviews", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// get performs one authenticated GET with the bounded-retry policy: a 401
// triggers exactly one refresh and one retry; a second 401 revokes the
// stored token and surfaces ErrAuthenticationRequired.
func (c *Client) get(ctx context.Context, userID int64, path string, query url.Values, endpoint string, out interface{}) error {
	start := time.Now()

	token, err := c.oauth.ValidAccessToken(ctx, userID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotAuthorized) {
			metrics.RecordMarketplaceRequest(endpoint, "auth_required", time.Since(start))
			return ErrAuthenticationRequired
		}
		metrics.RecordMarketplaceRequest(endpoint, "error", time.Since(start))
		return err
	}

	status, body, err := c.do(ctx, token, path, query)
	if err != nil {
		metrics.RecordMarketplaceRequest(endpoint, "unreachable", time.Since(start))
		return err
	}

	if status == http.StatusUnauthorized {
		// One refresh, one retry. The access token may simply be stale.
		if err := c.oauth.ForceRefresh(ctx, userID, token); err != nil {
			metrics.RecordMarketplaceRequest(endpoint, "auth_required", time.Since(start))
			if errors.Is(err, oauth.ErrNotAuthorized) {
				return ErrAuthenticationRequired
			}
			return fmt.Errorf("token refresh after 401 failed: %w", err)
		}
		token, err = c.oauth.ValidAccessToken(ctx, userID)
		if err != nil {
			metrics.RecordMarketplaceRequest(endpoint, "auth_required", time.Since(start))
			return ErrAuthenticationRequired
		}
		status, body, err = c.do(ctx, token, path, query)
		if err != nil {
			metrics.RecordMarketplaceRequest(endpoint, "unreachable", time.Since(start))
			return err
		}
		if status == http.StatusUnauthorized {
			// Fresh token still rejected: the authorization itself is gone.
			c.oauth.Revoke(userID)
			metrics.RecordMarketplaceRequest(endpoint, "auth_required", time.Since(start))
			logging.Warn().
				Int64("user_id", userID).
				Str("endpoint", endpoint).
				Msg("Marketplace rejected a freshly refreshed token, authorization revoked")
			return ErrAuthenticationRequired
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		metrics.RecordMarketplaceRequest(endpoint, "rate_limited", time.Since(start))
		return &RateLimitError{RetryAfter: parseRetryAfter(body.retryAfter)}
	case status < 200 || status > 299:
		metrics.RecordMarketplaceRequest(endpoint, "error", time.Since(start))
		return &APIError{StatusCode: status, Body: strings.TrimSpace(string(body.data))}
	}

	if err := json.Unmarshal(body.data, out); err != nil {
		metrics.RecordMarketplaceRequest(endpoint, "error", time.Since(start))
		return fmt.Errorf("failed to decode marketplace response: %w", err)
	}
	metrics.RecordMarketplaceRequest(endpoint, "success", time.Since(start))
	return nil
}

// response carries what the retry/error policy needs from one exchange.
type response struct {
	data       []byte
	retryAfter string
}

func (c *Client) do(ctx context.Context, token, path string, query url.Values) (int, response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, response{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	u := c.cfg.APIBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, response{}, fmt.Errorf("failed to build marketplace request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures collapse into one retriable
		// class; everything the caller can act on is in the sentinel.
		return 0, response{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, response{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp.StatusCode, response{data: data, retryAfter: resp.Header.Get("Retry-After")}, nil
}

// parseRetryAfter handles the delta-seconds form of Retry-After. The
// HTTP-date form is rare enough on this API that it maps to zero.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
