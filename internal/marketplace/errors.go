// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package marketplace

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthenticationRequired means the user has no usable credential:
	// either no token was ever stored, or both the access token and a
	// refresh attempt were rejected. The user must redo the
	// authorization flow.
	ErrAuthenticationRequired = errors.New("marketplace authentication required")

	// ErrUnreachable means the marketplace did not answer in time or the
	// connection failed. The request may be retried later.
	ErrUnreachable = errors.New("marketplace unreachable")
)

// RateLimitError reports a 429 from the marketplace. RetryAfter is the
// provider's requested back-off, zero when the header was absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("marketplace rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "marketplace rate limit exceeded"
}

// APIError reports any other non-2xx marketplace response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API returned %d: %s", e.StatusCode, e.Body)
}
