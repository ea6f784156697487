// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrVerifierMissing is returned by ExchangeCode when the state from
	// the callback does not match any pending authorization, or matched
	// one that already expired or was consumed.
	ErrVerifierMissing = errors.New("no pending authorization for state")

	// ErrNotAuthorized is returned when no token is stored for the user,
	// i.e. the user never completed the authorization flow or the token
	// was revoked.
	ErrNotAuthorized = errors.New("user has not authorized the marketplace")
)

// TokenExchangeError reports a non-2xx response from the provider's token
// endpoint during code exchange or refresh.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Body)
}
