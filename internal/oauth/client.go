// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/metrics"
)

// tokenResponse mirrors the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
}

// Client drives the provider's authorization and token endpoints for all
// users. It owns the session and token stores so the refresh decision and
// the revoke-on-failure policy live in one place.
type Client struct {
	cfg      config.MarketplaceConfig
	sessions *SessionStore
	tokens   *TokenStore

	// httpClient talks only to the token endpoint. Exchanges block a user
	// mid-flow, so it gets a longer timeout than plain API reads.
	httpClient *http.Client

	// refreshMu serializes refreshes so concurrent callers holding the
	// same expired token trigger one grant, not a stampede.
	refreshMu sync.Mutex
}

// NewClient creates an OAuth client backed by the given stores.
func NewClient(cfg config.MarketplaceConfig, sessions *SessionStore, tokens *TokenStore) *Client {
	return &Client{
		cfg:        cfg,
		sessions:   sessions,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.TokenTimeout},
	}
}

// Tokens exposes the underlying token store for status checks.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// AuthorizationURL begins the flow for userID: it generates a fresh PKCE
// verifier and state, parks them in the session store, and returns the
// provider URL the user's browser must be sent to.
func (c *Client) AuthorizationURL(userID int64) (string, error) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", err
	}
	nonce, err := GenerateState()
	if err != nil {
		return "", err
	}
	// The user is recoverable from the session entry alone; embedding the
	// ID in the state keeps callback logs attributable.
	state := fmt.Sprintf("user_%d_%s", userID, nonce)

	c.sessions.Put(state, userID, verifier)

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	q.Set("code_challenge", CodeChallenge(verifier))
	q.Set("code_challenge_method", "S256")
	if len(c.cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}
	return c.cfg.AuthorizationEndpoint + "?" + q.Encode(), nil
}

// ExchangeCode completes the flow: it consumes the pending authorization
// for state, exchanges the code for tokens, and stores them. It returns
// the user the tokens now belong to.
//
// The pending authorization is consumed before the network call, so a
// failed exchange cannot be retried with the same state.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (int64, error) {
	pending, ok := c.sessions.TakeIfValid(state)
	if !ok {
		metrics.TokenExchangesTotal.WithLabelValues("invalid_state").Inc()
		return 0, ErrVerifierMissing
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("code_verifier", pending.Verifier)

	tr, err := c.postToken(ctx, form)
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	c.tokens.Save(pending.UserID, tr.AccessToken, tr.RefreshToken, tr.ExpiresIn, tr.Scope)
	metrics.TokenExchangesTotal.WithLabelValues("success").Inc()

	logging.Info().
		Int64("user_id", pending.UserID).
		Str("scope", tr.Scope).
		Msg("Marketplace authorization completed")
	return pending.UserID, nil
}

// ValidAccessToken returns an access token for userID that is good for at
// least the configured refresh margin, refreshing first when the stored
// one is too close to expiry. It returns ErrNotAuthorized when the user
// has no stored token.
func (c *Client) ValidAccessToken(ctx context.Context, userID int64) (string, error) {
	t, ok := c.tokens.Get(userID)
	if !ok {
		return "", ErrNotAuthorized
	}
	if !t.ExpiresWithin(c.cfg.RefreshMargin) {
		return t.AccessToken, nil
	}
	if err := c.Refresh(ctx, userID); err != nil {
		return "", err
	}
	t, ok = c.tokens.Get(userID)
	if !ok {
		return "", ErrNotAuthorized
	}
	return t.AccessToken, nil
}

// Refresh performs the refresh_token grant for userID when the stored
// token is inside the refresh margin. A 4xx from the token endpoint means
// the refresh token is dead (revoked, rotated away, or expired); the
// stored token is removed so subsequent calls report ErrNotAuthorized
// instead of retrying forever.
func (c *Client) Refresh(ctx context.Context, userID int64) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	t, ok := c.tokens.Get(userID)
	if !ok {
		return ErrNotAuthorized
	}
	// Another caller may have refreshed while we waited on the mutex.
	if !t.ExpiresWithin(c.cfg.RefreshMargin) {
		return nil
	}
	return c.doRefresh(ctx, userID, t)
}

// ForceRefresh refreshes even a token that looks fresh. The API layer
// calls this when the provider answered 401 with a token that is not near
// expiry. staleAccess is the token the caller was rejected with: if the
// stored token has already rotated past it, the rejection is stale and no
// grant is issued.
func (c *Client) ForceRefresh(ctx context.Context, userID int64, staleAccess string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	t, ok := c.tokens.Get(userID)
	if !ok {
		return ErrNotAuthorized
	}
	if t.AccessToken != staleAccess {
		return nil
	}
	return c.doRefresh(ctx, userID, t)
}

// doRefresh issues the refresh grant. Callers hold refreshMu.
func (c *Client) doRefresh(ctx context.Context, userID int64, t Token) error {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", t.RefreshToken)

	tr, err := c.postToken(ctx, form)
	if err != nil {
		var te *TokenExchangeError
		if errors.As(err, &te) && te.StatusCode >= 400 && te.StatusCode < 500 {
			c.tokens.Revoke(userID)
			metrics.TokenRefreshesTotal.WithLabelValues("revoked").Inc()
			logging.Warn().
				Int64("user_id", userID).
				Int("status", te.StatusCode).
				Msg("Refresh token rejected, authorization revoked")
			return fmt.Errorf("refresh rejected: %w", ErrNotAuthorized)
		}
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return err
	}

	refreshToken := tr.RefreshToken
	if refreshToken == "" {
		// Provider did not rotate; keep the one we have.
		refreshToken = t.RefreshToken
	}
	c.tokens.Save(userID, tr.AccessToken, refreshToken, tr.ExpiresIn, tr.Scope)
	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()

	logging.Debug().Int64("user_id", userID).Msg("Marketplace token refreshed")
	return nil
}

// Revoke discards any stored token for userID.
func (c *Client) Revoke(userID int64) {
	c.tokens.Revoke(userID)
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: "response missing access_token"}
	}
	return &tr, nil
}
