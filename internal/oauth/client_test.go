// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigia-app/vigia/internal/config"
)

func testMarketplaceConfig(tokenEndpoint string) config.MarketplaceConfig {
	return config.MarketplaceConfig{
		ClientID:              "test-client",
		ClientSecret:          "test-secret",
		RedirectURI:           "http://localhost:8000/api/auth/ml/callback",
		Scopes:                []string{"offline_access", "read"},
		AuthorizationEndpoint: "https://auth.example.com/authorization",
		TokenEndpoint:         tokenEndpoint,
		StateTTL:              time.Minute,
		RefreshMargin:         5 * time.Minute,
		TokenTimeout:          5 * time.Second,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *SessionStore, *TokenStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions := NewSessionStore(time.Minute)
	tokens := NewTokenStore()
	return NewClient(testMarketplaceConfig(srv.URL), sessions, tokens), sessions, tokens
}

func tokenJSON(access, refresh string, expiresIn int) string {
	return fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer","expires_in":%d,"refresh_token":%q,"scope":"offline_access read"}`,
		access, expiresIn, refresh)
}

func TestAuthorizationURL(t *testing.T) {
	client, sessions, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("authorization URL generation must not hit the token endpoint")
	})

	raw, err := client.AuthorizationURL(42)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", u.Host)
	assert.Equal(t, "/authorization", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/api/auth/ml/callback", q.Get("redirect_uri"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Len(t, q.Get("code_challenge"), 43)
	assert.Equal(t, "offline_access read", q.Get("scope"))
	assert.True(t, strings.HasPrefix(q.Get("state"), "user_42_"))

	// The state must be parked for the callback.
	assert.Equal(t, 1, sessions.Len())
}

func TestAuthorizationURLUniquePerCall(t *testing.T) {
	client, _, _ := newTestClient(t, nil)

	a, err := client.AuthorizationURL(1)
	require.NoError(t, err)
	b, err := client.AuthorizationURL(1)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "each attempt gets a fresh state and challenge")
}

func TestExchangeCodeSuccess(t *testing.T) {
	var gotForm url.Values
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("acc-1", "ref-1", 21600))
	})

	raw, err := client.AuthorizationURL(42)
	require.NoError(t, err)
	state := mustQueryParam(t, raw, "state")
	challenge := mustQueryParam(t, raw, "code_challenge")

	userID, err := client.ExchangeCode(context.Background(), "the-code", state)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "the-code", gotForm.Get("code"))
	assert.Equal(t, "test-client", gotForm.Get("client_id"))
	assert.Equal(t, challenge, CodeChallenge(gotForm.Get("code_verifier")),
		"exchange must send the verifier matching the challenge from the redirect")

	tok, ok := tokens.Get(42)
	require.True(t, ok)
	assert.Equal(t, "acc-1", tok.AccessToken)
	assert.Equal(t, "ref-1", tok.RefreshToken)
}

func TestExchangeCodeUnknownState(t *testing.T) {
	var calls atomic.Int32
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.ExchangeCode(context.Background(), "code", "user_1_bogus")
	assert.ErrorIs(t, err, ErrVerifierMissing)
	assert.Equal(t, int32(0), calls.Load(), "unknown state must not reach the token endpoint")
}

func TestExchangeCodeProviderRejects(t *testing.T) {
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})

	raw, err := client.AuthorizationURL(1)
	require.NoError(t, err)
	state := mustQueryParam(t, raw, "state")

	_, err = client.ExchangeCode(context.Background(), "bad-code", state)
	var te *TokenExchangeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Contains(t, te.Body, "invalid_grant")

	_, ok := tokens.Get(1)
	assert.False(t, ok, "failed exchange must not store a token")

	// The state was consumed before the network call; a retry is refused.
	_, err = client.ExchangeCode(context.Background(), "bad-code", state)
	assert.ErrorIs(t, err, ErrVerifierMissing)
}

func TestValidAccessTokenNotAuthorized(t *testing.T) {
	client, _, _ := newTestClient(t, nil)
	_, err := client.ValidAccessToken(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestValidAccessTokenFreshSkipsRefresh(t *testing.T) {
	var calls atomic.Int32
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	tokens.Save(1, "still-good", "refresh", 6*3600, "")

	got, err := client.ValidAccessToken(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "still-good", got)
	assert.Equal(t, int32(0), calls.Load(), "fresh token must not trigger a refresh")
}

func TestValidAccessTokenRefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int32
	var gotForm url.Values
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("acc-new", "ref-new", 21600))
	})
	// 60s remaining, inside the 5m margin.
	tokens.Save(1, "acc-old", "ref-old", 60, "")

	got, err := client.ValidAccessToken(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "acc-new", got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "ref-old", gotForm.Get("refresh_token"))

	tok, ok := tokens.Get(1)
	require.True(t, ok)
	assert.Equal(t, "ref-new", tok.RefreshToken)
}

func TestRefreshRejectedRevokesToken(t *testing.T) {
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	})
	tokens.Save(1, "acc", "dead-refresh", 0, "")

	_, err := client.ValidAccessToken(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, ok := tokens.Get(1)
	assert.False(t, ok, "rejected refresh must revoke the stored token")
}

func TestRefreshServerErrorKeepsToken(t *testing.T) {
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	tokens.Save(1, "acc", "ref", 0, "")

	err := client.Refresh(context.Background(), 1)
	var te *TokenExchangeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)

	_, ok := tokens.Get(1)
	assert.True(t, ok, "a transient provider error must not revoke the token")
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"acc-new","token_type":"Bearer","expires_in":21600}`)
	})
	tokens.Save(1, "acc-old", "ref-keep", 0, "")

	require.NoError(t, client.Refresh(context.Background(), 1))

	tok, ok := tokens.Get(1)
	require.True(t, ok)
	assert.Equal(t, "acc-new", tok.AccessToken)
	assert.Equal(t, "ref-keep", tok.RefreshToken)
}

func TestConcurrentValidAccessTokenSingleRefresh(t *testing.T) {
	var calls atomic.Int32
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("acc-new", "ref-new", 21600))
	})
	tokens.Save(1, "acc-old", "ref-old", 0, "")

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := client.ValidAccessToken(context.Background(), 1)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one refresh")
}

func TestForceRefreshIgnoresExpiry(t *testing.T) {
	var calls atomic.Int32
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("acc-new", "ref-new", 21600))
	})
	// Six hours of validity left, yet the provider rejected it.
	tokens.Save(1, "acc-rejected", "ref", 6*3600, "")

	require.NoError(t, client.ForceRefresh(context.Background(), 1, "acc-rejected"))
	assert.Equal(t, int32(1), calls.Load())

	tok, ok := tokens.Get(1)
	require.True(t, ok)
	assert.Equal(t, "acc-new", tok.AccessToken)
}

func TestForceRefreshSkipsWhenAlreadyRotated(t *testing.T) {
	var calls atomic.Int32
	client, _, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	tokens.Save(1, "acc-current", "ref", 6*3600, "")

	// The caller was rejected with a token that has since been replaced.
	require.NoError(t, client.ForceRefresh(context.Background(), 1, "acc-older"))
	assert.Equal(t, int32(0), calls.Load(), "stale rejection must not trigger a grant")
}

func mustQueryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	v := u.Query().Get(key)
	require.NotEmpty(t, v)
	return v
}
