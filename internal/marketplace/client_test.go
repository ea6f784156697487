// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/oauth"
)

// testEnv wires a fake token endpoint and a fake API behind a real
// client, with user 1 already authorized.
type testEnv struct {
	client     *Client
	tokens     *oauth.TokenStore
	apiCalls   *atomic.Int32
	tokenCalls *atomic.Int32
}

func newTestEnv(t *testing.T, api http.HandlerFunc) *testEnv {
	t.Helper()

	var apiCalls, tokenCalls atomic.Int32

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"refreshed-token","token_type":"Bearer","expires_in":21600,"refresh_token":"ref-2"}`)
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		api(w, r)
	}))
	t.Cleanup(apiSrv.Close)

	cfg := config.MarketplaceConfig{
		ClientID:          "test-client",
		ClientSecret:      "test-secret",
		TokenEndpoint:     tokenSrv.URL,
		APIBaseURL:        apiSrv.URL,
		RefreshMargin:     5 * time.Minute,
		RequestTimeout:    2 * time.Second,
		TokenTimeout:      2 * time.Second,
		RequestsPerSecond: 100,
	}

	tokens := oauth.NewTokenStore()
	tokens.Save(1, "valid-token", "ref-1", 6*3600, "")

	oc := oauth.NewClient(cfg, oauth.NewSessionStore(time.Minute), tokens)
	return &testEnv{
		client:     NewClient(cfg, oc),
		tokens:     tokens,
		apiCalls:   &apiCalls,
		tokenCalls: &tokenCalls,
	}
}

func itemJSON(id string, price float64) string {
	return fmt.Sprintf(`{"id":%q,"title":"Gaming Mouse","price":%g,"available_quantity":12,"permalink":"https://example.com/p","thumbnail":"https://example.com/t.jpg","seller_id":555}`, id, price)
}

func TestGetItemSuccess(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/MLB123", r.URL.Path)
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, itemJSON("MLB123", 199.9))
	})

	item, err := env.client.GetItem(context.Background(), 1, "MLB123")
	require.NoError(t, err)
	assert.Equal(t, "MLB123", item.ID)
	assert.Equal(t, "Gaming Mouse", item.Title)
	assert.InDelta(t, 199.9, item.Price, 0.001)
	assert.Equal(t, 12, item.AvailableQuantity)
	assert.Equal(t, int32(1), env.apiCalls.Load())
}

func TestGetItemNoTokenMakesNoOutboundCall(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})
	env.tokens.Revoke(1)

	_, err := env.client.GetItem(context.Background(), 1, "MLB123")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Equal(t, int32(0), env.apiCalls.Load())
	assert.Equal(t, int32(0), env.tokenCalls.Load())
}

func TestGetItem401RefreshRetrySucceeds(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer refreshed-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, itemJSON("MLB123", 150))
	})

	item, err := env.client.GetItem(context.Background(), 1, "MLB123")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, item.Price, 0.001)
	assert.Equal(t, int32(2), env.apiCalls.Load(), "exactly one retry after the 401")
	assert.Equal(t, int32(1), env.tokenCalls.Load(), "exactly one refresh")
}

func TestGetItem401TwiceRevokesToken(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := env.client.GetItem(context.Background(), 1, "MLB123")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Equal(t, int32(2), env.apiCalls.Load(), "no second retry after the retried 401")

	_, ok := env.tokens.Get(1)
	assert.False(t, ok, "persistent 401 must revoke the stored token")
}

func TestGetItemRateLimited(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := env.client.GetItem(context.Background(), 1, "MLB123")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2*time.Minute, rle.RetryAfter)
}

func TestGetItemRateLimitedNoHeader(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := env.client.GetItem(context.Background(), 1, "MLB123")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Zero(t, rle.RetryAfter)
}

func TestGetItemTimeout(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	})

	_, err := env.client.GetItem(context.Background(), 1, "MLB123")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestGetItemServerError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := env.client.GetItem(context.Background(), 1, "MLB123")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/MLB/search", r.URL.Path)
		assert.Equal(t, "notebook", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"paging":{"total":2,"offset":20,"limit":10},"results":[%s,%s]}`,
			itemJSON("MLB1", 100), itemJSON("MLB2", 200))
	})

	res, err := env.client.Search(context.Background(), 1, "notebook", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "notebook", res.Query)
	assert.Equal(t, 2, res.Paging.Total)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "MLB1", res.Results[0].ID)
}

func TestGetItemReviews(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews/item/MLB123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"rating_average":4.5,"reviews":[{"id":1,"rate":5,"title":"Great","content":"Works well"},{"id":2,"rate":4,"title":"Good","content":"Minor issues"}]}`)
	})

	res, err := env.client.GetItemReviews(context.Background(), 1, "MLB123")
	require.NoError(t, err)
	assert.InDelta(t, 4.5, res.RatingAverage, 0.001)
	require.Len(t, res.Reviews, 2)
	assert.Equal(t, 5, res.Reviews[0].Rate)
	assert.Equal(t, "Works well", res.Reviews[0].Content)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"60", time.Minute},
		{"0", 0},
		{"-5", 0},
		{"not-a-number", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.in), "input %q", tt.in)
	}
}
