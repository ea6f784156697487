// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package oauth

import (
	"sync"
	"time"

	"github.com/vigia-app/vigia/internal/metrics"
)

// Token is a stored marketplace credential for one user. ExpiresAt is an
// absolute instant computed from the provider's expires_in at save time.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	ObtainedAt   time.Time
}

// ExpiresWithin reports whether the token expires before now+margin.
func (t Token) ExpiresWithin(margin time.Duration) bool {
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// TokenStore holds per-user marketplace tokens. Both the HTTP handlers and
// the background monitor read and replace tokens concurrently, so all
// access goes through the mutex.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[int64]Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[int64]Token)}
}

// Save stores a token for userID, replacing any previous one. expiresIn is
// the provider's relative lifetime in seconds.
func (s *TokenStore) Save(userID int64, accessToken, refreshToken string, expiresIn int64, scope string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[userID] = Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		Scope:        scope,
		ObtainedAt:   now,
	}
	metrics.TokensStored.Set(float64(len(s.tokens)))
}

// Get returns the stored token for userID.
func (s *TokenStore) Get(userID int64) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[userID]
	return t, ok
}

// Revoke removes the token for userID. Revoking an absent token is a no-op.
func (s *TokenStore) Revoke(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	metrics.TokensStored.Set(float64(len(s.tokens)))
}
