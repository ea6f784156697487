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

// PendingAuthorization is the server-side half of an in-flight
// authorization: the PKCE verifier that must accompany the code exchange,
// keyed by the state nonce embedded in the redirect.
type PendingAuthorization struct {
	UserID    int64
	Verifier  string
	CreatedAt time.Time
}

// SessionStore holds pending authorizations between the redirect to the
// provider and the callback. Entries are single-use: TakeIfValid removes
// the entry whether or not it is still within its TTL, so a state can
// never be replayed.
type SessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]PendingAuthorization
}

// NewSessionStore creates a store whose entries expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:     ttl,
		pending: make(map[string]PendingAuthorization),
	}
}

// Put registers a pending authorization under state.
func (s *SessionStore) Put(state string, userID int64, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[state] = PendingAuthorization{
		UserID:    userID,
		Verifier:  verifier,
		CreatedAt: time.Now(),
	}
	metrics.PendingAuthorizations.Set(float64(len(s.pending)))
}

// TakeIfValid atomically removes and returns the pending authorization for
// state. It returns false when state is unknown, already consumed, or older
// than the store TTL. Expired entries are removed on the way out, so a
// stale state cannot succeed on a later attempt either.
func (s *SessionStore) TakeIfValid(state string) (PendingAuthorization, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return PendingAuthorization{}, false
	}
	delete(s.pending, state)
	metrics.PendingAuthorizations.Set(float64(len(s.pending)))

	if time.Since(p.CreatedAt) > s.ttl {
		return PendingAuthorization{}, false
	}
	return p, true
}

// CleanupExpired drops entries older than the TTL and returns how many
// were removed. The supervisor runs this periodically so abandoned flows
// do not accumulate.
func (s *SessionStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for state, p := range s.pending {
		if now.Sub(p.CreatedAt) > s.ttl {
			delete(s.pending, state)
			removed++
		}
	}
	metrics.PendingAuthorizations.Set(float64(len(s.pending)))
	return removed
}

// Len reports the number of pending authorizations.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
