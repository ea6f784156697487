// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreSaveGet(t *testing.T) {
	s := NewTokenStore()
	s.Save(1, "access", "refresh", 21600, "offline_access read")

	tok, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.Equal(t, "offline_access read", tok.Scope)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), tok.ExpiresAt, 5*time.Second)
}

func TestTokenStoreSaveReplaces(t *testing.T) {
	s := NewTokenStore()
	s.Save(1, "old-access", "old-refresh", 3600, "")
	s.Save(1, "new-access", "new-refresh", 3600, "")

	tok, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "new-refresh", tok.RefreshToken)
}

func TestTokenStoreGetMissing(t *testing.T) {
	s := NewTokenStore()
	_, ok := s.Get(404)
	assert.False(t, ok)
}

func TestTokenStoreRevoke(t *testing.T) {
	s := NewTokenStore()
	s.Save(1, "access", "refresh", 3600, "")

	s.Revoke(1)
	_, ok := s.Get(1)
	assert.False(t, ok)

	// Revoking again must be a no-op, not a panic.
	s.Revoke(1)
}

func TestTokenExpiresWithin(t *testing.T) {
	tests := []struct {
		name   string
		until  time.Duration
		margin time.Duration
		want   bool
	}{
		{"well before margin", time.Hour, 5 * time.Minute, false},
		{"inside margin", 2 * time.Minute, 5 * time.Minute, true},
		{"already expired", -time.Minute, 5 * time.Minute, true},
		{"zero margin, valid", time.Minute, 0, false},
		{"zero margin, expired", -time.Second, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := Token{ExpiresAt: time.Now().Add(tt.until)}
			assert.Equal(t, tt.want, tok.ExpiresWithin(tt.margin))
		})
	}
}
