// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigia-app/vigia/internal/config"
)

func testJWTManager(t *testing.T, timeout time.Duration) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:       "test-secret-that-is-long-enough-0123",
		SessionDuration: timeout,
	})
	require.NoError(t, err)
	return m
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{})
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := testJWTManager(t, time.Hour)

	token, err := m.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	userID, claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestValidateTokenExpired(t *testing.T) {
	m := testJWTManager(t, -time.Minute)

	token, err := m.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	_, _, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	m1 := testJWTManager(t, time.Hour)
	m2, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:       "a-completely-different-secret-456789",
		SessionDuration: time.Hour,
	})
	require.NoError(t, err)

	token, err := m1.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	_, _, err = m2.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	m := testJWTManager(t, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = m.ValidateToken(token)
	assert.Error(t, err, "alg=none must never validate")
}

func TestValidateTokenGarbage(t *testing.T) {
	m := testJWTManager(t, time.Hour)
	_, _, err := m.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", hash)

	assert.True(t, CheckPassword(hash, "s3cret-password"))
	assert.False(t, CheckPassword(hash, "wrong-password"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret-password"))
}
