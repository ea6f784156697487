// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package auth handles application sessions: password hashing, JWT
// issuance and validation, and the request middleware that resolves the
// authenticated user.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vigia-app/vigia/internal/config"
)

// Claims represents the session claims carried in a JWT. The user ID is
// the subject; email rides along for logging.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager creates and validates session tokens. Tokens are signed
// with HMAC-SHA256 and are stateless: they cannot be revoked before
// expiry.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager creates a session token manager. The secret must be
// non-empty; the session duration comes from configuration (7 days by
// default).
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionDuration,
	}, nil
}

// GenerateToken creates a signed session token for the user.
func (m *JWTManager) GenerateToken(userID int64, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// ValidateToken verifies the signature, algorithm, and time claims, and
// returns the user ID the token was issued for.
func (m *JWTManager) ValidateToken(tokenString string) (int64, *Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Pinning the method family blocks algorithm confusion attacks.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, nil, fmt.Errorf("invalid token claims")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return userID, claims, nil
}
