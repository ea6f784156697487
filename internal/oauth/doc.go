// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package oauth implements the marketplace OAuth2 Authorization Code flow
// with PKCE (RFC 7636) and the per-user token lifecycle.
//
// The flow has three actors:
//
//   - SessionStore holds pending authorizations (state -> PKCE verifier)
//     between the redirect to the provider and the callback. Entries are
//     single-use and expire after a bounded TTL.
//   - TokenStore holds per-user access/refresh tokens with expiry. It is
//     the only shared mutable state between the HTTP layer and the
//     background monitor, so every access is mutex-guarded.
//   - Client drives the provider's authorization and token endpoints:
//     authorization URL generation, code exchange, and refresh-on-demand.
//
// Callers that need a usable token go through Client.ValidAccessToken,
// never TokenStore.Get directly, so the refresh decision lives in exactly
// one place.
package oauth
