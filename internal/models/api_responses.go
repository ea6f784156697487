// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package models

import (
	"time"
)

// APIResponse is the standardized wrapper for every HTTP endpoint.
//
// Status is "success" or "error". Data carries the payload on success;
// Error is populated only on failure.
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "NOT_FOUND", "message": "product not found"},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries a machine-readable code and a human-readable message.
//
// Codes in use: VALIDATION_ERROR, UNAUTHORIZED, NOT_FOUND, CONFLICT,
// MARKETPLACE_AUTH_REQUIRED, RATE_LIMITED, UPSTREAM_UNAVAILABLE,
// DATABASE_ERROR, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
