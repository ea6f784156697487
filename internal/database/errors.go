// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package database

import (
	"errors"
	"io"

	"github.com/vigia-app/vigia/internal/logging"
)

var (
	// ErrNotFound means the requested row does not exist or does not
	// belong to the requesting user. Handlers map it to 404 without
	// revealing which of the two it was.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a uniqueness constraint would be violated:
	// an email already registered, or a listing already tracked by
	// the same user.
	ErrDuplicate = errors.New("record already exists")
)

// closeQuietly closes a resource and explicitly ignores any error.
// Use in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}
