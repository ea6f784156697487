// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package notify

import (
	"context"

	"github.com/vigia-app/vigia/internal/logging"
)

// LogNotifier records alerts in the application log instead of sending
// email. Used when SMTP is not configured, so alert evaluation still
// runs and fired alerts are visible to the operator.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// SendPriceAlert implements Notifier.
func (n *LogNotifier) SendPriceAlert(_ context.Context, a PriceAlert) error {
	logging.Info().
		Str("email", a.Email).
		Str("product", a.Product.Name).
		Float64("current_price", a.CurrentPrice).
		Float64("target_price", a.TargetPrice).
		Msg("Price alert triggered (SMTP not configured, logging only)")
	return nil
}
