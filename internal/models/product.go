// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package models

import "time"

// Product is a marketplace listing tracked by a user.
// Name, Price, Stock, URL and Thumbnail mirror the marketplace listing and
// are refreshed by the monitor after every successful poll.
type Product struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	// ExternalID is the marketplace listing identifier (e.g. "MLB123456789").
	ExternalID string `json:"ml_id"`

	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceSample is one observed price point for a product. Samples are
// append-only: one row per successful poll whether or not the price moved.
type PriceSample struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Price      float64   `json:"price"`
	Stock      int       `json:"stock"`
	ObservedAt time.Time `json:"observed_at"`
}

// Alert is a price-drop alert rule. Once Fired flips to true the rule never
// notifies again; the false-to-true transition is claimed atomically by
// whichever monitor cycle observes the target price first.
type Alert struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ProductID   int64     `json:"product_id"`
	TargetPrice float64   `json:"target_price"`
	Fired       bool      `json:"fired"`
	CreatedAt   time.Time `json:"created_at"`
}
