// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package database

import (
	"context"
	"fmt"

	"github.com/vigia-app/vigia/internal/models"
)

// AppendPriceSample records one observation for a product. History is
// append-only: samples are never updated or deduplicated, so a flat
// price still produces one row per cycle.
func (db *DB) AppendPriceSample(ctx context.Context, productID int64, price float64, stock int) (*models.PriceSample, error) {
	var s models.PriceSample
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO price_history (product_id, price, stock)
		 VALUES (?, ?, ?)
		 RETURNING id, product_id, price, stock, observed_at`,
		productID, price, stock,
	).Scan(&s.ID, &s.ProductID, &s.Price, &s.Stock, &s.ObservedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append price sample: %w", err)
	}
	return &s, nil
}

// ListHistory returns price samples for a product owned by userID, most
// recent first. limit <= 0 means no limit.
func (db *DB) ListHistory(ctx context.Context, productID, userID int64, limit int) ([]models.PriceSample, error) {
	// Ownership check first so a foreign product yields 404, not an
	// empty history.
	if _, err := db.GetProduct(ctx, productID, userID); err != nil {
		return nil, err
	}

	query := `SELECT id, product_id, price, stock, observed_at
		 FROM price_history WHERE product_id = ?
		 ORDER BY observed_at DESC, id DESC`
	args := []interface{}{productID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer closeWithLog(rows, "history rows")

	samples := []models.PriceSample{}
	for rows.Next() {
		var s models.PriceSample
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Price, &s.Stock, &s.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history row iteration failed: %w", err)
	}
	return samples, nil
}
