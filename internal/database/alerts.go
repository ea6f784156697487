// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vigia-app/vigia/internal/models"
)

// CreateAlert registers a target-price alert on a product the user owns.
// A product the user does not own returns ErrNotFound.
func (db *DB) CreateAlert(ctx context.Context, userID, productID int64, targetPrice float64) (*models.Alert, error) {
	if _, err := db.GetProduct(ctx, productID, userID); err != nil {
		return nil, err
	}

	var a models.Alert
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO alerts (user_id, product_id, target_price)
		 VALUES (?, ?, ?)
		 RETURNING id, user_id, product_id, target_price, fired, created_at`,
		userID, productID, targetPrice,
	).Scan(&a.ID, &a.UserID, &a.ProductID, &a.TargetPrice, &a.Fired, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return &a, nil
}

// ListAlerts returns all alerts belonging to a user.
func (db *DB) ListAlerts(ctx context.Context, userID int64) ([]models.Alert, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, product_id, target_price, fired, created_at
		 FROM alerts WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer closeWithLog(rows, "alert rows")

	return scanAlerts(rows)
}

// ListUnfiredForProduct returns the alerts still armed on a product. The
// monitor evaluates these after each successful poll.
func (db *DB) ListUnfiredForProduct(ctx context.Context, productID int64) ([]models.Alert, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, product_id, target_price, fired, created_at
		 FROM alerts WHERE product_id = ? AND fired = false ORDER BY id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfired alerts: %w", err)
	}
	defer closeWithLog(rows, "alert rows")

	return scanAlerts(rows)
}

// TryMarkFired flips an alert from armed to fired. It reports true only
// for the caller that actually performed the flip: the conditional
// update makes firing an atomic claim, so two concurrent evaluations of
// the same alert produce exactly one notification.
func (db *DB) TryMarkFired(ctx context.Context, alertID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE alerts SET fired = true WHERE id = ? AND fired = false`, alertID)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert fired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read alert update result: %w", err)
	}
	return n == 1, nil
}

// GetAlert fetches one alert scoped to its owner.
func (db *DB) GetAlert(ctx context.Context, id, userID int64) (*models.Alert, error) {
	var a models.Alert
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, target_price, fired, created_at
		 FROM alerts WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&a.ID, &a.UserID, &a.ProductID, &a.TargetPrice, &a.Fired, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return &a, nil
}

// DeleteAlert removes an alert scoped to its owner.
func (db *DB) DeleteAlert(ctx context.Context, id, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM alerts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlerts(rows *sql.Rows) ([]models.Alert, error) {
	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProductID, &a.TargetPrice, &a.Fired, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert row iteration failed: %w", err)
	}
	return alerts, nil
}
