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

// CreateProduct starts tracking a marketplace listing for a user. The
// same user tracking the same listing twice returns ErrDuplicate.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	var out models.Product
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO products (user_id, external_id, name, price, stock, url, thumbnail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, user_id, external_id, name, price, stock, url, thumbnail, created_at`,
		p.UserID, p.ExternalID, p.Name, p.Price, p.Stock, p.URL, p.Thumbnail,
	).Scan(&out.ID, &out.UserID, &out.ExternalID, &out.Name, &out.Price,
		&out.Stock, &out.URL, &out.Thumbnail, &out.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &out, nil
}

// GetProduct fetches one tracked product scoped to its owner.
func (db *DB) GetProduct(ctx context.Context, id, userID int64) (*models.Product, error) {
	var p models.Product
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, external_id, name, price, stock, url, thumbnail, created_at
		 FROM products WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&p.ID, &p.UserID, &p.ExternalID, &p.Name, &p.Price,
		&p.Stock, &p.URL, &p.Thumbnail, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

// ListProducts returns all products tracked by a user, newest first.
func (db *DB) ListProducts(ctx context.Context, userID int64) ([]models.Product, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, external_id, name, price, stock, url, thumbnail, created_at
		 FROM products WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer closeWithLog(rows, "product rows")

	return scanProducts(rows)
}

// ListAllProducts returns every tracked product across all users. The
// monitor snapshots this at the start of each cycle.
func (db *DB) ListAllProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, external_id, name, price, stock, url, thumbnail, created_at
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all products: %w", err)
	}
	defer closeWithLog(rows, "product rows")

	return scanProducts(rows)
}

// UpdateListing replaces the mutable listing fields after a successful
// poll or manual refresh.
func (db *DB) UpdateListing(ctx context.Context, id int64, name string, price float64, stock int, thumbnail string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE products SET name = ?, price = ?, stock = ?, thumbnail = ? WHERE id = ?`,
		name, price, stock, thumbnail, id)
	if err != nil {
		return fmt.Errorf("failed to update product listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a tracked product and everything hanging off it:
// its price history and its alerts. Scoped to the owner.
func (db *DB) DeleteProduct(ctx context.Context, id, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM products WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM price_history WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete product history: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM alerts WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete product alerts: %w", err)
	}
	return nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.UserID, &p.ExternalID, &p.Name, &p.Price,
			&p.Stock, &p.URL, &p.Thumbnail, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product row iteration failed: %w", err)
	}
	return products, nil
}
