// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods for
// users, products, price history, and alerts.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the database file and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// The data directory may not exist on first start.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool(numThreads)

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("Database opened")
	return db, nil
}

func (db *DB) configureConnectionPool(numThreads int) {
	db.conn.SetMaxOpenConns(numThreads)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Close checkpoints the WAL and closes the connection. The checkpoint is
// best-effort; a failure only affects replay time on next startup.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	return db.conn.Close()
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_users_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_products_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_price_history_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_alerts_id START 1`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_users_id'),
			email VARCHAR NOT NULL UNIQUE,
			name VARCHAR NOT NULL,
			password_hash VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_products_id'),
			user_id BIGINT NOT NULL,
			external_id VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			price DOUBLE NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0,
			url VARCHAR NOT NULL DEFAULT '',
			thumbnail VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
			UNIQUE (user_id, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_price_history_id'),
			product_id BIGINT NOT NULL,
			price DOUBLE NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0,
			observed_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_alerts_id'),
			user_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			target_price DOUBLE NOT NULL,
			fired BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE INDEX IF NOT EXISTS idx_products_user ON products (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_product ON price_history (product_id, observed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_product ON alerts (product_id, fired)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
