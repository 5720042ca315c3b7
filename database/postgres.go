package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Schema is the set of idempotent statements the service needs
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		current_price DECIMAL(12,2),
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		alert_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		notify_any_drop BOOLEAN NOT NULL DEFAULT FALSE,
		alert_threshold DECIMAL(12,2),
		check_interval INTEGER NOT NULL DEFAULT 86400,
		last_checked_at TIMESTAMPTZ,
		next_check_at TIMESTAMPTZ,
		last_failed_at TIMESTAMPTZ,
		failure_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id SERIAL PRIMARY KEY,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		price DECIMAL(12,2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		checked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		product_id INTEGER REFERENCES products(id) ON DELETE CASCADE,
		type VARCHAR(32) NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_next_check ON products (next_check_at)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history (product_id, checked_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications (sent_at)`,
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables(ctx context.Context, db *sql.DB) error {
	for _, query := range Schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
