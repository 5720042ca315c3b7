package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pricewatch/models"
)

// ErrProductNotFound is returned when no product matches the given id
var ErrProductNotFound = errors.New("product not found")

const productColumns = `id, user_id, url, title, image_url, current_price, currency, is_available,
	alert_enabled, notify_any_drop, alert_threshold, check_interval,
	last_checked_at, next_check_at, last_failed_at, failure_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ProductRepository persists monitored products and their price history
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a repository over db
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID, &p.UserID, &p.URL, &p.Title, &p.ImageURL, &p.CurrentPrice, &p.Currency, &p.IsAvailable,
		&p.AlertEnabled, &p.NotifyAnyDrop, &p.AlertThreshold, &p.CheckInterval,
		&p.LastCheckedAt, &p.NextCheckAt, &p.LastFailedAt, &p.FailureCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductByID returns a product by ID
func (r *ProductRepository) GetProductByID(ctx context.Context, id int) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetDueProducts returns products whose next check is unset or not after now,
// oldest first
func (r *ProductRepository) GetDueProducts(ctx context.Context, now time.Time) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE next_check_at IS NULL OR next_check_at <= $1
		ORDER BY next_check_at ASC NULLS FIRST, id ASC`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// RecordCheck stores a successful extraction and its price history point in
// one transaction. Empty title or image keep the stored values; the failure
// streak is reset. On error nothing is written and the product stays due.
func (r *ProductRepository) RecordCheck(ctx context.Context, id int, result *models.ExtractionResult, checkedAt, nextCheckAt time.Time) (*models.PriceHistory, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin price check transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateAfterCheck(ctx, tx, id, result, checkedAt, nextCheckAt); err != nil {
		return nil, err
	}

	entry := &models.PriceHistory{
		ProductID:   id,
		Price:       result.Price,
		Currency:    result.Currency,
		IsAvailable: result.IsAvailable,
		CheckedAt:   checkedAt,
	}
	if err := addPriceHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit price check: %w", err)
	}
	return entry, nil
}

func updateAfterCheck(ctx context.Context, q execQuerier, id int, result *models.ExtractionResult, checkedAt, nextCheckAt time.Time) error {
	query := `
		UPDATE products
		SET title = COALESCE(NULLIF($2, ''), title),
			image_url = COALESCE(NULLIF($3, ''), image_url),
			current_price = $4,
			currency = COALESCE(NULLIF($5, ''), currency),
			is_available = $6,
			last_checked_at = $7,
			next_check_at = $8,
			last_failed_at = NULL,
			failure_count = 0,
			updated_at = $7
		WHERE id = $1
	`

	_, err := q.ExecContext(ctx, query, id, result.Title, result.ImageURL, result.Price,
		result.Currency, result.IsAvailable, checkedAt, nextCheckAt)
	if err != nil {
		return fmt.Errorf("failed to update product after check: %w", err)
	}
	return nil
}

// MarkCheckFailed records a failed check without touching the stored price
func (r *ProductRepository) MarkCheckFailed(ctx context.Context, id int, failedAt, nextCheckAt time.Time) error {
	query := `
		UPDATE products
		SET last_failed_at = $2, failure_count = failure_count + 1, next_check_at = $3, updated_at = $2
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, failedAt, nextCheckAt)
	if err != nil {
		return fmt.Errorf("failed to mark price check as failed: %w", err)
	}
	return nil
}

func addPriceHistory(ctx context.Context, q execQuerier, entry *models.PriceHistory) error {
	query := `
		INSERT INTO price_history (product_id, price, currency, is_available, checked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := q.QueryRowContext(ctx, query, entry.ProductID, entry.Price, entry.Currency,
		entry.IsAvailable, entry.CheckedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to add price history: %w", err)
	}
	return nil
}

// GetPriceHistory returns the most recent price points for a product
func (r *ProductRepository) GetPriceHistory(ctx context.Context, productID, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 {
		limit = 50 // default limit
	}

	query := `
		SELECT id, product_id, price, currency, is_available, checked_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	defer rows.Close()

	var history []models.PriceHistory
	for rows.Next() {
		var entry models.PriceHistory
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.Price, &entry.Currency,
			&entry.IsAvailable, &entry.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}

	return history, nil
}
