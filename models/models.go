package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ExtractionResult is the normalized record produced by one extraction run.
// A zero Price means no usable price was found and must never be persisted.
type ExtractionResult struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	ImageURL    string  `json:"imageUrl"`
	IsAvailable bool    `json:"isAvailable"`
}

// HasPrice reports whether the result carries a usable price
func (r *ExtractionResult) HasPrice() bool {
	return r != nil && r.Price > 0
}

// Product represents a product URL being monitored for price changes
type Product struct {
	ID             int             `json:"id" db:"id"`
	UserID         int             `json:"user_id" db:"user_id"`
	URL            string          `json:"url" db:"url"`
	Title          string          `json:"title" db:"title"`
	ImageURL       string          `json:"image_url" db:"image_url"`
	CurrentPrice   sql.NullFloat64 `json:"current_price" db:"current_price"`
	Currency       string          `json:"currency" db:"currency"`
	IsAvailable    bool            `json:"is_available" db:"is_available"`
	AlertEnabled   bool            `json:"alert_enabled" db:"alert_enabled"`
	NotifyAnyDrop  bool            `json:"notify_any_drop" db:"notify_any_drop"`
	AlertThreshold sql.NullFloat64 `json:"alert_threshold" db:"alert_threshold"`
	CheckInterval  int             `json:"check_interval" db:"check_interval"` // seconds
	LastCheckedAt  *time.Time      `json:"last_checked_at" db:"last_checked_at"`
	NextCheckAt    *time.Time      `json:"next_check_at" db:"next_check_at"`
	LastFailedAt   *time.Time      `json:"last_failed_at" db:"last_failed_at"`
	FailureCount   int             `json:"failure_count" db:"failure_count"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// GetCurrentPrice returns the stored price, or 0 if NULL
func (p *Product) GetCurrentPrice() float64 {
	if p.CurrentPrice.Valid {
		return p.CurrentPrice.Float64
	}
	return 0.0
}

// HasPrice returns true if a price has been recorded for the product
func (p *Product) HasPrice() bool {
	return p.CurrentPrice.Valid && p.CurrentPrice.Float64 > 0
}

// GetCheckInterval returns the configured interval, defaulting to 24h
func (p *Product) GetCheckInterval() time.Duration {
	if p.CheckInterval <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.CheckInterval) * time.Second
}

// GetRetryDelay returns the delay before the next attempt after a failed check.
// The delay grows with consecutive failures but never exceeds the check interval.
func (p *Product) GetRetryDelay() time.Duration {
	var delay time.Duration
	switch p.FailureCount {
	case 0:
		delay = 10 * time.Minute
	case 1:
		delay = 30 * time.Minute
	case 2:
		delay = 1 * time.Hour
	case 3:
		delay = 3 * time.Hour
	case 4:
		delay = 6 * time.Hour
	default:
		delay = 24 * time.Hour
	}
	if interval := p.GetCheckInterval(); delay > interval {
		return interval
	}
	return delay
}

// ShouldAlert decides whether moving from the stored price to newPrice fires a
// price-drop alert: a strict drop, alerts enabled, and either "any drop" or the
// new price at or under the target threshold.
func (p *Product) ShouldAlert(newPrice float64) bool {
	if !p.AlertEnabled || !p.HasPrice() || newPrice <= 0 {
		return false
	}
	if newPrice >= p.GetCurrentPrice() {
		return false
	}
	matchesTarget := p.AlertThreshold.Valid && newPrice <= p.AlertThreshold.Float64
	return p.NotifyAnyDrop || matchesTarget
}

// MarshalJSON renders nullable prices as JSON null
func (p *Product) MarshalJSON() ([]byte, error) {
	type Alias Product
	return json.Marshal(&struct {
		*Alias
		CurrentPrice   *float64 `json:"current_price"`
		AlertThreshold *float64 `json:"alert_threshold"`
	}{
		Alias:          (*Alias)(p),
		CurrentPrice:   nullFloatPtr(p.CurrentPrice),
		AlertThreshold: nullFloatPtr(p.AlertThreshold),
	})
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if v.Valid {
		f := v.Float64
		return &f
	}
	return nil
}

// PriceHistory represents a price point in time
type PriceHistory struct {
	ID          int       `json:"id" db:"id"`
	ProductID   int       `json:"product_id" db:"product_id"`
	Price       float64   `json:"price" db:"price"`
	Currency    string    `json:"currency" db:"currency"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
	CheckedAt   time.Time `json:"checked_at" db:"checked_at"`
}

// Notification is one entry of the notification log
type Notification struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	ProductID int       `json:"product_id" db:"product_id"`
	Type      string    `json:"type" db:"type"` // "price_drop"
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`
}

// NotificationTypePriceDrop is the notification log type for price drops
const NotificationTypePriceDrop = "price_drop"

// PriceDropEvent is handed to the notification channels when an alert fires
type PriceDropEvent struct {
	Product  Product `json:"product"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
	Currency string  `json:"currency"`
}

// ExtractRequest is the body of POST /api/v1/extract
type ExtractRequest struct {
	URL string `json:"url"`
}

// CheckOutcome reports what happened to one product during a monitor pass
type CheckOutcome struct {
	ID       int     `json:"id"`
	Status   string  `json:"status"` // "updated", "failed", "error"
	OldPrice float64 `json:"oldPrice,omitempty"`
	NewPrice float64 `json:"newPrice,omitempty"`
	Alerted  bool    `json:"alerted,omitempty"`
}

// CheckSummary is the result of one monitor pass
type CheckSummary struct {
	Message string         `json:"message"`
	Checked int            `json:"checked"`
	Results []CheckOutcome `json:"results"`
}
