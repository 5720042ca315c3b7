package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pricewatch/models"
)

// NotificationRepository stores the in-app notification log
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a repository over db
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification writes one notification log entry
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, product_id, type, message, is_read, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, n.UserID, n.ProductID, n.Type, n.Message, n.IsRead, n.SentAt).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// DeleteOlderThan removes notifications sent before cutoff and returns how
// many were deleted
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted notifications: %w", err)
	}
	return n, nil
}
