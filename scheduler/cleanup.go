package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NotificationPurger deletes notification log entries sent before cutoff
type NotificationPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleaner keeps the notification log within its retention window
type NotificationCleaner struct {
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	store     NotificationPurger
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewNotificationCleaner creates a cleaner that keeps retentionDays of history
func NewNotificationCleaner(schedule string, retentionDays int, store NotificationPurger, logger logrus.FieldLogger) *NotificationCleaner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotificationCleaner{
		cron:      cron.New(cron.WithSeconds()),
		schedule:  schedule,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the cleanup
func (nc *NotificationCleaner) Start() error {
	_, err := nc.cron.AddFunc(nc.schedule, func() {
		if _, err := nc.Cleanup(context.Background()); err != nil {
			nc.logger.WithError(err).Error("Notification cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule notification cleanup: %w", err)
	}
	nc.cron.Start()
	return nil
}

// Stop stops the schedule
func (nc *NotificationCleaner) Stop() {
	if nc.cron != nil {
		<-nc.cron.Stop().Done()
	}
}

// Cleanup deletes entries older than the retention window
func (nc *NotificationCleaner) Cleanup(ctx context.Context) (int64, error) {
	cutoff := nc.now().Add(-nc.retention)
	deleted, err := nc.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	nc.logger.WithFields(logrus.Fields{"deleted": deleted, "cutoff": cutoff}).Info("🧹 Old notifications removed")
	return deleted, nil
}
