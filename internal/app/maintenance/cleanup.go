package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/models"
	"github.com/hazardwatch/hazardwatch/internal/services"
	"github.com/hazardwatch/hazardwatch/pkg/logger"
)

const (
	defaultActivityRetentionDays = 90
	defaultNotificationSpec      = "@hourly"
	defaultActivitySpec          = "@daily"
)

// Cleaner coordinates background maintenance: purging expired notifications
// and pruning old activity logs.
type Cleaner struct {
	db            *gorm.DB
	notifications *services.NotificationService
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	enabled       bool
	retention     int

	notificationSchedule string
	activitySchedule     string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithActivityRetentionDays adjusts how long activity logs are retained.
func WithActivityRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithNotificationSchedule overrides the cron specification for notification cleanup.
func WithNotificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.notificationSchedule = spec
		}
	}
}

// WithActivitySchedule overrides the cron specification for activity log retention.
func WithActivitySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.activitySchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil notification
// service skips the notification job.
func NewCleaner(db *gorm.DB, notifications *services.NotificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                   db,
		notifications:        notifications,
		now:                  time.Now,
		retention:            defaultActivityRetentionDays,
		notificationSchedule: defaultNotificationSpec,
		activitySchedule:     defaultActivitySpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.notifications != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.notifications != nil {
		if _, err := c.cron.AddFunc(c.notificationSchedule, func() {
			if _, err := c.notifications.PurgeExpired(context.Background()); err != nil {
				c.log.Warn("notification cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.activitySchedule, func() {
			if _, err := CleanupActivityLogs(context.Background(), c.db, c.now(), c.retention); err != nil {
				c.log.Warn("activity log cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.notifications != nil {
		if _, err := c.notifications.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil && c.retention > 0 {
		if _, err := CleanupActivityLogs(ctx, c.db, c.now(), c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupActivityLogs removes activity log rows older than the retention window.
func CleanupActivityLogs(ctx context.Context, db *gorm.DB, now time.Time, retentionDays int) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup activity logs: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.ActivityLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup activity logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
