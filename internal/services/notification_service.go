package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/models"
	apperrors "github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/logger"
	"github.com/hazardwatch/hazardwatch/pkg/metrics"
)

const (
	defaultNotificationPageSize = 50
	notificationBatchSize       = 100
)

type NotificationService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, fmt.Errorf("notification service requires database handle")
	}
	return &NotificationService{db: db, log: logger.WithModule("services.notifications")}, nil
}

type CreateNotificationInput struct {
	UserID      string
	ReportID    string
	CreatedByID string
	Type        string
	Title       string
	Message     string
	Category    string
	Severity    string
	Location    string
}

// Create persists a single notification for a recipient. The recipient must
// exist; the notification starts unread.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)
	if input.UserID == "" || input.Title == "" || input.Message == "" {
		return nil, apperrors.NewBadRequest("Please provide userId, title and message")
	}
	if input.Type == "" {
		input.Type = models.NotificationNewAlert
	}

	var exists int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", input.UserID).
		Count(&exists).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to look up recipient")
	}
	if exists == 0 {
		return nil, apperrors.NewNotFound("User")
	}

	notification := models.Notification{
		UserID:      input.UserID,
		ReportID:    input.ReportID,
		CreatedByID: input.CreatedByID,
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		Category:    input.Category,
		Severity:    input.Severity,
		Location:    input.Location,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to create notification")
	}

	metrics.NotificationsCreated.WithLabelValues(notification.Type).Inc()
	return &notification, nil
}

// CreateBatch persists a set of notifications in chunks. Used by the alert
// dispatcher where one event fans out to many recipients.
func (s *NotificationService) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	ctx = ensureContext(ctx)
	if len(notifications) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).CreateInBatches(notifications, notificationBatchSize).Error
	if err != nil {
		return apperrors.Wrap(err, "Failed to create notifications")
	}
	for _, notification := range notifications {
		metrics.NotificationsCreated.WithLabelValues(notification.Type).Inc()
	}
	return nil
}

type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
}

// ListForUser returns the newest notifications for a user, capped at 50 per
// request. The unread count covers the whole store, not just the page.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 || limit > defaultNotificationPageSize {
		limit = defaultNotificationPageSize
	}

	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to load notifications")
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: notifications, UnreadCount: unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "Failed to count unread notifications")
	}
	return count, nil
}

// MarkRead flags one notification as read. A notification owned by another
// user is reported as not found rather than forbidden so the endpoint does
// not leak which IDs exist.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Notification")
		}
		return nil, apperrors.Wrap(err, "Failed to load notification")
	}

	if notification.Read {
		return &notification, nil
	}

	now := time.Now()
	notification.Read = true
	notification.ReadAt = &now
	err = s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]interface{}{"read": true, "read_at": now}).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to mark notification read")
	}
	return &notification, nil
}

// MarkAllRead flags every unread notification for the user and returns how
// many rows changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": now})
	if res.Error != nil {
		return 0, apperrors.Wrap(res.Error, "Failed to mark notifications read")
	}
	return res.RowsAffected, nil
}

// Delete removes one notification, subject to the same ownership rule as
// MarkRead.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return apperrors.Wrap(res.Error, "Failed to delete notification")
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("Notification")
	}
	return nil
}

// PurgeExpired removes every notification older than the retention window,
// read or not. Run by the maintenance cleaner.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	cutoff := time.Now().Add(-models.NotificationTTL)
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, apperrors.Wrap(res.Error, "Failed to purge notifications")
	}
	if res.RowsAffected > 0 {
		s.log.Info("purged expired notifications", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
