package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/database/testutil"
	"github.com/hazardwatch/hazardwatch/internal/models"
	apperrors "github.com/hazardwatch/hazardwatch/pkg/errors"
)

func newNotificationFixture(t *testing.T) (*NotificationService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)
	return svc, db
}

func createTestReport(t *testing.T, db *gorm.DB, userID string) *models.IncidentReport {
	t.Helper()
	report := &models.IncidentReport{
		Title:       "road flooded",
		Description: "water over the bridge",
		Category:    models.CategoryFlood,
		Severity:    models.SeverityHigh,
		UserID:      userID,
	}
	require.NoError(t, db.Create(report).Error)
	return report
}

func TestCreateNotification(t *testing.T) {
	svc, db := newNotificationFixture(t)
	recipient := createTestUser(t, db, "recipient", models.RoleUser)
	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	notification, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID:      recipient.ID,
		ReportID:    report.ID,
		CreatedByID: author.ID,
		Title:       "New FLOOD Alert!",
		Message:     "author reported a high severity flood at the bridge",
		Category:    models.CategoryFlood,
		Severity:    models.SeverityHigh,
	})
	require.NoError(t, err)
	require.NotEmpty(t, notification.ID)
	require.Equal(t, models.NotificationNewAlert, notification.Type)
	require.False(t, notification.Read)
	require.Nil(t, notification.ReadAt)
}

func TestCreateNotificationUnknownRecipient(t *testing.T) {
	svc, _ := newNotificationFixture(t)

	_, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID:  "missing",
		Title:   "hello",
		Message: "world",
	})
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestListForUserCapsPageAndCountsAllUnread(t *testing.T) {
	svc, db := newNotificationFixture(t)
	recipient := createTestUser(t, db, "busy", models.RoleUser)
	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	for i := 0; i < 55; i++ {
		_, err := svc.Create(context.Background(), CreateNotificationInput{
			UserID:      recipient.ID,
			ReportID:    report.ID,
			CreatedByID: author.ID,
			Title:       fmt.Sprintf("alert %d", i),
			Message:     "stay safe",
		})
		require.NoError(t, err)
	}

	page, err := svc.ListForUser(context.Background(), recipient.ID, 0)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 50)
	// The unread count covers the whole store, not the returned page.
	require.EqualValues(t, 55, page.UnreadCount)

	page, err = svc.ListForUser(context.Background(), recipient.ID, 500)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 50)

	page, err = svc.ListForUser(context.Background(), recipient.ID, 5)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 5)
}

func TestMarkRead(t *testing.T) {
	svc, db := newNotificationFixture(t)
	recipient := createTestUser(t, db, "reader", models.RoleUser)
	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	created, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID: recipient.ID, ReportID: report.ID, CreatedByID: author.ID,
		Title: "alert", Message: "stay safe",
	})
	require.NoError(t, err)

	updated, err := svc.MarkRead(context.Background(), recipient.ID, created.ID)
	require.NoError(t, err)
	require.True(t, updated.Read)
	require.NotNil(t, updated.ReadAt)

	// Marking an already-read notification is a no-op, not an error.
	again, err := svc.MarkRead(context.Background(), recipient.ID, created.ID)
	require.NoError(t, err)
	require.True(t, again.Read)

	count, err := svc.UnreadCount(context.Background(), recipient.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestMarkReadForeignNotification(t *testing.T) {
	svc, db := newNotificationFixture(t)
	owner := createTestUser(t, db, "owner", models.RoleUser)
	other := createTestUser(t, db, "other", models.RoleUser)
	report := createTestReport(t, db, other.ID)

	created, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID: owner.ID, ReportID: report.ID, CreatedByID: other.ID,
		Title: "alert", Message: "stay safe",
	})
	require.NoError(t, err)

	// Another user's notification looks exactly like a missing one.
	_, err = svc.MarkRead(context.Background(), other.ID, created.ID)
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestMarkAllRead(t *testing.T) {
	svc, db := newNotificationFixture(t)
	recipient := createTestUser(t, db, "bulk", models.RoleUser)
	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateNotificationInput{
			UserID: recipient.ID, ReportID: report.ID, CreatedByID: author.ID,
			Title: fmt.Sprintf("alert %d", i), Message: "stay safe",
		})
		require.NoError(t, err)
	}

	changed, err := svc.MarkAllRead(context.Background(), recipient.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, changed)

	changed, err = svc.MarkAllRead(context.Background(), recipient.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, changed)
}

func TestDeleteNotification(t *testing.T) {
	svc, db := newNotificationFixture(t)
	owner := createTestUser(t, db, "owner", models.RoleUser)
	other := createTestUser(t, db, "other", models.RoleUser)
	report := createTestReport(t, db, other.ID)

	created, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID: owner.ID, ReportID: report.ID, CreatedByID: other.ID,
		Title: "alert", Message: "stay safe",
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), other.ID, created.ID)
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)

	require.NoError(t, svc.Delete(context.Background(), owner.ID, created.ID))

	err = svc.Delete(context.Background(), owner.ID, created.ID)
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestPurgeExpired(t *testing.T) {
	svc, db := newNotificationFixture(t)
	recipient := createTestUser(t, db, "archivist", models.RoleUser)
	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	fresh, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID: recipient.ID, ReportID: report.ID, CreatedByID: author.ID,
		Title: "fresh", Message: "stay safe",
	})
	require.NoError(t, err)

	expired, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID: recipient.ID, ReportID: report.ID, CreatedByID: author.ID,
		Title: "expired", Message: "old news",
	})
	require.NoError(t, err)
	// Read state does not extend retention.
	_, err = svc.MarkRead(context.Background(), recipient.ID, expired.ID)
	require.NoError(t, err)

	old := time.Now().Add(-models.NotificationTTL - time.Hour)
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", expired.ID).
		UpdateColumn("created_at", old).Error)

	purged, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var remaining []models.Notification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, fresh.ID, remaining[0].ID)
}
