package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/database/testutil"
	"github.com/hazardwatch/hazardwatch/internal/models"
	apperrors "github.com/hazardwatch/hazardwatch/pkg/errors"
)

func newReportFixture(t *testing.T) (*ReportService, *emitRecorder, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	points, err := NewPointsService(db)
	require.NoError(t, err)
	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	recorder := &emitRecorder{}
	alerts, err := NewAlertService(db, recorder, notifications)
	require.NoError(t, err)
	svc, err := NewReportService(db, points, alerts)
	require.NoError(t, err)
	return svc, recorder, db
}

func userPoints(t *testing.T, db *gorm.DB, userID string) int {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error)
	return user.Points
}

func TestCreateReport(t *testing.T) {
	svc, recorder, db := newReportFixture(t)
	creator := createTestUser(t, db, "creator", models.RoleUser)
	neighbor := createTestUser(t, db, "neighbor", models.RoleUser)

	lat, lng := 12.97, 77.59
	report, err := svc.Create(context.Background(), CreateReportInput{
		UserID:       creator.ID,
		Title:        "tree down",
		Description:  "blocking both lanes",
		Category:     models.CategoryAccident,
		LocationName: "Elm Street",
		Latitude:     &lat,
		Longitude:    &lng,
		MediaURLs:    []string{"https://cdn.example.com/tree.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, report.Status)
	require.Equal(t, models.SeverityMedium, report.Severity)
	require.False(t, report.IsVerified)

	// Submission pays nothing; points arrive at verification.
	require.Zero(t, userPoints(t, db, creator.ID))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", creator.ID).Error)
	require.Equal(t, 1, stored.TotalReports)

	// The community alert fanned out to everyone else.
	var rows []models.Notification
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, neighbor.ID, rows[0].UserID)
	require.Len(t, recorder.targetedTo(neighbor.ID), 1)
	require.Len(t, recorder.broadcasts, 1)
}

func TestCreateReportRejectsUnknownCategory(t *testing.T) {
	svc, _, db := newReportFixture(t)
	creator := createTestUser(t, db, "creator", models.RoleUser)

	_, err := svc.Create(context.Background(), CreateReportInput{
		UserID:      creator.ID,
		Title:       "odd",
		Description: "odd",
		Category:    "meteor",
	})
	require.Error(t, err)
	require.Equal(t, 400, apperrors.FromError(err).StatusCode)
}

func TestVoteToggleSemantics(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)
	voter := createTestUser(t, db, "voter", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	// First upvote: vote recorded, points paid.
	result, err := svc.Vote(context.Background(), report.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	require.Equal(t, 1, result.Upvotes)
	require.Zero(t, result.Downvotes)
	require.NotNil(t, result.UserVote)
	require.Equal(t, models.VoteUp, *result.UserVote)
	require.NotNil(t, result.PointsAwarded)
	require.Equal(t, PointsVote, userPoints(t, db, voter.ID))

	// Same direction again removes the vote; points are kept.
	result, err = svc.Vote(context.Background(), report.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	require.True(t, result.Removed)
	require.Zero(t, result.Upvotes)
	require.Nil(t, result.UserVote)
	require.Nil(t, result.PointsAwarded)
	require.Equal(t, PointsVote, userPoints(t, db, voter.ID))

	var votes []models.ReportVote
	require.NoError(t, db.Where("report_id = ?", report.ID).Find(&votes).Error)
	require.Empty(t, votes)

	// Fresh downvote, then a switch back to up. Both transitions pay.
	result, err = svc.Vote(context.Background(), report.ID, voter.ID, models.VoteDown)
	require.NoError(t, err)
	require.Equal(t, 1, result.Downvotes)
	require.Equal(t, 2*PointsVote, userPoints(t, db, voter.ID))

	result, err = svc.Vote(context.Background(), report.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	require.Equal(t, 1, result.Upvotes)
	require.Zero(t, result.Downvotes)
	require.Equal(t, models.VoteUp, *result.UserVote)
	require.Equal(t, 3*PointsVote, userPoints(t, db, voter.ID))

	require.NoError(t, db.Where("report_id = ?", report.ID).Find(&votes).Error)
	require.Len(t, votes, 1)
	require.Equal(t, models.VoteUp, votes[0].Direction)
}

func TestVoteValidation(t *testing.T) {
	svc, _, db := newReportFixture(t)
	voter := createTestUser(t, db, "voter", models.RoleUser)

	_, err := svc.Vote(context.Background(), "missing", voter.ID, models.VoteUp)
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)

	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)
	_, err = svc.Vote(context.Background(), report.ID, voter.ID, "sideways")
	require.Error(t, err)
	require.Equal(t, 400, apperrors.FromError(err).StatusCode)
}

func TestAddComment(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)
	commenter := createTestUser(t, db, "commenter", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	result, err := svc.AddComment(context.Background(), report.ID, commenter.ID, "stay clear of the underpass")
	require.NoError(t, err)
	require.NotEmpty(t, result.Comment.ID)
	require.NotNil(t, result.PointsAwarded)
	require.Equal(t, PointsComment, userPoints(t, db, commenter.ID))

	_, err = svc.AddComment(context.Background(), report.ID, commenter.ID, "")
	require.Error(t, err)
	require.Equal(t, 400, apperrors.FromError(err).StatusCode)

	_, err = svc.AddComment(context.Background(), "missing", commenter.ID, "hello")
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestVerifyReport(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	report := createTestReport(t, db, author.ID)

	result, err := svc.Verify(context.Background(), report.ID, admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusVerified, result.Report.Status)
	require.True(t, result.Report.IsVerified)
	require.NotNil(t, result.Report.VerifiedAt)
	require.NotNil(t, result.PointsAwarded)
	require.Equal(t, PointsSubmitReport+PointsReportVerified, result.PointsAwarded.PointsAwarded)
	require.Equal(t, 30, userPoints(t, db, author.ID))

	var entries []models.PointsTransaction
	require.NoError(t, db.Where("user_id = ?", author.ID).Find(&entries).Error)
	require.Len(t, entries, 2)

	var audit []models.ActivityLog
	require.NoError(t, db.Where("user_id = ?", admin.ID).Find(&audit).Error)
	require.Len(t, audit, 1)
	require.Equal(t, "report_verified", audit[0].Action)

	// Verification is not repeatable.
	_, err = svc.Verify(context.Background(), report.ID, admin.ID)
	require.Error(t, err)
	require.Equal(t, 400, apperrors.FromError(err).StatusCode)
}

func TestRejectReport(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	report := createTestReport(t, db, author.ID)

	rejected, err := svc.Reject(context.Background(), report.ID, admin.ID, "duplicate report")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.Equal(t, "duplicate report", rejected.RejectionReason)
	// Rejection pays nothing.
	require.Zero(t, userPoints(t, db, author.ID))

	_, err = svc.Reject(context.Background(), report.ID, admin.ID, "again")
	require.Error(t, err)
	require.Equal(t, 400, apperrors.FromError(err).StatusCode)
}

func TestListReportsFiltersAndPaginates(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.IncidentReport{
			Title: "flood", Description: "water", Category: models.CategoryFlood,
			Severity: models.SeverityHigh, UserID: author.ID, Status: models.StatusPending,
		}).Error)
	}
	require.NoError(t, db.Create(&models.IncidentReport{
		Title: "fire", Description: "smoke", Category: models.CategoryFire,
		Severity: models.SeverityLow, UserID: author.ID, Status: models.StatusVerified,
	}).Error)

	page, err := svc.List(context.Background(), ReportFilter{Category: models.CategoryFlood})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.Len(t, page.Reports, 3)

	page, err = svc.List(context.Background(), ReportFilter{Status: models.StatusVerified})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)

	page, err = svc.List(context.Background(), ReportFilter{PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 4, page.Total)
	require.Len(t, page.Reports, 2)

	page, err = svc.List(context.Background(), ReportFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Reports, 2)
}

func TestGetReport(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)
	report := createTestReport(t, db, author.ID)

	_, err := svc.AddComment(context.Background(), report.ID, author.ID, "first")
	require.NoError(t, err)

	loaded, err := svc.Get(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, report.ID, loaded.ID)
	require.NotNil(t, loaded.User)
	require.Len(t, loaded.Comments, 1)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}

func TestNearbyReports(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)

	place := func(title string, lat, lng float64) {
		require.NoError(t, db.Create(&models.IncidentReport{
			Title: title, Description: "hazard", Category: models.CategoryOther,
			UserID: author.ID, Latitude: &lat, Longitude: &lng,
		}).Error)
	}
	place("close", 12.971, 77.59)
	place("closer", 12.9701, 77.59)
	place("distant", 13.5, 77.59)
	// Unlocated reports never match.
	require.NoError(t, db.Create(&models.IncidentReport{
		Title: "nowhere", Description: "hazard", Category: models.CategoryOther,
		UserID: author.ID,
	}).Error)

	nearby, err := svc.Nearby(context.Background(), 12.97, 77.59, 5000)
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	require.Equal(t, "closer", nearby[0].Title)
	require.Equal(t, "close", nearby[1].Title)
	require.Less(t, nearby[0].DistanceMeters, nearby[1].DistanceMeters)
}

func TestDashboardStats(t *testing.T) {
	svc, _, db := newReportFixture(t)
	author := createTestUser(t, db, "author", models.RoleUser)
	createTestUser(t, db, "admin", models.RoleAdmin)

	seed := func(category, status string) {
		require.NoError(t, db.Create(&models.IncidentReport{
			Title: "r", Description: "d", Category: category,
			UserID: author.ID, Status: status,
		}).Error)
	}
	seed(models.CategoryFlood, models.StatusPending)
	seed(models.CategoryFlood, models.StatusVerified)
	seed(models.CategoryFire, models.StatusRejected)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalReports)
	require.EqualValues(t, 1, stats.PendingReports)
	require.EqualValues(t, 1, stats.VerifiedReports)
	require.EqualValues(t, 1, stats.RejectedReports)
	require.EqualValues(t, 2, stats.TotalUsers)
	require.EqualValues(t, 2, stats.ByCategory[models.CategoryFlood])
	require.EqualValues(t, 1, stats.ByCategory[models.CategoryFire])
}
