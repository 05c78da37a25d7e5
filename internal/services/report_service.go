package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/geo"
	"github.com/hazardwatch/hazardwatch/internal/models"
	apperrors "github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/logger"
)

const (
	defaultReportPageSize = 20
	maxReportPageSize     = 100
)

// ReportService owns the report lifecycle and drives the points and alert
// services from report events. Point awards triggered by a vote, comment, or
// verification never fail the primary action; an award error is logged and
// the action still succeeds.
type ReportService struct {
	db     *gorm.DB
	points *PointsService
	alerts *AlertService
	log    *zap.Logger
}

func NewReportService(db *gorm.DB, points *PointsService, alerts *AlertService) (*ReportService, error) {
	if db == nil {
		return nil, fmt.Errorf("report service requires database handle")
	}
	if points == nil {
		return nil, fmt.Errorf("report service requires points service")
	}
	return &ReportService{
		db:     db,
		points: points,
		alerts: alerts,
		log:    logger.WithModule("services.reports"),
	}, nil
}

type CreateReportInput struct {
	UserID       string
	Title        string
	Description  string
	Category     string
	Severity     string
	LocationName string
	Address      string
	City         string
	Latitude     *float64
	Longitude    *float64
	MediaURLs    []string
}

// Create stores a new pending report, bumps the author's report counter, and
// dispatches the community alert. No points are awarded at submission; the
// submission award is paid out when an admin verifies the report.
func (s *ReportService) Create(ctx context.Context, input CreateReportInput) (*models.IncidentReport, error) {
	ctx = ensureContext(ctx)

	if !containsString(models.Categories, input.Category) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown category %q", input.Category))
	}
	if input.Severity == "" {
		input.Severity = models.SeverityMedium
	}

	var creator models.User
	if err := s.db.WithContext(ctx).First(&creator, "id = ?", input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.Wrap(err, "Failed to load user")
	}

	report := models.IncidentReport{
		Title:        input.Title,
		Description:  input.Description,
		Category:     input.Category,
		Severity:     input.Severity,
		LocationName: input.LocationName,
		Address:      input.Address,
		City:         input.City,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		UserID:       input.UserID,
		Status:       models.StatusPending,
	}
	if len(input.MediaURLs) > 0 {
		raw, err := json.Marshal(input.MediaURLs)
		if err != nil {
			return nil, apperrors.NewBadRequest("Invalid media URLs")
		}
		report.MediaURLs = raw
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return apperrors.Wrap(err, "Failed to create report")
		}
		return tx.Model(&models.User{}).
			Where("id = ?", input.UserID).
			UpdateColumn("total_reports", gorm.Expr("total_reports + 1")).Error
	})
	if err != nil {
		return nil, apperrors.FromError(err)
	}

	if s.alerts != nil {
		if _, err := s.alerts.BroadcastReportAlert(ctx, &report, &creator); err != nil {
			s.log.Error("report alert dispatch failed",
				zap.String("report_id", report.ID), zap.Error(err))
		}
	}

	report.User = &creator
	return &report, nil
}

type ReportFilter struct {
	Category string
	Status   string
	Severity string
	City     string
	UserID   string
	Page     int
	PageSize int
}

type ReportPage struct {
	Reports  []models.IncidentReport `json:"reports"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

// List returns reports newest-first with optional filters and offset
// pagination.
func (s *ReportService) List(ctx context.Context, filter ReportFilter) (*ReportPage, error) {
	ctx = ensureContext(ctx)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > maxReportPageSize {
		size = defaultReportPageSize
	}

	query := s.db.WithContext(ctx).Model(&models.IncidentReport{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to count reports")
	}

	var reports []models.IncidentReport
	err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&reports).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to load reports")
	}

	return &ReportPage{Reports: reports, Total: total, Page: page, PageSize: size}, nil
}

func (s *ReportService) Get(ctx context.Context, reportID string) (*models.IncidentReport, error) {
	ctx = ensureContext(ctx)

	var report models.IncidentReport
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Comments.User").
		First(&report, "id = ?", reportID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Report")
		}
		return nil, apperrors.Wrap(err, "Failed to load report")
	}
	return &report, nil
}

type NearbyReport struct {
	models.IncidentReport
	DistanceMeters float64 `json:"distanceMeters"`
}

// Nearby returns located reports within radius meters of a point, nearest
// first. Filtering happens in memory over the located subset.
func (s *ReportService) Nearby(ctx context.Context, lat, lng, radiusMeters float64) ([]NearbyReport, error) {
	ctx = ensureContext(ctx)
	if radiusMeters <= 0 {
		radiusMeters = DefaultMassAlertRadiusMeters
	}

	var candidates []models.IncidentReport
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&candidates).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to load reports")
	}

	nearby := make([]NearbyReport, 0)
	for _, report := range candidates {
		distance := geo.DistanceMeters(lat, lng, *report.Latitude, *report.Longitude)
		if distance <= radiusMeters {
			nearby = append(nearby, NearbyReport{IncidentReport: report, DistanceMeters: distance})
		}
	}
	for i := 1; i < len(nearby); i++ {
		for j := i; j > 0 && nearby[j].DistanceMeters < nearby[j-1].DistanceMeters; j-- {
			nearby[j], nearby[j-1] = nearby[j-1], nearby[j]
		}
	}
	return nearby, nil
}

type VoteResult struct {
	Upvotes       int          `json:"upvotes"`
	Downvotes     int          `json:"downvotes"`
	UserVote      *string      `json:"userVote"`
	Removed       bool         `json:"removed"`
	PointsAwarded *AwardResult `json:"pointsAwarded,omitempty"`
}

// Vote applies toggle semantics: voting the same direction again removes the
// vote, voting the opposite direction switches it. Every transition that adds
// or switches a vote awards engagement points; removal never does.
func (s *ReportService) Vote(ctx context.Context, reportID, userID, direction string) (*VoteResult, error) {
	ctx = ensureContext(ctx)
	if direction != models.VoteUp && direction != models.VoteDown {
		return nil, apperrors.NewBadRequest("Vote type must be up or down")
	}

	result := &VoteResult{}
	awarded := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.IncidentReport
		if err := tx.First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Report")
			}
			return apperrors.Wrap(err, "Failed to load report")
		}

		var existing models.ReportVote
		err := tx.Where("report_id = ? AND user_id = ?", reportID, userID).
			First(&existing).Error
		hasExisting := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(err, "Failed to load vote")
		}

		switch {
		case hasExisting && existing.Direction == direction:
			// Same direction again: remove the vote.
			if err := tx.Delete(&existing).Error; err != nil {
				return apperrors.Wrap(err, "Failed to remove vote")
			}
			adjustVoteCount(&report, direction, -1)
			result.Removed = true

		case hasExisting:
			// Opposite direction: switch the vote.
			existing.Direction = direction
			if err := tx.Save(&existing).Error; err != nil {
				return apperrors.Wrap(err, "Failed to switch vote")
			}
			adjustVoteCount(&report, otherDirection(direction), -1)
			adjustVoteCount(&report, direction, 1)
			result.UserVote = &existing.Direction
			awarded = true

		default:
			vote := models.ReportVote{ReportID: reportID, UserID: userID, Direction: direction}
			if err := tx.Create(&vote).Error; err != nil {
				if isUniqueConstraintError(err) {
					return apperrors.New("CONFLICT", "Vote already recorded", 409)
				}
				return apperrors.Wrap(err, "Failed to record vote")
			}
			adjustVoteCount(&report, direction, 1)
			result.UserVote = &vote.Direction
			awarded = true
		}

		err = tx.Model(&models.IncidentReport{}).
			Where("id = ?", reportID).
			UpdateColumns(map[string]interface{}{
				"upvotes":   report.Upvotes,
				"downvotes": report.Downvotes,
			}).Error
		if err != nil {
			return apperrors.Wrap(err, "Failed to update vote counters")
		}

		result.Upvotes = report.Upvotes
		result.Downvotes = report.Downvotes
		return nil
	})
	if err != nil {
		return nil, apperrors.FromError(err)
	}

	if awarded {
		award, err := s.points.Award(ctx, AwardInput{
			UserID:          userID,
			Points:          PointsVote,
			Action:          models.ActionVote,
			Description:     fmt.Sprintf("Voted %s on a report", direction),
			RelatedReportID: reportID,
		})
		if err != nil {
			s.log.Error("vote award failed",
				zap.String("user_id", userID), zap.String("report_id", reportID), zap.Error(err))
		} else {
			result.PointsAwarded = award
		}
	}
	return result, nil
}

func otherDirection(direction string) string {
	if direction == models.VoteUp {
		return models.VoteDown
	}
	return models.VoteUp
}

func adjustVoteCount(report *models.IncidentReport, direction string, delta int) {
	if direction == models.VoteUp {
		report.Upvotes += delta
		if report.Upvotes < 0 {
			report.Upvotes = 0
		}
		return
	}
	report.Downvotes += delta
	if report.Downvotes < 0 {
		report.Downvotes = 0
	}
}

type CommentResult struct {
	Comment       *models.ReportComment `json:"comment"`
	PointsAwarded *AwardResult          `json:"pointsAwarded,omitempty"`
}

// AddComment appends a comment and pays the engagement award. The award is
// best-effort; the comment stands even if it fails.
func (s *ReportService) AddComment(ctx context.Context, reportID, userID, content string) (*CommentResult, error) {
	ctx = ensureContext(ctx)
	if content == "" {
		return nil, apperrors.NewBadRequest("Please provide comment content")
	}

	var exists int64
	err := s.db.WithContext(ctx).Model(&models.IncidentReport{}).
		Where("id = ?", reportID).
		Count(&exists).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to look up report")
	}
	if exists == 0 {
		return nil, apperrors.NewNotFound("Report")
	}

	comment := models.ReportComment{ReportID: reportID, UserID: userID, Content: content}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to create comment")
	}

	result := &CommentResult{Comment: &comment}
	award, err := s.points.Award(ctx, AwardInput{
		UserID:          userID,
		Points:          PointsComment,
		Action:          models.ActionComment,
		Description:     "Commented on a report",
		RelatedReportID: reportID,
	})
	if err != nil {
		s.log.Error("comment award failed",
			zap.String("user_id", userID), zap.String("report_id", reportID), zap.Error(err))
	} else {
		result.PointsAwarded = award
	}
	return result, nil
}

type VerificationResult struct {
	Report        *models.IncidentReport `json:"report"`
	PointsAwarded *AwardResult           `json:"pointsAwarded,omitempty"`
}

// Verify marks a pending report verified, logs the admin action, and pays the
// reporter the composite verification award. The verification itself commits
// first; an award failure is logged and the verification stands.
func (s *ReportService) Verify(ctx context.Context, reportID, adminID string) (*VerificationResult, error) {
	ctx = ensureContext(ctx)

	var report models.IncidentReport
	err := s.db.WithContext(ctx).First(&report, "id = ?", reportID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Report")
		}
		return nil, apperrors.Wrap(err, "Failed to load report")
	}
	if report.Status == models.StatusVerified {
		return nil, apperrors.NewBadRequest("Report is already verified")
	}

	now := time.Now()
	report.Status = models.StatusVerified
	report.IsVerified = true
	report.VerifiedByID = &adminID
	report.VerifiedAt = &now
	report.RejectionReason = ""

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.IncidentReport{}).
			Where("id = ?", reportID).
			UpdateColumns(map[string]interface{}{
				"status":           report.Status,
				"is_verified":      true,
				"verified_by_id":   adminID,
				"verified_at":      now,
				"rejection_reason": "",
			}).Error
		if err != nil {
			return apperrors.Wrap(err, "Failed to verify report")
		}
		entry := models.ActivityLog{
			UserID:          adminID,
			Action:          "report_verified",
			Details:         fmt.Sprintf("Verified report %s", reportID),
			RelatedReportID: &reportID,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, apperrors.FromError(err)
	}

	result := &VerificationResult{Report: &report}
	award, err := s.points.AwardForVerification(ctx, report.UserID, report.ID, report.Category)
	if err != nil {
		s.log.Error("verification award failed",
			zap.String("report_id", reportID), zap.String("user_id", report.UserID), zap.Error(err))
	} else {
		result.PointsAwarded = award
	}
	return result, nil
}

// Reject marks a pending report rejected with a reason. No points change
// hands.
func (s *ReportService) Reject(ctx context.Context, reportID, adminID, reason string) (*models.IncidentReport, error) {
	ctx = ensureContext(ctx)

	var report models.IncidentReport
	err := s.db.WithContext(ctx).First(&report, "id = ?", reportID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Report")
		}
		return nil, apperrors.Wrap(err, "Failed to load report")
	}
	if report.Status == models.StatusRejected {
		return nil, apperrors.NewBadRequest("Report is already rejected")
	}

	report.Status = models.StatusRejected
	report.IsVerified = false
	report.RejectionReason = reason

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.IncidentReport{}).
			Where("id = ?", reportID).
			UpdateColumns(map[string]interface{}{
				"status":           models.StatusRejected,
				"is_verified":      false,
				"rejection_reason": reason,
			}).Error
		if err != nil {
			return apperrors.Wrap(err, "Failed to reject report")
		}
		entry := models.ActivityLog{
			UserID:          adminID,
			Action:          "report_rejected",
			Details:         fmt.Sprintf("Rejected report %s: %s", reportID, reason),
			RelatedReportID: &reportID,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, apperrors.FromError(err)
	}
	return &report, nil
}

type DashboardStats struct {
	TotalReports    int64            `json:"totalReports"`
	PendingReports  int64            `json:"pendingReports"`
	VerifiedReports int64            `json:"verifiedReports"`
	RejectedReports int64            `json:"rejectedReports"`
	TotalUsers      int64            `json:"totalUsers"`
	ByCategory      map[string]int64 `json:"byCategory"`
}

// Stats aggregates the admin dashboard counters.
func (s *ReportService) Stats(ctx context.Context) (*DashboardStats, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	stats := &DashboardStats{ByCategory: make(map[string]int64)}

	if err := db.Model(&models.IncidentReport{}).Count(&stats.TotalReports).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to count reports")
	}
	counts := map[string]*int64{
		models.StatusPending:  &stats.PendingReports,
		models.StatusVerified: &stats.VerifiedReports,
		models.StatusRejected: &stats.RejectedReports,
	}
	for status, target := range counts {
		err := db.Model(&models.IncidentReport{}).
			Where("status = ?", status).
			Count(target).Error
		if err != nil {
			return nil, apperrors.Wrap(err, "Failed to count reports")
		}
	}
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to count users")
	}

	type categoryRow struct {
		Category string
		Total    int64
	}
	var rows []categoryRow
	err := db.Model(&models.IncidentReport{}).
		Select("category, COUNT(*) AS total").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to group reports")
	}
	for _, row := range rows {
		stats.ByCategory[row.Category] = row.Total
	}
	return stats, nil
}
