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

// Point values per action.
const (
	PointsSubmitReport   = 10
	PointsReportVerified = 20
	PointsVote           = 2
	PointsComment        = 5
)

// Badge names.
const (
	BadgeBronze   = "Bronze Reporter"
	BadgeSilver   = "Silver Reporter"
	BadgeGold     = "Gold Reporter"
	BadgeHero     = "Hero"
	BadgeGuardian = "Guardian"
)

// guardianVerifiedReports is the verified-report count that earns Guardian.
const guardianVerifiedReports = 10

type badgeRule struct {
	Name      string
	MinPoints int
}

// pointBadges is evaluated in ascending threshold order so a large award can
// grant several tiers at once.
var pointBadges = []badgeRule{
	{Name: BadgeBronze, MinPoints: 50},
	{Name: BadgeSilver, MinPoints: 200},
	{Name: BadgeGold, MinPoints: 500},
	{Name: BadgeHero, MinPoints: 1000},
}

// PointsForAction returns the standard point value for a known action.
func PointsForAction(action string) (int, bool) {
	switch action {
	case models.ActionSubmitReport:
		return PointsSubmitReport, true
	case models.ActionReportVerified:
		return PointsReportVerified, true
	case models.ActionVote:
		return PointsVote, true
	case models.ActionComment:
		return PointsComment, true
	default:
		return 0, false
	}
}

type PointsService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPointsService(db *gorm.DB) (*PointsService, error) {
	if db == nil {
		return nil, fmt.Errorf("points service requires database handle")
	}
	return &PointsService{db: db, log: logger.WithModule("services.points")}, nil
}

type AwardInput struct {
	UserID          string
	Points          int
	Action          string
	Description     string
	RelatedReportID string
}

type AwardResult struct {
	PointsAwarded int      `json:"pointsAwarded"`
	TotalPoints   int      `json:"totalPoints"`
	Badges        []string `json:"badges"`
	NewBadges     []string `json:"newBadges"`
}

// Award credits points to a user, records a ledger entry, and evaluates badge
// thresholds. The increment, ledger write, and badge grant commit in a single
// transaction so concurrent awards cannot lose updates or double-grant badges.
func (s *PointsService) Award(ctx context.Context, input AwardInput) (*AwardResult, error) {
	ctx = ensureContext(ctx)
	if input.UserID == "" {
		return nil, apperrors.NewBadRequest("Please provide userId")
	}
	if input.Points <= 0 {
		return nil, apperrors.NewBadRequest("Points must be a positive number")
	}
	if !models.KnownAction(input.Action) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown action %q", input.Action))
	}

	var result *AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", input.UserID).
			UpdateColumn("points", gorm.Expr("points + ?", input.Points))
		if res.Error != nil {
			return apperrors.Wrap(res.Error, "Failed to award points")
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}

		entry := models.PointsTransaction{
			UserID:          input.UserID,
			Points:          input.Points,
			Action:          input.Action,
			Description:     input.Description,
			RelatedReportID: optionalID(input.RelatedReportID),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return apperrors.Wrap(err, "Failed to record points transaction")
		}

		var user models.User
		if err := tx.First(&user, "id = ?", input.UserID).Error; err != nil {
			return apperrors.Wrap(err, "Failed to load user")
		}

		newBadges, err := s.evaluateBadges(tx, &user)
		if err != nil {
			return err
		}

		result = &AwardResult{
			PointsAwarded: input.Points,
			TotalPoints:   user.Points,
			Badges:        user.BadgeList(),
			NewBadges:     newBadges,
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.FromError(err)
	}

	metrics.PointsAwarded.WithLabelValues(input.Action).Add(float64(input.Points))
	for _, badge := range result.NewBadges {
		metrics.BadgesGranted.WithLabelValues(badge).Inc()
	}
	s.log.Debug("points awarded",
		zap.String("user_id", input.UserID),
		zap.String("action", input.Action),
		zap.Int("points", input.Points),
		zap.Strings("new_badges", result.NewBadges))
	return result, nil
}

// evaluateBadges grants every badge the user now qualifies for and persists
// the updated list. Badges are never revoked.
func (s *PointsService) evaluateBadges(tx *gorm.DB, user *models.User) ([]string, error) {
	badges := user.BadgeList()
	var granted []string

	for _, rule := range pointBadges {
		if user.Points >= rule.MinPoints && !containsString(badges, rule.Name) {
			badges = append(badges, rule.Name)
			granted = append(granted, rule.Name)
		}
	}

	if !containsString(badges, BadgeGuardian) {
		var verified int64
		err := tx.Model(&models.IncidentReport{}).
			Where("user_id = ? AND status = ?", user.ID, models.StatusVerified).
			Count(&verified).Error
		if err != nil {
			return nil, apperrors.Wrap(err, "Failed to count verified reports")
		}
		if verified >= guardianVerifiedReports {
			badges = append(badges, BadgeGuardian)
			granted = append(granted, BadgeGuardian)
		}
	}

	if len(granted) == 0 {
		return nil, nil
	}
	if err := user.SetBadges(badges); err != nil {
		return nil, apperrors.Wrap(err, "Failed to encode badges")
	}
	err := tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		UpdateColumn("badges", user.Badges).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to persist badges")
	}
	return granted, nil
}

// AwardForVerification applies the composite verification reward: the
// submission award followed by the verification bonus. The two awards commit
// independently; if the second fails the first still stands and the error is
// returned for the caller to log.
func (s *PointsService) AwardForVerification(ctx context.Context, userID, reportID, category string) (*AwardResult, error) {
	first, err := s.Award(ctx, AwardInput{
		UserID:          userID,
		Points:          PointsSubmitReport,
		Action:          models.ActionSubmitReport,
		Description:     fmt.Sprintf("Report verified: %s", category),
		RelatedReportID: reportID,
	})
	if err != nil {
		return nil, err
	}

	second, err := s.Award(ctx, AwardInput{
		UserID:          userID,
		Points:          PointsReportVerified,
		Action:          models.ActionReportVerified,
		Description:     "Verification bonus",
		RelatedReportID: reportID,
	})
	if err != nil {
		return nil, err
	}

	return &AwardResult{
		PointsAwarded: first.PointsAwarded + second.PointsAwarded,
		TotalPoints:   second.TotalPoints,
		Badges:        second.Badges,
		NewBadges:     unionStrings(first.NewBadges, second.NewBadges),
	}, nil
}

type UserPointsSummary struct {
	UserID          string   `json:"userId"`
	Username        string   `json:"username"`
	Points          int      `json:"points"`
	Badges          []string `json:"badges"`
	TotalReports    int      `json:"totalReports"`
	VerifiedReports int64    `json:"verifiedReports"`
}

func (s *PointsService) UserSummary(ctx context.Context, userID string) (*UserPointsSummary, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "Failed to load user")
	}

	var verified int64
	err := s.db.WithContext(ctx).Model(&models.IncidentReport{}).
		Where("user_id = ? AND status = ?", userID, models.StatusVerified).
		Count(&verified).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to count verified reports")
	}

	return &UserPointsSummary{
		UserID:          user.ID,
		Username:        user.Username,
		Points:          user.Points,
		Badges:          user.BadgeList(),
		TotalReports:    user.TotalReports,
		VerifiedReports: verified,
	}, nil
}

type LeaderboardEntry struct {
	UserID       string   `json:"userId"`
	Username     string   `json:"username"`
	Points       int      `json:"points"`
	Badges       []string `json:"badges"`
	TotalReports int      `json:"totalReports"`
}

// Leaderboard returns the top users by points. For the week and month periods
// the ranking sums ledger entries inside the window; all-time uses the
// running total on the user row.
func (s *PointsService) Leaderboard(ctx context.Context, period string, limit int) ([]LeaderboardEntry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var since time.Time
	switch period {
	case "week":
		since = time.Now().AddDate(0, 0, -7)
	case "month":
		since = time.Now().AddDate(0, -1, 0)
	case "", "all":
	default:
		return nil, apperrors.NewBadRequest("Period must be one of week, month, all")
	}

	var users []models.User
	if since.IsZero() {
		err := s.db.WithContext(ctx).
			Where("role = ?", models.RoleUser).
			Order("points DESC").
			Limit(limit).
			Find(&users).Error
		if err != nil {
			return nil, apperrors.Wrap(err, "Failed to load leaderboard")
		}
		return s.toLeaderboard(users, nil), nil
	}

	type periodRow struct {
		UserID string
		Total  int
	}
	var rows []periodRow
	err := s.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Select("points_transactions.user_id, SUM(points_transactions.points) AS total").
		Joins("JOIN users ON users.id = points_transactions.user_id").
		Where("points_transactions.created_at >= ? AND users.role = ?", since, models.RoleUser).
		Group("points_transactions.user_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to load leaderboard")
	}
	if len(rows) == 0 {
		return []LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(rows))
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
		totals[row.UserID] = row.Total
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(err, "Failed to load leaderboard users")
	}

	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	ordered := make([]models.User, 0, len(rows))
	for _, row := range rows {
		if user, ok := byID[row.UserID]; ok {
			ordered = append(ordered, user)
		}
	}
	return s.toLeaderboard(ordered, totals), nil
}

func (s *PointsService) toLeaderboard(users []models.User, periodTotals map[string]int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(users))
	for _, user := range users {
		points := user.Points
		if periodTotals != nil {
			points = periodTotals[user.ID]
		}
		entries = append(entries, LeaderboardEntry{
			UserID:       user.ID,
			Username:     user.Username,
			Points:       points,
			Badges:       user.BadgeList(),
			TotalReports: user.TotalReports,
		})
	}
	return entries
}
