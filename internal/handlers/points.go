package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/middleware"
	"github.com/hazardwatch/hazardwatch/internal/services"
	"github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/response"
)

// PointsHandler exposes the gamification endpoints.
type PointsHandler struct {
	service *services.PointsService
}

// NewPointsHandler constructs a points handler.
func NewPointsHandler(db *gorm.DB) (*PointsHandler, error) {
	service, err := services.NewPointsService(db)
	if err != nil {
		return nil, err
	}
	return &PointsHandler{service: service}, nil
}

type awardRequest struct {
	UserID      string `json:"userId" validate:"required"`
	Points      int    `json:"points" validate:"required,min=1,max=1000"`
	Action      string `json:"action" validate:"required,oneof=submit_report report_verified vote comment bonus"`
	Description string `json:"description" validate:"omitempty,max=255"`
	ReportID    string `json:"reportId" validate:"omitempty"`
}

// Award credits points to a user. Admin only.
func (h *PointsHandler) Award(c *gin.Context) {
	var req awardRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Award(requestContext(c), services.AwardInput{
		UserID:          req.UserID,
		Points:          req.Points,
		Action:          req.Action,
		Description:     req.Description,
		RelatedReportID: req.ReportID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Points awarded successfully", result)
}

// Summary returns the points summary for a user.
func (h *PointsHandler) Summary(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		response.Error(c, errors.NewBadRequest("Please provide userId"))
		return
	}

	summary, err := h.service.UserSummary(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// MySummary returns the authenticated user's points summary.
func (h *PointsHandler) MySummary(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	summary, err := h.service.UserSummary(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// Leaderboard returns the top users for the requested period.
func (h *PointsHandler) Leaderboard(c *gin.Context) {
	period := strings.TrimSpace(c.Query("period"))
	limit := parseIntQuery(c, "limit", 10)

	entries, err := h.service.Leaderboard(requestContext(c), period, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"period": periodOrDefault(period), "leaderboard": entries})
}

func periodOrDefault(period string) string {
	if period == "" {
		return "all"
	}
	return period
}
