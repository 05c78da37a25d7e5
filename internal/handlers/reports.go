package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/middleware"
	"github.com/hazardwatch/hazardwatch/internal/models"
	"github.com/hazardwatch/hazardwatch/internal/realtime"
	"github.com/hazardwatch/hazardwatch/internal/services"
	"github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/response"
)

// ReportHandler exposes the report lifecycle endpoints.
type ReportHandler struct {
	service *services.ReportService
}

// NewReportHandler wires the report service with its points and alert
// collaborators.
func NewReportHandler(db *gorm.DB, hub *realtime.Hub) (*ReportHandler, error) {
	points, err := services.NewPointsService(db)
	if err != nil {
		return nil, err
	}
	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	var emitter services.Emitter
	if hub != nil {
		emitter = hub
	}
	alerts, err := services.NewAlertService(db, emitter, notifications)
	if err != nil {
		return nil, err
	}
	service, err := services.NewReportService(db, points, alerts)
	if err != nil {
		return nil, err
	}
	return &ReportHandler{service: service}, nil
}

type createReportRequest struct {
	Title        string   `json:"title" validate:"required,min=3,max=200"`
	Description  string   `json:"description" validate:"required,min=10"`
	Category     string   `json:"category" validate:"required,oneof=accident fire flood crime pollution earthquake cyclone other"`
	Severity     string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	LocationName string   `json:"locationName" validate:"omitempty,max=255"`
	Address      string   `json:"address" validate:"omitempty,max=255"`
	City         string   `json:"city" validate:"omitempty,max=100"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	MediaURLs    []string `json:"mediaUrls" validate:"omitempty,dive,url"`
}

// Create submits a new hazard report and fans the community alert out.
func (h *ReportHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createReportRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.service.Create(requestContext(c), services.CreateReportInput{
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Severity:     req.Severity,
		LocationName: req.LocationName,
		Address:      req.Address,
		City:         req.City,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		MediaURLs:    req.MediaURLs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "Report submitted successfully", report)
}

// List returns reports with filters and pagination.
func (h *ReportHandler) List(c *gin.Context) {
	page, err := h.service.List(requestContext(c), services.ReportFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Status:   strings.TrimSpace(c.Query("status")),
		Severity: strings.TrimSpace(c.Query("severity")),
		City:     strings.TrimSpace(c.Query("city")),
		UserID:   strings.TrimSpace(c.Query("userId")),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "pageSize", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := 0
	if page.PageSize > 0 {
		totalPages = int((page.Total + int64(page.PageSize) - 1) / int64(page.PageSize))
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Reports, &response.Meta{
		Page:       page.Page,
		PerPage:    page.PageSize,
		Total:      int(page.Total),
		TotalPages: totalPages,
	})
}

// Get returns one report with its comments.
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.service.Get(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// Nearby returns located reports around a coordinate.
func (h *ReportHandler) Nearby(c *gin.Context) {
	lat, okLat := parseFloatQuery(c, "latitude")
	lng, okLng := parseFloatQuery(c, "longitude")
	if !okLat || !okLng {
		response.Error(c, errors.NewBadRequest("Please provide latitude and longitude"))
		return
	}

	radius := float64(parseIntQuery(c, "radius", 0))
	reports, err := h.service.Nearby(requestContext(c), lat, lng, radius)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, reports)
}

// Upvote toggles an upvote on a report.
func (h *ReportHandler) Upvote(c *gin.Context) {
	h.vote(c, models.VoteUp)
}

// Downvote toggles a downvote on a report.
func (h *ReportHandler) Downvote(c *gin.Context) {
	h.vote(c, models.VoteDown)
}

func (h *ReportHandler) vote(c *gin.Context, direction string) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	result, err := h.service.Vote(requestContext(c), strings.TrimSpace(c.Param("id")), userID, direction)
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Vote recorded"
	if result.Removed {
		message = "Vote removed"
	}
	response.SuccessWithMessage(c, http.StatusOK, message, result)
}

type commentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// AddComment appends a comment to a report.
func (h *ReportHandler) AddComment(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req commentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.AddComment(requestContext(c), strings.TrimSpace(c.Param("id")), userID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "Comment added", result)
}
