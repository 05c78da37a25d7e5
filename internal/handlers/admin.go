package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/middleware"
	"github.com/hazardwatch/hazardwatch/internal/realtime"
	"github.com/hazardwatch/hazardwatch/internal/services"
	"github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/response"
)

// AdminHandler exposes moderation and alerting endpoints. Every route behind
// it requires the admin role.
type AdminHandler struct {
	reports *services.ReportService
	alerts  *services.AlertService
}

// NewAdminHandler constructs an admin handler sharing services with the
// report pipeline.
func NewAdminHandler(db *gorm.DB, hub *realtime.Hub) (*AdminHandler, error) {
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
	reports, err := services.NewReportService(db, points, alerts)
	if err != nil {
		return nil, err
	}
	return &AdminHandler{reports: reports, alerts: alerts}, nil
}

// Verify marks a report verified and pays the reporter.
func (h *AdminHandler) Verify(c *gin.Context) {
	adminID := c.GetString(middleware.CtxUserIDKey)
	if adminID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	result, err := h.reports.Verify(requestContext(c), strings.TrimSpace(c.Param("id")), adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Report verified successfully", result)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Reject marks a report rejected with a reason.
func (h *AdminHandler) Reject(c *gin.Context) {
	adminID := c.GetString(middleware.CtxUserIDKey)
	if adminID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req rejectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.reports.Reject(requestContext(c), strings.TrimSpace(c.Param("id")), adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Report rejected", report)
}

// Reports lists reports for the moderation queue, defaulting to pending.
func (h *AdminHandler) Reports(c *gin.Context) {
	page, err := h.reports.List(requestContext(c), services.ReportFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Status:   strings.TrimSpace(c.Query("status")),
		Severity: strings.TrimSpace(c.Query("severity")),
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

// Stats returns dashboard counters.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.reports.Stats(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

type massAlertRequest struct {
	ReportID     string  `json:"reportId" validate:"required"`
	RadiusMeters float64 `json:"radiusMeters" validate:"omitempty,min=100,max=100000"`
	Message      string  `json:"message" validate:"omitempty,max=500"`
}

// SendAlert pushes a mass alert about a report to users in its radius.
func (h *AdminHandler) SendAlert(c *gin.Context) {
	adminID := c.GetString(middleware.CtxUserIDKey)
	if adminID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req massAlertRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.alerts.SendMassAlert(requestContext(c), services.MassAlertInput{
		ReportID:     req.ReportID,
		RadiusMeters: req.RadiusMeters,
		Message:      req.Message,
		AdminID:      adminID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Alert sent successfully", result)
}
