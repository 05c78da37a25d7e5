package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/geo"
	"github.com/hazardwatch/hazardwatch/internal/models"
	"github.com/hazardwatch/hazardwatch/internal/realtime"
	apperrors "github.com/hazardwatch/hazardwatch/pkg/errors"
	"github.com/hazardwatch/hazardwatch/pkg/logger"
	"github.com/hazardwatch/hazardwatch/pkg/metrics"
)

// DefaultMassAlertRadiusMeters bounds a mass alert when the admin does not
// pick a radius.
const DefaultMassAlertRadiusMeters = 10000

// Emitter is the realtime surface the dispatcher needs. *realtime.Hub
// satisfies it.
type Emitter interface {
	EmitToUser(userID, event string, payload any)
	BroadcastAll(event string, payload any)
}

// AlertService turns report events into persisted notifications plus realtime
// emissions. Durability comes first: a notification row is written before its
// realtime copy is emitted, so a crash between the two only costs latency.
type AlertService struct {
	db            *gorm.DB
	hub           Emitter
	notifications *NotificationService
	log           *zap.Logger
}

func NewAlertService(db *gorm.DB, hub Emitter, notifications *NotificationService) (*AlertService, error) {
	if db == nil {
		return nil, fmt.Errorf("alert service requires database handle")
	}
	if notifications == nil {
		return nil, fmt.Errorf("alert service requires notification service")
	}
	return &AlertService{
		db:            db,
		hub:           hub,
		notifications: notifications,
		log:           logger.WithModule("services.alerts"),
	}, nil
}

// AlertPayload is the realtime event body for targeted alerts.
type AlertPayload struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"reportId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BroadcastPayload is the lighter event body sent to every connected session
// regardless of room membership.
type BroadcastPayload struct {
	ReportID  string   `json:"reportId"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Severity  string   `json:"severity"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Location  string   `json:"locationName,omitempty"`
	CreatedBy string   `json:"createdBy,omitempty"`
}

func alertPayloadFor(n *models.Notification, createdBy string) AlertPayload {
	return AlertPayload{
		ID:        n.ID,
		ReportID:  n.ReportID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Severity:  n.Severity,
		Location:  n.Location,
		CreatedBy: createdBy,
		CreatedAt: n.CreatedAt,
	}
}

// BroadcastReportAlert notifies every other user about a freshly created
// report: batch-persisted notifications, a targeted emit per recipient, and a
// single alert_broadcast to all sessions. Returns how many users were
// notified.
func (s *AlertService) BroadcastReportAlert(ctx context.Context, report *models.IncidentReport, creator *models.User) (int, error) {
	ctx = ensureContext(ctx)
	if report == nil || creator == nil {
		return 0, apperrors.NewBadRequest("Report and creator are required")
	}

	var recipients []models.User
	err := s.db.WithContext(ctx).
		Where("id <> ?", creator.ID).
		Find(&recipients).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "Failed to load alert recipients")
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	title := fmt.Sprintf("New %s Alert!", strings.ToUpper(report.Category))
	message := fmt.Sprintf("%s reported a %s severity %s at %s",
		creator.Username, report.Severity, report.Category, report.LocationLabel())

	notifications := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		notifications = append(notifications, models.Notification{
			UserID:      recipient.ID,
			ReportID:    report.ID,
			CreatedByID: creator.ID,
			Type:        models.NotificationNewAlert,
			Title:       title,
			Message:     message,
			Category:    report.Category,
			Severity:    report.Severity,
			Location:    report.LocationLabel(),
		})
	}
	if err := s.notifications.CreateBatch(ctx, notifications); err != nil {
		return 0, err
	}

	if s.hub != nil {
		for i := range notifications {
			s.hub.EmitToUser(notifications[i].UserID, realtime.EventNewAlert,
				alertPayloadFor(&notifications[i], creator.Username))
		}
		s.hub.BroadcastAll(realtime.EventAlertBroadcast, BroadcastPayload{
			ReportID:  report.ID,
			Title:     title,
			Category:  report.Category,
			Severity:  report.Severity,
			Latitude:  report.Latitude,
			Longitude: report.Longitude,
			Location:  report.LocationLabel(),
			CreatedBy: creator.Username,
		})
	}

	metrics.AlertsDispatched.WithLabelValues("report_created").Inc()
	s.log.Info("report alert dispatched",
		zap.String("report_id", report.ID),
		zap.Int("recipients", len(notifications)))
	return len(notifications), nil
}

type MassAlertInput struct {
	ReportID     string
	RadiusMeters float64
	Message      string
	AdminID      string
}

type MassAlertResult struct {
	ReportID           string  `json:"reportId"`
	UsersNotified      int     `json:"usersNotified"`
	TotalUsersInRadius int     `json:"totalUsersInRadius"`
	RadiusKm           float64 `json:"radiusKm"`
}

// SendMassAlert pushes an admin alert about an existing report to every user
// whose stored location falls within the radius and whose notification
// preferences accept the report's category.
func (s *AlertService) SendMassAlert(ctx context.Context, input MassAlertInput) (*MassAlertResult, error) {
	ctx = ensureContext(ctx)
	if input.ReportID == "" {
		return nil, apperrors.NewBadRequest("Please provide reportId")
	}

	var report models.IncidentReport
	err := s.db.WithContext(ctx).
		Preload("User").
		First(&report, "id = ?", input.ReportID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Report")
		}
		return nil, apperrors.Wrap(err, "Failed to load report")
	}
	if !report.HasLocation() {
		return nil, apperrors.NewBadRequest("Report does not have location data")
	}

	radius := input.RadiusMeters
	if radius <= 0 {
		radius = DefaultMassAlertRadiusMeters
	}

	var candidates []models.User
	err = s.db.WithContext(ctx).
		Where("role = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", models.RoleUser).
		Find(&candidates).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to load users")
	}

	var inRadius []models.User
	for _, candidate := range candidates {
		if geo.WithinRadius(*report.Latitude, *report.Longitude,
			*candidate.Latitude, *candidate.Longitude, radius) {
			inRadius = append(inRadius, candidate)
		}
	}

	message := input.Message
	if message == "" {
		message = fmt.Sprintf("Admin Alert: %s hazard verified at %s",
			strings.ToUpper(report.Category), report.LocationLabel())
	}
	title := fmt.Sprintf("Verified %s Alert", strings.ToUpper(report.Category))

	notifications := make([]models.Notification, 0, len(inRadius))
	for _, user := range inRadius {
		if !user.Settings().WantsCategory(report.Category) {
			continue
		}
		notifications = append(notifications, models.Notification{
			UserID:      user.ID,
			ReportID:    report.ID,
			CreatedByID: input.AdminID,
			Type:        models.NotificationNewAlert,
			Title:       title,
			Message:     message,
			Category:    report.Category,
			Severity:    report.Severity,
			Location:    report.LocationLabel(),
		})
	}
	if err := s.notifications.CreateBatch(ctx, notifications); err != nil {
		return nil, err
	}

	if s.hub != nil {
		for i := range notifications {
			s.hub.EmitToUser(notifications[i].UserID, realtime.EventNewAlert,
				alertPayloadFor(&notifications[i], "Admin"))
		}
	}

	metrics.AlertsDispatched.WithLabelValues("mass_alert").Inc()
	s.log.Info("mass alert dispatched",
		zap.String("report_id", report.ID),
		zap.Float64("radius_meters", radius),
		zap.Int("in_radius", len(inRadius)),
		zap.Int("notified", len(notifications)))

	return &MassAlertResult{
		ReportID:           report.ID,
		UsersNotified:      len(notifications),
		TotalUsersInRadius: len(inRadius),
		RadiusKm:           radius / 1000,
	}, nil
}
