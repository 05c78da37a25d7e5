package models

import "time"

// Notification types.
const (
	NotificationNewAlert = "new_alert"
	NotificationComment  = "comment"
	NotificationUpvote   = "upvote"
	NotificationDownvote = "downvote"
	NotificationReply    = "reply"
)

// NotificationTTL is how long a notification stays readable before the
// maintenance cleaner purges it, regardless of read state.
const NotificationTTL = 30 * 24 * time.Hour

// Notification is a durable per-user alert record. The realtime channel is
// only a latency optimisation; this row is what clients reconcile against.
type Notification struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1" json:"user_id"`

	ReportID    string          `gorm:"type:uuid;not null" json:"report_id"`
	Report      *IncidentReport `gorm:"foreignKey:ReportID" json:"report,omitempty"`
	CreatedByID string          `gorm:"type:uuid;not null" json:"created_by_id"`

	Type     string `gorm:"type:varchar(32);default:'new_alert'" json:"type"`
	Title    string `gorm:"not null" json:"title"`
	Message  string `gorm:"type:text;not null" json:"message"`
	Category string `gorm:"type:varchar(32)" json:"category,omitempty"`
	Severity string `gorm:"type:varchar(16)" json:"severity,omitempty"`
	Location string `json:"location,omitempty"`

	// ReadAt is set if and only if Read is true.
	Read   bool       `gorm:"default:false;index" json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
