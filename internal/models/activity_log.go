package models

// ActivityLog records admin and system actions for the dashboard audit trail.
type ActivityLog struct {
	BaseModel

	UserID          string  `gorm:"type:uuid;not null;index" json:"user_id"`
	Action          string  `gorm:"type:varchar(64);not null" json:"action"`
	Details         string  `json:"details,omitempty"`
	RelatedReportID *string `gorm:"type:uuid" json:"related_report_id,omitempty"`
}
