package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report lifecycle states. Pending reports move to verified or rejected;
// verified reports may later be marked resolved.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
	StatusResolved = "resolved"
)

// Hazard categories.
const (
	CategoryAccident   = "accident"
	CategoryFire       = "fire"
	CategoryFlood      = "flood"
	CategoryCrime      = "crime"
	CategoryPollution  = "pollution"
	CategoryEarthquake = "earthquake"
	CategoryCyclone    = "cyclone"
	CategoryOther      = "other"
)

// Severity levels.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Categories lists every supported hazard category.
var Categories = []string{
	CategoryAccident,
	CategoryFire,
	CategoryFlood,
	CategoryCrime,
	CategoryPollution,
	CategoryEarthquake,
	CategoryCyclone,
	CategoryOther,
}

// IncidentReport is a community-submitted hazard report.
type IncidentReport struct {
	BaseModel

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"type:varchar(32);not null;index" json:"category"`
	Severity    string `gorm:"type:varchar(16);default:'medium'" json:"severity"`

	LocationName string `json:"location_name,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Status          string     `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	IsVerified      bool       `gorm:"default:false" json:"is_verified"`
	VerifiedByID    *string    `gorm:"type:uuid" json:"verified_by_id,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	MediaURLs datatypes.JSON `json:"media_urls,omitempty"`

	// Counters stay consistent with the vote rows and never go negative.
	Upvotes   int `gorm:"default:0" json:"upvotes"`
	Downvotes int `gorm:"default:0" json:"downvotes"`

	Comments []ReportComment `gorm:"foreignKey:ReportID" json:"comments,omitempty"`
}

// HasLocation reports whether the report carries usable coordinates.
func (r *IncidentReport) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// LocationLabel picks the human-readable place name for notifications.
func (r *IncidentReport) LocationLabel() string {
	if r.LocationName != "" {
		return r.LocationName
	}
	return r.Address
}

// Vote directions.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// ReportVote records a user's single vote on a report. A user holds at most
// one of {up, none, down} per report at any time.
type ReportVote struct {
	BaseModel

	ReportID  string `gorm:"type:uuid;not null;uniqueIndex:idx_report_votes_report_user" json:"report_id"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_report_votes_report_user" json:"user_id"`
	Direction string `gorm:"type:varchar(8);not null" json:"direction"`
}

// ReportComment is an append-only comment attributed to a user.
type ReportComment struct {
	BaseModel

	ReportID string `gorm:"type:uuid;not null;index" json:"report_id"`
	UserID   string `gorm:"type:uuid;not null" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
}
