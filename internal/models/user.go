package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Notification delivery methods.
const (
	DeliveryPush  = "push"
	DeliveryEmail = "email"
	DeliverySMS   = "sms"
	DeliveryAll   = "all"
)

// User describes a registered community member or administrator.
//
// Points only ever increase and badges are never removed once granted; both
// are mutated exclusively by the points service.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`

	Role string `gorm:"type:varchar(16);default:'user';index" json:"role"`

	Points       int            `gorm:"default:0;index" json:"points"`
	Badges       datatypes.JSON `json:"badges"`
	TotalReports int            `gorm:"default:0" json:"total_reports"`

	// Optional home location used for radius-scoped alerts.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	NotificationSettings datatypes.JSON `json:"notification_settings"`
}

// NotificationSettings captures a user's alert delivery preferences.
// Category keys absent from the map default to enabled.
type NotificationSettings struct {
	Enabled    bool            `json:"enabled"`
	Method     string          `json:"method"`
	Categories map[string]bool `json:"categories,omitempty"`
}

// DefaultNotificationSettings returns the preferences applied at registration.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{Enabled: true, Method: DeliveryPush}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasLocation reports whether both coordinates are present.
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// BadgeList decodes the badges column into its ordered name list.
func (u *User) BadgeList() []string {
	if len(u.Badges) == 0 {
		return nil
	}
	var badges []string
	if err := json.Unmarshal(u.Badges, &badges); err != nil {
		return nil
	}
	return badges
}

// HasBadge reports whether the user already holds the named badge.
func (u *User) HasBadge(name string) bool {
	for _, badge := range u.BadgeList() {
		if badge == name {
			return true
		}
	}
	return false
}

// SetBadges encodes the ordered badge list back into the JSON column.
func (u *User) SetBadges(badges []string) error {
	data, err := json.Marshal(badges)
	if err != nil {
		return err
	}
	u.Badges = datatypes.JSON(data)
	return nil
}

// Settings decodes the notification settings column, falling back to defaults
// when the column is empty or malformed.
func (u *User) Settings() NotificationSettings {
	if len(u.NotificationSettings) == 0 {
		return DefaultNotificationSettings()
	}
	var settings NotificationSettings
	if err := json.Unmarshal(u.NotificationSettings, &settings); err != nil {
		return DefaultNotificationSettings()
	}
	if settings.Method == "" {
		settings.Method = DeliveryPush
	}
	return settings
}

// SetSettings encodes notification preferences into the JSON column.
func (u *User) SetSettings(settings NotificationSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	u.NotificationSettings = datatypes.JSON(data)
	return nil
}

// WantsCategory reports whether alerts for the category should reach this
// user. Categories default to enabled unless explicitly disabled, and the
// global enabled flag overrides everything.
func (s NotificationSettings) WantsCategory(category string) bool {
	if !s.Enabled {
		return false
	}
	if s.Categories == nil {
		return true
	}
	enabled, ok := s.Categories[category]
	if !ok {
		return true
	}
	return enabled
}
