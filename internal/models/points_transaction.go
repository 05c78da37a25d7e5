package models

// Point-awarding action kinds recorded in the ledger.
const (
	ActionSubmitReport   = "submit_report"
	ActionReportVerified = "report_verified"
	ActionVote           = "vote"
	ActionComment        = "comment"
	ActionBonus          = "bonus"
)

// KnownAction reports whether the action kind is one of the defined values.
func KnownAction(action string) bool {
	switch action {
	case ActionSubmitReport, ActionReportVerified, ActionVote, ActionComment, ActionBonus:
		return true
	}
	return false
}

// PointsTransaction is an immutable, append-only ledger entry. The sum of a
// user's entries reconciles with User.Points.
type PointsTransaction struct {
	BaseModel

	UserID          string  `gorm:"type:uuid;not null;index" json:"user_id"`
	Action          string  `gorm:"type:varchar(32);not null" json:"action"`
	Points          int     `gorm:"not null" json:"points"`
	Description     string  `json:"description,omitempty"`
	RelatedReportID *string `gorm:"type:uuid" json:"related_report_id,omitempty"`
}
