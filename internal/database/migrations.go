package database

import (
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.IncidentReport{},
		&models.ReportVote{},
		&models.ReportComment{},
		&models.PointsTransaction{},
		&models.Notification{},
		&models.ActivityLog{},
	)
}
