package models

import "gorm.io/gorm"

// AllModels returns all models for migration.
// Users migrate first since links and campaigns reference them.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Campaign{},
		&Link{},
		&TrackingEvent{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
