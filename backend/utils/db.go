package utils

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"learnpath/backend/config"
	"learnpath/backend/models"
)

// InitDB opens the configured database and migrates the schema.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Lesson{},
		&models.LessonAccess{},
		&models.Test{},
		&models.TestQuestion{},
		&models.TestChoice{},
		&models.TestAttempt{},
		&models.UserAnswer{},
		&models.SelectedAnswer{},
		&models.CourseProgress{},
		&models.CompletedLesson{},
		&models.CompletedTest{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
