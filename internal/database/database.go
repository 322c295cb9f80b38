package database

import (
	"time"

	"github.com/civicsafe/api/internal/config"
	"github.com/civicsafe/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsDev() {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Migrate(db *gorm.DB) error {
	// gen_random_uuid() is built in from PostgreSQL 13; older servers need pgcrypto.
	db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto")

	err := db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Report{},
		&model.Post{},
	)
	if err != nil {
		return err
	}

	// Create unique index for users (provider, provider_id)
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_provider_id ON users(provider, provider_id) WHERE provider_id <> ''")

	// Triage scans non-terminal reports classified by keyword rules
	db.Exec("CREATE INDEX IF NOT EXISTS idx_reports_triage ON reports(created_at) WHERE classified_via = 'heuristic' AND status IN ('PENDING', 'IN_PROGRESS')")

	return nil
}
