package service

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
)

func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		// database holds the file path, ":memory:" for an ephemeral store
		dialector = sqlite.Open(cfg.Database)
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode, cfg.TimeZone)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.AutomationJob{},
		&models.OutreachEntry{},
		&models.CycleRun{},
		&models.ErrorLog{},
		&models.MetricsSample{},
		&models.PlatformStats{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// At most one live active job per user and platform
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_automation_jobs_one_active
		ON automation_jobs (user_id, platform)
		WHERE status = 'active' AND deleted_at IS NULL`).Error; err != nil {
		return fmt.Errorf("failed to create active job index: %w", err)
	}
	return nil
}
