// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/claimdesk-backend/internal/config"
	"github.com/javajoker/claimdesk-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	// Configure GORM logger
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("Database connection established")
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB, log logrus.FieldLogger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("Error closing database connection")
	} else {
		log.Info("Database connection closed")
	}
}

// Tables lists every model managed by RunMigrations.
var Tables = []interface{}{
	&models.Claim{},
	&models.ClaimItem{},
	&models.ClaimMetadata{},
	&models.ClaimDocument{},
	&models.ClaimInfoRequest{},
	&models.ClaimTimeline{},
	&models.ClaimCoveragePeriod{},
}

func RunMigrations(db *gorm.DB, log logrus.FieldLogger) error {
	log.Info("Running database migrations")

	// Run auto-migrations
	if err := db.AutoMigrate(Tables...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db, log); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Info("Database migrations completed")
	return nil
}

// requiredIndexes enforce the document slot and pending request rules, so a failure aborts the migration.
var requiredIndexes = []string{
	// At most one document per (claim, doc_type)
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_documents_claim_type ON claim_documents(claim_id, doc_type)",
	// At most one pending info request per claim
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_info_requests_one_pending ON claim_info_requests(claim_id) WHERE status = 'PENDING'",
}

var secondaryIndexes = []string{
	// Claim indexes
	"CREATE INDEX IF NOT EXISTS idx_claims_status_stage ON claims(status, stage)",
	"CREATE INDEX IF NOT EXISTS idx_claims_agency_created ON claims(agency_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_claims_hospital_created ON claims(hospital_id, created_at DESC)",

	// Timeline indexes
	"CREATE INDEX IF NOT EXISTS idx_claim_timeline_claim_created ON claim_timeline(claim_id, created_at)",
}

func createIndexes(db *gorm.DB, log logrus.FieldLogger) error {
	for _, index := range requiredIndexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("index %q: %w", index, err)
		}
	}

	for _, index := range secondaryIndexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			log.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
