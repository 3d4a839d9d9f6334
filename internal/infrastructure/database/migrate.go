package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
)

type enumType struct {
	name   string
	values []string
}

// enumTypes must exist before the tables that use them are migrated.
var enumTypes = []enumType{
	{"plan_type", []string{"basic", "gamer", "premium"}},
	{"purchase_status", []string{"pending", "completed", "refunded", "failed"}},
	{"booking_status", []string{"scheduled", "completed", "cancelled", "no_show"}},
	{"webhook_status", []string{"pending", "completed", "failed"}},
}

type foreignKey struct {
	name       string
	table      string
	column     string
	references string
}

// foreignKeys are added after AutoMigrate, which runs with foreign key creation disabled.
var foreignKeys = []foreignKey{
	{"fk_purchases_customer", "purchases", "customer_id", "customers(id)"},
	{"fk_bookings_purchase", "bookings", "purchase_id", "purchases(id)"},
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	for _, enum := range enumTypes {
		if err := ensureEnum(db, enum); err != nil {
			logger.Error("Failed to create custom type", zap.String("type", enum.name), zap.Error(err))
			return err
		}
	}
	logger.Info("Custom PostgreSQL types created successfully")

	if err := db.AutoMigrate(model.All()...); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}
	logger.Info("GORM auto-migrations completed successfully")

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	for _, fk := range foreignKeys {
		if err := ensureForeignKey(db, fk); err != nil {
			logger.Error("Failed to create foreign key", zap.String("constraint", fk.name), zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// ensureEnum creates the type, or adds values missing from an older deployment.
func ensureEnum(db *gorm.DB, enum enumType) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, enum.name).Scan(&exists).Error; err != nil {
		return err
	}

	if !exists {
		quoted := make([]string, len(enum.values))
		for i, v := range enum.values {
			quoted[i] = "'" + v + "'"
		}
		return db.Exec(fmt.Sprintf(`CREATE TYPE %s AS ENUM (%s)`, enum.name, strings.Join(quoted, ", "))).Error
	}

	for _, v := range enum.values {
		if err := db.Exec(fmt.Sprintf(`ALTER TYPE %s ADD VALUE IF NOT EXISTS '%s'`, enum.name, v)).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureForeignKey(db *gorm.DB, fk foreignKey) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, fk.name).Scan(&exists).Error; err != nil {
		return err
	}
	if exists {
		return nil
	}
	return db.Exec(foreignKeyDDL(fk)).Error
}

func foreignKeyDDL(fk foreignKey) string {
	return fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s ON UPDATE RESTRICT ON DELETE RESTRICT`,
		fk.table, fk.name, fk.column, fk.references)
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_review_items_open ON review_items (created_at) WHERE status = 'open'`).Error; err != nil {
		return err
	}

	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_purchases_customer_completed ON purchases (customer_id, created_at DESC) WHERE status = 'completed'`).Error
}
