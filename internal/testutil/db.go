// Package testutil opens throwaway ledgers for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/model"
	"github.com/pcoptimize/pcoptimize-backend/pkg/logger"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
// Foreign keys are neither created nor enforced, as with AutoMigrate in production.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, false)
}

// NewTestDBWithForeignKeys is NewTestDB with the ledger's foreign keys created and enforced.
func NewTestDBWithForeignKeys(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, true)
}

func openTestDB(t *testing.T, foreignKeys bool) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	if foreignKeys {
		dsn += "&_foreign_keys=on"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.NewGormLogger(zap.NewNop(), gormlogger.Silent, 0, true),
		TranslateError: true,

		DisableForeignKeyConstraintWhenMigrating: !foreignKeys,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}
