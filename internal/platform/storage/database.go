package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"assetdesk-client/internal/platform/errors"
	"assetdesk-client/internal/platform/storage/migrations"
)

// Open opens the sqlite database behind dsn and applies pending migrations.
// Plain file paths get their parent directory created and run in WAL mode
// with a busy timeout, since several CLI processes may share one file.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New(errors.KindStorage, "storage.open", "sqlite dsn is empty")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" && !strings.Contains(dsn, "?") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "storage.mkdir", "failed to create database directory", err)
			}
		}
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies every registered migration to db.
func Migrate(db *gorm.DB) error {
	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001TokenEntries{})
	return manager.RunMigrations()
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.close", "failed to access connection pool", err)
	}
	return sqlDB.Close()
}
