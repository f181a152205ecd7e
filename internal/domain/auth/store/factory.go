package store

import (
	"fmt"

	"gorm.io/gorm"

	"assetdesk-client/internal/platform/storage"
)

// Driver identifiers supported by the token store.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	// SQLiteDB is used as-is when set; otherwise the sqlite driver opens
	// cfg.SQLite.DSN and closes it with the store.
	SQLiteDB *gorm.DB
}

// New creates a token store based on the provided configuration.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		return NewFile(cfg)
	case DriverSQLite:
		if deps.SQLiteDB != nil {
			return NewSQLite(deps.SQLiteDB, cfg)
		}
		if cfg.SQLite == nil || cfg.SQLite.DSN == "" {
			return nil, fmt.Errorf("sqlite driver requires a database handle or dsn")
		}
		db, err := storage.Open(cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLite(db, cfg)
		if err != nil {
			_ = storage.Close(db)
			return nil, err
		}
		s.(*sqliteStore).owned = true
		return s, nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported token store driver: %s", driver)
	}
}
