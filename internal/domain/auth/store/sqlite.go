package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"assetdesk-client/internal/platform/storage"
)

type sqliteStore struct {
	db        *gorm.DB
	namespace string
	owned     bool
}

// NewSQLite builds a SQLite-backed store on an already migrated handle.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{
		db:        db,
		namespace: namespaceOf(cfg),
	}, nil
}

func (s *sqliteStore) scoped(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Where("namespace = ?", s.namespace)
}

func (s *sqliteStore) upsert(tx *gorm.DB, key, value string) error {
	entry := storage.TokenEntry{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry storage.TokenEntry
	err := s.scoped(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	return s.upsert(s.db.WithContext(ctx), key, value)
}

func (s *sqliteStore) Remove(ctx context.Context, key string) error {
	return s.scoped(ctx).Where("key = ?", key).Delete(&storage.TokenEntry{}).Error
}

func (s *sqliteStore) SetAll(ctx context.Context, entries map[string]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range entries {
			if err := s.upsert(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteStore) GetAll(ctx context.Context) (map[string]string, error) {
	var entries []storage.TokenEntry
	if err := s.scoped(ctx).Find(&entries).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

func (s *sqliteStore) ClearAll(ctx context.Context) error {
	return s.scoped(ctx).Delete(&storage.TokenEntry{}).Error
}

func (s *sqliteStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return storage.Close(s.db)
}
