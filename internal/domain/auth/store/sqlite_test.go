package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"assetdesk-client/internal/domain/auth/model"
	"assetdesk-client/internal/platform/storage"
)

func newTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}

func TestSQLiteStoreSharedMemoryHandle(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer storage.Close(db)
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := NewSQLite(db, Config{})
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}
	if err := s.SetAll(ctx, map[string]string{model.KeyAccessToken: "a", model.KeyUser: "{}"}); err != nil {
		t.Fatalf("SetAll error: %v", err)
	}
	all, err := s.GetAll(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAll = %v %v", all, err)
	}
	// closing a borrowed handle is a no-op
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("borrowed handle closed: %v", err)
	}
}

func TestSQLiteStoreContract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		s, err := NewSQLite(newTestSQLiteDB(t), Config{})
		if err != nil {
			t.Fatalf("NewSQLite error: %v", err)
		}
		return s
	})
}

func TestSQLiteStoreNamespaces(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLiteDB(t)

	a, _ := NewSQLite(db, Config{Namespace: "a"})
	b, _ := NewSQLite(db, Config{Namespace: "b"})

	if err := a.SetAll(ctx, map[string]string{model.KeyAccessToken: "1", model.KeyRefreshToken: "2"}); err != nil {
		t.Fatalf("SetAll error: %v", err)
	}
	if err := b.Set(ctx, model.KeyAccessToken, "3"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := a.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll error: %v", err)
	}
	if v, ok, _ := b.Get(ctx, model.KeyAccessToken); !ok || v != "3" {
		t.Fatalf("namespace b affected: %q %v", v, ok)
	}
	var count int64
	db.Model(&storage.TokenEntry{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one row left, got %d", count)
	}
}

func TestSQLiteStoreOwnedHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := New(Config{Driver: DriverSQLite, SQLite: &SQLiteConfig{DSN: path}}, Dependencies{})
	if err != nil {
		t.Fatalf("New sqlite store: %v", err)
	}
	if err := s.Set(ctx, model.KeyUser, `{"username":"admin"}`); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := New(Config{Driver: DriverSQLite, SQLite: &SQLiteConfig{DSN: path}}, Dependencies{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close(ctx)
	if v, ok, _ := reopened.Get(ctx, model.KeyUser); !ok || v != `{"username":"admin"}` {
		t.Fatalf("value lost across reopen: %q %v", v, ok)
	}
}
