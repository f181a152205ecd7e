package store

import (
	"context"
	"time"
)

// Store is the durable key/value home of session credentials. It does not
// validate what it holds. Multi-key writes and clears are atomic with
// respect to concurrent readers.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// SetAll writes every entry in one critical section.
	SetAll(ctx context.Context, entries map[string]string) error
	// GetAll returns a consistent snapshot of the namespace.
	GetAll(ctx context.Context) (map[string]string, error)
	// ClearAll drops every entry of the namespace at once.
	ClearAll(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver    string
	Namespace string
	// TTL expires redis entries; other drivers keep entries until cleared.
	TTL    time.Duration
	File   *FileConfig
	SQLite *SQLiteConfig
	Redis  *RedisConfig
}

// FileConfig points at the JSON document backing the file driver.
type FileConfig struct {
	Path string
}

// SQLiteConfig provides the database location when no handle is injected.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

const defaultNamespace = "default"

func namespaceOf(cfg Config) string {
	if cfg.Namespace == "" {
		return defaultNamespace
	}
	return cfg.Namespace
}

func copyEntries(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
