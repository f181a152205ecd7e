package testing

import (
	"io"
	"testing"
	"time"

	"assetdesk-client/internal/platform/config"
	"assetdesk-client/internal/platform/logging"
)

// SetupTestConfig returns the default configuration tuned for tests: an
// in-memory token store, a temp log dir and short mock token lifetimes.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Store.Driver = "memory"
	cfg.Log = config.LogConfig{
		Level: "debug",
		Dir:   t.TempDir(),
		File:  "test.log",
	}
	cfg.API.Timeout = 5 * time.Second
	cfg.API.RefreshTimeout = 5 * time.Second
	cfg.Mock.Addr = "127.0.0.1:0"
	cfg.Mock.Secret = "test-secret"
	cfg.Mock.AccessTTL = time.Minute
	cfg.Mock.RefreshTTL = time.Hour

	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}
