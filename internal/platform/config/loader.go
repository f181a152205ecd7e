package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "assetdesk-client/internal/platform/errors"
)

const (
	EnvConfigPath  = "DASHBOARD_CONFIG"
	EnvBaseURL     = "API_BASE_URL"
	EnvStoreDriver = "DASHBOARD_STORE_DRIVER"
	EnvStorePath   = "DASHBOARD_STORE_PATH"
	EnvSQLiteDSN   = "DASHBOARD_SQLITE_DSN"
	EnvRedisAddr   = "DASHBOARD_REDIS_ADDR"
	EnvLogLevel    = "DASHBOARD_LOG_LEVEL"

	defaultConfigFile = ".dashctl.yaml"
)

// Loader resolves configuration with priority: environment > yaml file > defaults.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that reads .env and the process environment.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the yaml file to read instead of probing DASHBOARD_CONFIG and .dashctl.yaml.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path, explicit := l.resolvePath()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.parse",
					fmt.Sprintf("invalid yaml in %s", path), err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			path = ""
		default:
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.read",
				fmt.Sprintf("cannot read %s", path), err)
		}
	}

	l.applyEnv(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() (string, bool) {
	if l.path != "" {
		return l.path, true
	}
	if v, ok := l.lookupEnv(EnvConfigPath); ok && v != "" {
		return v, true
	}
	return defaultConfigFile, false
}

func (l *Loader) applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvBaseURL, &cfg.API.BaseURL)
	set(EnvStoreDriver, &cfg.Store.Driver)
	set(EnvStorePath, &cfg.Store.File.Path)
	set(EnvSQLiteDSN, &cfg.Store.SQLite.DSN)
	set(EnvRedisAddr, &cfg.Store.Redis.Addr)
	set(EnvLogLevel, &cfg.Log.Level)
}

func (l *Loader) validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("api.base_url must be an absolute http(s) url, got %q", cfg.API.BaseURL))
	}
	if cfg.API.Timeout < 0 || cfg.API.RefreshTimeout < 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "timeouts must not be negative")
	}

	endpoints := map[string]string{
		"login":        cfg.API.Endpoints.Login,
		"registration": cfg.API.Endpoints.Registration,
		"logout":       cfg.API.Endpoints.Logout,
		"profile":      cfg.API.Endpoints.Profile,
		"refresh":      cfg.API.Endpoints.Refresh,
	}
	for name, path := range endpoints {
		if !strings.HasPrefix(path, "/") {
			return platformerrors.New(platformerrors.KindConfig, "config.validate",
				fmt.Sprintf("api.endpoints.%s must start with '/', got %q", name, path))
		}
	}

	switch cfg.Store.Driver {
	case "memory":
	case "file":
		if cfg.Store.File.Path == "" {
			return platformerrors.New(platformerrors.KindConfig, "config.validate", "store.file.path required")
		}
	case "sqlite":
		if cfg.Store.SQLite.DSN == "" {
			return platformerrors.New(platformerrors.KindConfig, "config.validate", "store.sqlite.dsn required")
		}
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			return platformerrors.New(platformerrors.KindConfig, "config.validate", "store.redis.addr required")
		}
	default:
		return platformerrors.New(platformerrors.KindConfig, "config.validate",
			fmt.Sprintf("unsupported store driver %q", cfg.Store.Driver))
	}
	return nil
}
