package config

import "time"

const DefaultBaseURL = "http://localhost:8000"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			Timeout:        30 * time.Second,
			RefreshTimeout: 15 * time.Second,
			Endpoints: EndpointsConfig{
				Login:        "/api/auth/login/",
				Registration: "/api/auth/registration/",
				Logout:       "/api/auth/logout/",
				Profile:      "/api/users/profile/",
				Refresh:      "/api/auth/token/refresh/",
			},
		},
		Store: StoreConfig{
			Driver:    "file",
			Namespace: "default",
			File: FileStoreConfig{
				Path: "data/session.json",
			},
			SQLite: SQLiteStoreConfig{
				DSN: "data/session.db",
			},
			Redis: RedisStoreConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "assetdesk:session:",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Mock: MockConfig{
			Addr:            "127.0.0.1:8000",
			Secret:          "assetdesk-dev-secret",
			AccessTTL:       5 * time.Minute,
			RefreshTTL:      24 * time.Hour,
			AutoLoginSignup: true,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
			Users: []MockUser{
				{
					Username:   "admin",
					Password:   "admin123",
					Email:      "admin@example.com",
					Department: "IT",
					IsAdmin:    true,
				},
				{
					Username:   "employee",
					Password:   "employee123",
					Email:      "employee@example.com",
					Department: "Finance",
				},
			},
		},
	}
}
