package config

import "time"

type Config struct {
	API     APIConfig     `yaml:"api"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Mock    MockConfig    `yaml:"mock"`
}

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	BaseURL        string          `yaml:"base_url"`
	Timeout        time.Duration   `yaml:"timeout"`
	RefreshTimeout time.Duration   `yaml:"refresh_timeout"`
	Endpoints      EndpointsConfig `yaml:"endpoints"`
}

type EndpointsConfig struct {
	Login        string `yaml:"login"`
	Registration string `yaml:"registration"`
	Logout       string `yaml:"logout"`
	Profile      string `yaml:"profile"`
	Refresh      string `yaml:"refresh"`
}

// StoreConfig selects and tunes the token store driver.
type StoreConfig struct {
	Driver    string            `yaml:"driver"`
	Namespace string            `yaml:"namespace"`
	File      FileStoreConfig   `yaml:"file,omitempty"`
	SQLite    SQLiteStoreConfig `yaml:"sqlite,omitempty"`
	Redis     RedisStoreConfig  `yaml:"redis,omitempty"`
}

type FileStoreConfig struct {
	Path string `yaml:"path"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisStoreConfig struct {
	Addr     string        `yaml:"addr"`
	Username string        `yaml:"username,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MockConfig drives the development backend started by `dashctl serve-mock`.
type MockConfig struct {
	Addr            string        `yaml:"addr"`
	Secret          string        `yaml:"secret"`
	AccessTTL       time.Duration `yaml:"access_ttl"`
	RefreshTTL      time.Duration `yaml:"refresh_ttl"`
	AutoLoginSignup bool          `yaml:"auto_login_signup"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	Users           []MockUser    `yaml:"users"`
}

type MockUser struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Email      string `yaml:"email"`
	Department string `yaml:"department"`
	IsAdmin    bool   `yaml:"is_admin"`
}
