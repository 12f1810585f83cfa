package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Auth modes
const (
	AuthModeDisabled = "disabled"
	AuthModeJWT      = "jwt"
)

// MinPollInterval is the floor for the partner polling interval
const MinPollInterval = 5 * time.Second

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// Address returns the listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// StorageConfig selects the backing store for the API layer
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// AWSConfig holds S3 configuration for image uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"public_url"`
}

// UploadsEnabled reports whether a bucket is configured
func (c *AWSConfig) UploadsEnabled() bool {
	return c.S3Bucket != ""
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// AuthConfig controls how API requests are authenticated
//
// Mode "disabled" lets every request through; "jwt" requires the Bearer
// token issued on profile creation.
type AuthConfig struct {
	Mode string `yaml:"mode"`
}

// Enabled returns true when JWT authentication is active
func (c *AuthConfig) Enabled() bool {
	return c.Mode == AuthModeJWT
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ClientConfig holds settings for the device-side sync client
type ClientConfig struct {
	ServerURL      string        `yaml:"server_url"`
	CachePath      string        `yaml:"cache_path"`
	Token          string        `yaml:"token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	OutboxInterval time.Duration `yaml:"outbox_interval"`
}

// EffectivePollInterval returns the poll interval clamped to MinPollInterval
func (c *ClientConfig) EffectivePollInterval() time.Duration {
	if c.PollInterval < MinPollInterval {
		return MinPollInterval
	}
	return c.PollInterval
}

// NewDefaultConfig returns a Config with defaults for local development
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "couple_notes",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Storage: StorageConfig{
			Driver: StorageDriverPostgres,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			CachePath:      "./couple-notes-cache.db",
			RequestTimeout: 15 * time.Second,
			PollInterval:   MinPollInterval,
			OutboxInterval: 10 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data = nil
	}

	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Driver, validation.Required,
			validation.In(StorageDriverPostgres, StorageDriverMemory)),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.Storage.Driver == StorageDriverPostgres {
		if err := validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Host, validation.Required),
			validation.Field(&c.Database.Port, validation.Required, validation.Min(1), validation.Max(65535)),
			validation.Field(&c.Database.DBName, validation.Required),
		); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.Mode, validation.In(AuthModeDisabled, AuthModeJWT)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.Auth.Enabled() && c.JWT.Secret == "" {
		return fmt.Errorf("auth: mode is %q but jwt.secret is empty", AuthModeJWT)
	}

	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Log.Format, validation.In("console", "json")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := validation.ValidateStruct(&c.Client,
		validation.Field(&c.Client.ServerURL, validation.Required),
		validation.Field(&c.Client.CachePath, validation.Required),
	); err != nil {
		return fmt.Errorf("client: %w", err)
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", c.MaxConns)
	}
	return dsn
}

// MigrateURL returns the database URL in the form golang-migrate's pgx/v5 driver expects
func (c *DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
