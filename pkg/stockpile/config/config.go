// Package config loads service configuration from the environment and an
// optional .env / config.env file through viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
	DriverS3       = "s3"
	DriverPostgres = "postgres"
)

// Config groups the service settings.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Storage StorageConfig
	JWT     JWTConfig
	Admin   AdminConfig
}

// AppConfig holds general settings.
type AppConfig struct {
	Env      string // development, staging, production
	LogLevel string
}

// HTTPConfig is the listen address.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects and configures the snapshot backing.
type StorageConfig struct {
	Driver      string
	DataDir     string
	SQLitePath  string
	BoltPath    string
	DatabaseURL string
	S3          S3Config
}

// S3Config configures the S3 backing.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
	// Static credentials; the default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// JWTConfig configures session tokens.
type JWTConfig struct {
	Secret     string
	Expiration int // minutes
	Issuer     string
}

// AdminConfig is the bootstrap administrator account.
type AdminConfig struct {
	Username string
	Password string
}

// Load reads configuration. Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.MergeInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
			DataDir:     v.GetString("DATA_DIR"),
			SQLitePath:  v.GetString("SQLITE_PATH"),
			BoltPath:    v.GetString("BOLT_PATH"),
			DatabaseURL: v.GetString("DATABASE_URL"),
			S3: S3Config{
				Bucket:    v.GetString("S3_BUCKET"),
				Region:    v.GetString("S3_REGION"),
				Endpoint:  v.GetString("S3_ENDPOINT"),
				Prefix:    v.GetString("S3_PREFIX"),
				PathStyle: v.GetBool("S3_PATH_STYLE"),

				AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
				SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			},
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: v.GetInt("JWT_EXPIRATION_MINUTES"),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		Admin: AdminConfig{
			Username: v.GetString("ADMIN_USERNAME"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 5000)
	v.SetDefault("STORAGE_DRIVER", DriverFile)
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("SQLITE_PATH", "data/stockpile.db")
	v.SetDefault("BOLT_PATH", "data/stockpile.bolt")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "stockpile/")
	v.SetDefault("JWT_EXPIRATION_MINUTES", 60*24)
	v.SetDefault("JWT_ISSUER", "stockpile")
	v.SetDefault("ADMIN_USERNAME", "admin")
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTP.Port)
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_MINUTES must be positive")
	}
	switch c.Storage.Driver {
	case DriverFile, DriverMemory, DriverSQLite, DriverBolt:
	case DriverS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.App.Env == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
