// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/stacman/internal/domain"
)

// EnvPrefix prefixes every environment variable, e.g. STACMAN_CATALOG_ID.
const EnvPrefix = "STACMAN"

// Config holds all application configuration.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Storage StorageConfig `mapstructure:"storage"`
	Sources SourcesConfig `mapstructure:"sources"`
	GDAL    GDALConfig    `mapstructure:"gdal"`
	Server  ServerConfig  `mapstructure:"server"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig describes the root catalog and how it is persisted.
type CatalogConfig struct {
	ID           string        `mapstructure:"id"`
	Title        string        `mapstructure:"title"`
	Description  string        `mapstructure:"description"`
	Layout       string        `mapstructure:"layout"` // self-contained, relative-published, absolute-published
	StrictLoad   bool          `mapstructure:"strict_load"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // nested catalog documents
}

// StorageConfig selects an object storage backend.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// SourcesConfig is the storage listed by sync. Extensions narrow the
// listing; empty means every supported format.
type SourcesConfig struct {
	StorageConfig `mapstructure:",squash"`
	Extensions    []string `mapstructure:"extensions"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// GDALConfig locates the GDAL tools and bounds their use.
type GDALConfig struct {
	InfoPath     string        `mapstructure:"info_path"`
	MDimInfoPath string        `mapstructure:"mdiminfo_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheSize    int           `mapstructure:"cache_size"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`

	// MetricsPath is copied from MetricsConfig when metrics are enabled.
	MetricsPath string `mapstructure:"-"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// SyncConfig controls periodic reconciliation with the sources storage.
type SyncConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Collection string        `mapstructure:"collection"`
}

// WatchConfig controls cataloging of local files as they change.
type WatchConfig struct {
	Paths      []string      `mapstructure:"paths"`
	Debounce   time.Duration `mapstructure:"debounce"`
	Recursive  bool          `mapstructure:"recursive"`
	Collection string        `mapstructure:"collection"`
	Autosave   bool          `mapstructure:"autosave"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Path        string `mapstructure:"path"`
	Namespace   string `mapstructure:"namespace"`
	PushGateway string `mapstructure:"push_gateway"` // one-shot commands push here when set
	Job         string `mapstructure:"job"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text, console
}

// Defaults sets the default configuration values.
func Defaults() {
	// Catalog defaults
	viper.SetDefault("catalog.layout", "self-contained")
	viper.SetDefault("catalog.strict_load", false)
	viper.SetDefault("catalog.fetch_timeout", 30*time.Second)

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./catalog")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	viper.SetDefault("sources.type", "local")
	viper.SetDefault("sources.local_path", "./data")
	viper.SetDefault("sources.http.index_file", "index.txt")
	viper.SetDefault("sources.http.timeout", 5*time.Minute)
	viper.SetDefault("sources.extensions", []string{})

	// GDAL defaults
	viper.SetDefault("gdal.info_path", "gdalinfo")
	viper.SetDefault("gdal.mdiminfo_path", "gdalmdiminfo")
	viper.SetDefault("gdal.timeout", 2*time.Minute)
	viper.SetDefault("gdal.cache_size", 512)

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Sync defaults
	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.interval", time.Hour)
	viper.SetDefault("sync.collection", "sources")

	// Watch defaults
	viper.SetDefault("watch.paths", []string{})
	viper.SetDefault("watch.debounce", 500*time.Millisecond)
	viper.SetDefault("watch.recursive", true)
	viper.SetDefault("watch.collection", "local")
	viper.SetDefault("watch.autosave", true)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "stacman")
	viper.SetDefault("metrics.job", "stacman")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/stacman")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Metrics.Enabled {
		cfg.Server.MetricsPath = cfg.Metrics.Path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}

	if _, err := domain.ParseCatalogType(c.Catalog.Layout); err != nil {
		return &domain.ConfigError{Field: "catalog.layout", Message: err.Error()}
	}

	if err := c.Storage.validate("storage"); err != nil {
		return err
	}
	if err := c.Sources.validate("sources"); err != nil {
		return err
	}

	if c.GDAL.Timeout <= 0 {
		return &domain.ConfigError{Field: "gdal.timeout", Message: "must be positive"}
	}
	if c.GDAL.CacheSize < 1 {
		return &domain.ConfigError{Field: "gdal.cache_size", Message: "must be at least 1"}
	}

	if c.Sync.Enabled {
		if c.Sync.Interval <= 0 {
			return &domain.ConfigError{Field: "sync.interval", Message: "must be positive"}
		}
		if c.Sync.Collection == "" {
			return &domain.ConfigError{Field: "sync.collection", Message: "is required"}
		}
	}
	if len(c.Watch.Paths) > 0 && c.Watch.Collection == "" {
		return &domain.ConfigError{Field: "watch.collection", Message: "is required"}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return &domain.ConfigError{Field: "metrics.path", Message: "must start with /"}
	}

	return nil
}

func (s *StorageConfig) validate(section string) error {
	switch s.Type {
	case "local":
		if s.LocalPath == "" {
			return &domain.ConfigError{Field: section + ".local_path", Message: "local storage path is required"}
		}
	case "s3":
		if s.S3.Bucket == "" {
			return &domain.ConfigError{Field: section + ".s3.bucket", Message: "S3 bucket is required"}
		}
		if s.S3.Region == "" {
			return &domain.ConfigError{Field: section + ".s3.region", Message: "S3 region is required"}
		}
	case "azure":
		if s.Azure.Container == "" {
			return &domain.ConfigError{Field: section + ".azure.container", Message: "azure container is required"}
		}
		if s.Azure.AccountName == "" && s.Azure.ConnectionString == "" {
			return &domain.ConfigError{Field: section + ".azure", Message: "account name or connection string is required"}
		}
	case "http":
		if s.HTTP.BaseURL == "" {
			return &domain.ConfigError{Field: section + ".http.base_url", Message: "HTTP base URL is required"}
		}
	default:
		return &domain.ConfigError{Field: section + ".type", Message: fmt.Sprintf("unknown storage type %q", s.Type)}
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
