package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/stacman/internal/domain"
)

func loadFrom(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return Load(path)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFrom(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Catalog.Layout != "self-contained" {
		t.Errorf("layout = %q", cfg.Catalog.Layout)
	}
	if cfg.Storage.Type != "local" || cfg.Storage.LocalPath != "./catalog" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Sources.Type != "local" || cfg.Sources.LocalPath != "./data" {
		t.Errorf("sources = %+v", cfg.Sources.StorageConfig)
	}
	if cfg.GDAL.InfoPath != "gdalinfo" || cfg.GDAL.Timeout != 2*time.Minute || cfg.GDAL.CacheSize != 512 {
		t.Errorf("gdal = %+v", cfg.GDAL)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("address = %q", cfg.Server.Address())
	}
	if cfg.Server.MetricsPath != "/metrics" {
		t.Errorf("metrics path = %q", cfg.Server.MetricsPath)
	}
	if cfg.Sync.Enabled || cfg.Watch.Collection != "local" || !cfg.Watch.Autosave {
		t.Errorf("sync = %+v, watch = %+v", cfg.Sync, cfg.Watch)
	}
	if cfg.Server.CORS.Enabled() {
		t.Error("CORS should be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := loadFrom(t, `
catalog:
  id: elevation
  layout: absolute_published
  strict_load: true
sources:
  type: s3
  s3:
    bucket: rasters
    region: eu-central-1
    prefix: dem/
  extensions: [.tif, .vrt]
sync:
  enabled: true
  interval: 15m
  collection: dem
server:
  port: 9090
  cors:
    allowed_origins: ["https://maps.example.com"]
metrics:
  enabled: false
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Catalog.ID != "elevation" || !cfg.Catalog.StrictLoad {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Sources.Type != "s3" || cfg.Sources.S3.Bucket != "rasters" || cfg.Sources.S3.Prefix != "dem/" {
		t.Errorf("sources = %+v", cfg.Sources.StorageConfig)
	}
	if len(cfg.Sources.Extensions) != 2 || cfg.Sources.Extensions[1] != ".vrt" {
		t.Errorf("extensions = %v", cfg.Sources.Extensions)
	}
	if cfg.Sync.Interval != 15*time.Minute || cfg.Sync.Collection != "dem" {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.CORS.Enabled() {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.MetricsPath != "" {
		t.Errorf("metrics path = %q, want empty when disabled", cfg.Server.MetricsPath)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("STACMAN_CATALOG_TITLE", "From env")
	t.Setenv("STACMAN_LOGGING_LEVEL", "debug")

	cfg, err := loadFrom(t, "catalog:\n  title: From file\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.Title != "From env" {
		t.Errorf("title = %q, want the environment to win", cfg.Catalog.Title)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for an explicit missing file")
	}
}

func validConfig() Config {
	return Config{
		Catalog: CatalogConfig{Layout: "self-contained"},
		Storage: StorageConfig{Type: "local", LocalPath: "./catalog"},
		Sources: SourcesConfig{StorageConfig: StorageConfig{Type: "local", LocalPath: "./data"}},
		GDAL:    GDALConfig{Timeout: time.Minute, CacheSize: 16},
		Server:  ServerConfig{Port: 8080},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"layout", func(c *Config) { c.Catalog.Layout = "published" }, "catalog.layout"},
		{"storage type", func(c *Config) { c.Storage.Type = "ftp" }, "storage.type"},
		{"s3 bucket", func(c *Config) { c.Sources.Type = "s3" }, "sources.s3.bucket"},
		{"s3 region", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Bucket = "b"
		}, "storage.s3.region"},
		{"azure container", func(c *Config) { c.Storage.Type = "azure" }, "storage.azure.container"},
		{"azure account", func(c *Config) {
			c.Storage.Type = "azure"
			c.Storage.Azure.Container = "stac"
		}, "storage.azure"},
		{"http base url", func(c *Config) { c.Sources.Type = "http" }, "sources.http.base_url"},
		{"local path", func(c *Config) { c.Storage.LocalPath = "" }, "storage.local_path"},
		{"gdal timeout", func(c *Config) { c.GDAL.Timeout = 0 }, "gdal.timeout"},
		{"cache size", func(c *Config) { c.GDAL.CacheSize = 0 }, "gdal.cache_size"},
		{"sync interval", func(c *Config) {
			c.Sync.Enabled = true
			c.Sync.Collection = "s"
		}, "sync.interval"},
		{"sync collection", func(c *Config) {
			c.Sync.Enabled = true
			c.Sync.Interval = time.Minute
		}, "sync.collection"},
		{"watch collection", func(c *Config) { c.Watch.Paths = []string{"/data"} }, "watch.collection"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Error("ConfigError should match ErrInvalidInput")
			}
		})
	}
}
