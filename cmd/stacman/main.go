// Package main provides the entry point for the stacman STAC catalog builder.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/stacman/internal/adapters/logging"
	"github.com/jobrunner/stacman/internal/app"
	"github.com/jobrunner/stacman/internal/config"
	"github.com/jobrunner/stacman/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stacman",
	Short: "stacman - STAC catalog builder",
	Long: `stacman builds and maintains static STAC catalogs.

It extracts spatial and temporal metadata from geospatial sources and
keeps a catalog of collections and items in sync with them.

Features:
  - GeoTIFF rasters, VRT mosaics, NetCDF arrays, GeoPackages and nested
    STAC catalogs as sources
  - Self-contained, relative and absolute published layouts
  - Catalog storage on local disk, AWS S3 or Azure Blob Storage
  - Sync with a source bucket and auto-ingest of watched directories
  - Read-only browse API with Prometheus metrics`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("stacman %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (json, text, console)")
	flags.String("root", "./catalog", "local directory holding catalog.json")
	flags.String("layout", "self-contained", "catalog layout (self-contained, relative-published, absolute-published)")
	flags.Bool("strict", false, "fail instead of starting over when the catalog cannot be read")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("storage.local_path", flags.Lookup("root"))
	_ = viper.BindPFlag("catalog.layout", flags.Lookup("layout"))
	_ = viper.BindPFlag("catalog.strict_load", flags.Lookup("strict"))

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		describeCmd,
		formatsCmd,
		collectionCmd,
		itemCmd,
		ingestCmd,
		syncCmd,
		watchCmd,
		serveCmd,
	)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads the configuration, builds the logger and opens the catalog.
func setup() (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, os.Stderr)
	slog.SetDefault(logger)

	logger.Debug("starting stacman",
		"version", version,
		"storage_type", cfg.Storage.Type,
		"layout", cfg.Catalog.Layout,
	)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// oneShot runs fn against the catalog, saves when fn changed it and pushes
// metrics when a gateway is configured.
func oneShot(fn func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		defer a.PushMetrics(context.Background())

		if err := fn(ctx, a, cmd, args); err != nil {
			return err
		}
		if a.Manager.State() != domain.StateDirty {
			return nil
		}
		return a.Manager.Save(ctx)
	}
}
