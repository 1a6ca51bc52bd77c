package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/stacman/internal/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	Long: `Serve a read-only browse API for the catalog. With sync enabled the
sources storage is reconciled periodically and on POST /api/v1/sync; with
watch paths configured new and changed files are cataloged as they appear.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

var watchCmd = &cobra.Command{
	Use:   "watch <path>...",
	Short: "Catalog files in local directories as they change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	f := serveCmd.Flags()
	f.String("host", "0.0.0.0", "server host")
	f.Int("port", 8080, "server port")
	f.StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")
	f.Bool("sync", false, "enable periodic sync with the sources storage")
	f.StringSlice("watch", nil, "local directories to watch")

	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	_ = viper.BindPFlag("server.cors.allowed_origins", f.Lookup("cors"))
	_ = viper.BindPFlag("sync.enabled", f.Lookup("sync"))
	_ = viper.BindPFlag("watch.paths", f.Lookup("watch"))

	watchCmd.Flags().String("collection", "local", "collection receiving the watched files")
	watchCmd.Flags().Bool("autosave", true, "save the catalog after every change")
	_ = viper.BindPFlag("watch.collection", watchCmd.Flags().Lookup("collection"))
	_ = viper.BindPFlag("watch.autosave", watchCmd.Flags().Lookup("autosave"))
}

func runServer(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	logger := a.Logger

	ctx, cancel := signalContext()
	defer cancel()

	server, err := a.Serve(ctx)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", a.Config.Server.Address())
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cancel()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runWatch(_ *cobra.Command, args []string) error {
	viper.Set("watch.paths", args)
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	w, err := a.NewWatcher()
	if err != nil {
		return fmt.Errorf("initializing watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.Logger.Info("watching for source changes", "paths", args, "collection", a.Config.Watch.Collection)

	<-ctx.Done()
	_ = w.Stop()

	if a.Manager.State() == domain.StateDirty {
		return a.Manager.Save(context.Background())
	}
	return nil
}
