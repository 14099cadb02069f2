package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/hippocampus/internal/config"
	"github.com/lazypower/hippocampus/internal/engine"
	"github.com/lazypower/hippocampus/internal/server"
	"github.com/lazypower/hippocampus/internal/sweeper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "override the configured port")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (using defaults)\n", err)
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	params, err := cfg.Compaction.Params()
	if err != nil {
		return fmt.Errorf("compaction config: %w", err)
	}
	eng, err := engine.New(params)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sweeper.Enabled {
		sw, err := sweeper.New(db, cfg.Sweeper.Schedule, cfg.Sweeper.KeepDays, logger)
		if err != nil {
			return err
		}
		if err := sw.Start(ctx); err != nil {
			return err
		}
		defer sw.Stop()
	}

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(db, eng, logger, VersionString()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hippocampus serving", "addr", addr, "db", db.Path, "config", path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
