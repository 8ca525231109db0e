package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"signalwatcher/infrastructure/config"
	"signalwatcher/infrastructure/di"
	"signalwatcher/infrastructure/persistence/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appName = "signal-watcher"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Signal Watcher API",
		Long:          "Signal Watcher keeps watchlists of terms, records security events and analyzes them with an AI provider.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CONFIG_FILE", configPath)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the demo watchlist and events",
			RunE: func(cmd *cobra.Command, args []string) error {
				return seed(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context())
			},
		},
	)

	return cmd
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()

	logger := container.Logger

	if cfg.SeedDemoData {
		if _, err := container.Seeder.Seed(ctx); err != nil {
			logger.Error("Seeding demo data failed", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("goVersion", runtime.Version()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err, ok := <-serverErr:
		if ok {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

func seed(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()

	if cfg.Database.URL == "" {
		container.Logger.Warn("DATABASE_URL not set, seeded data lives only for this process")
	}

	result, err := container.Seeder.Seed(ctx)
	if err != nil {
		return err
	}

	container.Logger.Info("Seed completed",
		zap.String("watchlistId", result.WatchlistID),
		zap.Int("termsAdded", result.TermsAdded),
		zap.Int("events", len(result.EventIDs)),
	)
	return nil
}

func migrate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	level, err := di.ProvideLogLevel(cfg)
	if err != nil {
		return err
	}
	logger, syncLogger, err := di.ProvideLogger(cfg, level)
	if err != nil {
		return err
	}
	defer syncLogger()

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{MaxOpenConns: cfg.Database.MaxOpenConns}, logger.Named("db"), nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db, logger.Named("db")); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Migrations applied")
	return nil
}
