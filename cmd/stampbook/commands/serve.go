package commands

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stampbook/stampbook/config"
	"github.com/stampbook/stampbook/db"
	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/google"
	"github.com/stampbook/stampbook/importer"
	"github.com/stampbook/stampbook/logger"
	"github.com/stampbook/stampbook/notify"
	"github.com/stampbook/stampbook/server"
)

// ConfigPath is set by the root command's --config flag.
var ConfigPath string

// ServeCmd starts the HTTP API server and the background job runner
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the stampbook API server",
	Long:    `Start the HTTP API server together with the background import job runner. Shuts down gracefully on SIGINT/SIGTERM, letting in-flight jobs persist their state.`,
	RunE:    runServe,
}

func loadConfig() (*config.Config, error) {
	if ConfigPath != "" {
		return config.LoadFromFile(ConfigPath)
	}
	return config.Load()
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	log := logger.Named("db")
	database, err := db.OpenWithMigrations(cfg.Database.Path, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	return database, nil
}

func newOrchestrator(cfg *config.Config, store *importer.Store, googleSvc *google.Service, notifier notify.Notifier) *importer.Orchestrator {
	return importer.NewOrchestrator(store, googleSvc, nil, notifier, importer.Options{
		MaxEmails:        cfg.Import.MaxEmails,
		MaxEvents:        cfg.Import.MaxEvents,
		YearsBack:        cfg.Import.YearsBack,
		ResultTTL:        time.Duration(cfg.Import.ResultTTLHours) * time.Hour,
		ProgressInterval: time.Duration(cfg.Import.ProgressIntervalSeconds) * time.Second,
		UseNER:           cfg.Import.UseNER,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := importer.NewStore(database)
	googleSvc := google.NewService(cfg.Google, google.NewTokenStore(database))

	var notifier notify.Notifier = notify.Nop{}
	if cfg.APNs.Configured() {
		notifier = notify.NewAPNs(cfg.APNs, store)
	} else {
		logger.Infow("APNs not configured, push notifications disabled")
	}

	orchestrator := newOrchestrator(cfg, store, googleSvc, notifier)
	runner := importer.NewRunner(store, orchestrator)

	srv := server.New(cfg, store, runner, orchestrator, googleSvc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infow("Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
		return nil
	}

	runner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown failed")
	}

	logger.Infow("Server stopped")
	return nil
}
