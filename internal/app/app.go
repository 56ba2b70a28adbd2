package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Terrance/Davendar/internal/collection"
	"github.com/Terrance/Davendar/internal/config"
	"github.com/Terrance/Davendar/internal/httpserver"
	"github.com/Terrance/Davendar/internal/httpserver/deps"
	"github.com/Terrance/Davendar/internal/logger"
	"github.com/Terrance/Davendar/internal/quickadd"
	"github.com/Terrance/Davendar/internal/version"
	"github.com/Terrance/Davendar/internal/watcher"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	coll       *collection.Collection
	reconciler *watcher.Reconciler
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		loggerClient.Errorf("Failed to resolve root %s: %v", cfg.Root, err)
		os.Exit(1)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		loggerClient.Errorf("Collection root %s is not a directory", root)
		os.Exit(1)
	}

	// Initialize the in-memory index; the watch reconciler populates it.
	coll := collection.New(root, cfg.Location, loggerClient, cfg.ScanWorkers)
	reconciler := watcher.New(coll, loggerClient)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:     loggerClient,
		StartTime:  time.Now(),
		Version:    version.Version,
		Commit:     version.Commit,
		BuildDate:  version.BuildDate,
		GoVersion:  version.GoVersion,
		TimeNow:    time.Now,
		Collection: coll,
		Dates:      quickadd.NewNaturalParser(cfg.Location),
		Location:   cfg.Location,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     server,
		coll:       coll,
		reconciler: reconciler,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Davendar v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Davendar %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	a.logger.Info("watching collection",
		logger.String("root", a.coll.Path()),
		logger.String("timezone", a.cfg.Timezone))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the watch reconciler (registers watches, scans, then follows
	// filesystem changes).
	if err := a.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watch reconciler: %w", err)
	}
	a.logger.Info("watch reconciler started",
		logger.Int("calendars", len(a.coll.Calendars())))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
		a.reconciler.Stop()
	case err := <-a.reconciler.Err():
		// Watch-subsystem failures are not recoverable locally; surface them
		// to the supervisor.
		return fmt.Errorf("watch reconciler failed: %w", err)
	case err := <-errCh:
		a.reconciler.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ Davendar stopped cleanly")
	return nil
}
