package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/auth"
	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/config"
	"github.com/fragmede/shelf/internal/logging"
	"github.com/fragmede/shelf/internal/monitor"
	"github.com/fragmede/shelf/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.Fatalf("creating cache dir: %v", err)
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.LogLevel, cfg.LogFormat)

	db, err := cache.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening cache: %v", err)
	}
	defer db.Close()

	client, err := api.NewClient(cfg.BaseURL, cfg.RequestTimeout, logger.With("component", "api"))
	if err != nil {
		log.Fatalf("creating api client: %v", err)
	}

	bridge := ui.NewBridge(db, logger.With("component", "ui_bridge"))
	defer bridge.Close()

	coord := auth.NewCoordinator(cfg, client, client, db, bridge, bridge, logger)
	defer coord.Close()

	mon := monitor.New(cfg, client, coord.Store, db, bridge, bridge, logger.With("component", "sessions_monitor"))
	defer func() {
		mon.Stop()
		mon.Wait()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	warmUp(ctx, cfg, coord, mon, logger)

	app := ui.NewApp(coord, mon, db, logger.With("component", "ui"))
	p := tea.NewProgram(app, tea.WithAltScreen())
	bridge.Attach(p)
	mon.Attach(p)
	unsubscribe := coord.Store.Subscribe(bridge.Observe)
	defer unsubscribe()
	// Pick up anything that changed between building the app and subscribing.
	bridge.Observe(coord.Store.Read())

	logger.Info("starting", "api", cfg.BaseURL, "authenticated", coord.Store.Read().IsAuthenticated)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// warmUp restores the persisted session, then verifies it and prefetches the
// session list concurrently. Notifications raised here wait in the bridge
// until the program attaches.
func warmUp(ctx context.Context, cfg config.Config, coord *auth.Coordinator, mon *monitor.Monitor, logger *slog.Logger) {
	if !coord.Start(ctx) {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(wctx)
	g.Go(func() error {
		res := coord.VerifyRestored(gctx)
		logger.Info("restored session verified", "success", res.Success, "kind", res.Kind)
		return nil
	})
	g.Go(func() error {
		if _, err := mon.Refresh(gctx); err != nil {
			logger.Warn("prefetching sessions", "error", err)
		}
		return nil
	})
	g.Wait()
}
