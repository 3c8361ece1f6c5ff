package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/piholestats/pihole-sqlite-exporter/internal/config"
	"github.com/piholestats/pihole-sqlite-exporter/internal/exporter"
	"github.com/piholestats/pihole-sqlite-exporter/internal/scraper"
	"github.com/piholestats/pihole-sqlite-exporter/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("pihole-sqlite-exporter starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"listen", cfg.Exporter.ListenAddress(),
		"ftl_db", cfg.Exporter.FTLDBPath,
		"gravity_db", cfg.Exporter.GravityDBPath,
		"scrape_interval", cfg.Exporter.ScrapeInterval,
		"top_n", cfg.Exporter.TopN,
		"timezone", cfg.Exporter.Timezone,
		"lifetime_destinations", cfg.Exporter.LifetimeDestinations,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	holder := &snapshot.Holder{}
	engine := scraper.New(&cfg.Exporter, holder)

	// Watch the config file for hot-reload; the engine picks up the
	// reloadable fields on its next cycle. Interval and listen address
	// changes still require a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			engine.ApplyConfig(&updated.Exporter)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Background scrape loop on its own goroutine, isolated from request
	// handling. An unreadable database is not fatal here: the first cycle
	// records a failure and /healthz stays red until the store recovers.
	sched := scraper.NewScheduler(engine, cfg.Exporter.ScrapeInterval)
	go sched.Run(ctx)

	handler := exporter.NewHandler(holder, engine)
	srv := &http.Server{
		Addr:              cfg.Exporter.ListenAddress(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("pihole-sqlite-exporter shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}
