// Package main contains the entrypoint for the GroupWarden console and
// webhook receiver.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmelo/groupwarden/internal/bot"
	"github.com/dmelo/groupwarden/internal/bot/tasks"
	"github.com/dmelo/groupwarden/internal/config"
	"github.com/dmelo/groupwarden/internal/database"
	"github.com/dmelo/groupwarden/internal/logger"
	"github.com/dmelo/groupwarden/internal/platform"
	"github.com/dmelo/groupwarden/internal/server"

	_ "modernc.org/sqlite"
)

const auditQueueCapacity = 256

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component together and blocks until shutdown. It
// returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	cache := bot.NewConfigCache(store, cfg.CacheTTL(), log)
	audit := bot.NewAuditWriter(store, auditQueueCapacity, log)
	factory := platform.NewTelegramFactory(log)
	manager := bot.NewManager(store, cache, audit, factory, cfg.Webhook.Domain, log)

	taskDeps := tasks.TaskDeps{
		Logger:        log,
		Store:         store,
		RetentionDays: cfg.Retention.Days,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(taskDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	srv := server.New(cfg, store, cache, manager, log)

	// A stored token means the bot was live before the last restart;
	// bring it back without waiting for a console visit.
	if err := manager.Resume(ctx); err != nil {
		log.Warn("Could not resume bot session, console start required", "error", err)
	}

	if err := sched.Start(); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return audit.Run(gctx)
	})

	log.Info("GroupWarden started")
	runErr := g.Wait()

	if err := sched.Stop(); err != nil {
		log.Warn("Scheduler shutdown reported error", "error", err)
	}
	if err := manager.Stop(context.Background()); err != nil && !errors.Is(err, bot.ErrNoSession) {
		log.Warn("Session shutdown reported error", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Stopped gracefully")
	return 0
}
