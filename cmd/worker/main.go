// Package main - entry point for the phlock core background worker.
//
// The worker owns the deferred swap cutover: it scans the durable
// scheduled-swap table on a short interval and applies every row whose
// midnight has arrived. The scan is idempotent and at-least-once, so
// running a single worker alongside the API server is enough; a crashed
// scan is simply retried on the next tick.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/phlock-app/phlock-core/config"
	"github.com/phlock-app/phlock-core/internal/application/command"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/infrastructure/messaging"
	"github.com/phlock-app/phlock-core/internal/infrastructure/persistence/postgres"
	"github.com/phlock-app/phlock-core/internal/infrastructure/persistence/redis"
	"github.com/phlock-app/phlock-core/internal/infrastructure/scheduler"
	"github.com/phlock-app/phlock-core/internal/infrastructure/scheduler/jobs"
	"github.com/phlock-app/phlock-core/pkg/logger"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled; nothing for the worker to do")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: true,
	})

	slogLevel := slog.LevelInfo
	if cfg.App.Debug {
		slogLevel = slog.LevelDebug
	}
	slogLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))

	log.Info("starting phlock core worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
		logger.Duration("swap_scan_interval", cfg.Scheduler.SwapScanInterval),
	)

	clock := timeutil.NewSystemClock(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL (or DB_HOST/DB_USER) is required")
	}

	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// Migrations belong to the API server; the worker only assumes the
	// schema already exists.
	txManager := postgres.NewTxManager(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var memberCache phlock.MemberCache = redis.NoopMemberCache{}

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, cutover will rely on TTL expiry", logger.Err(err))
		} else {
			defer redisCache.Close()
			memberCache = redis.NewMemberCache(redisCache, log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES AND EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	phlockRepo := postgres.NewPhlockRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)
	swapRepo := postgres.NewSwapRepository(dbConn)

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = slogLog
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	applier := command.NewApplyDueSwapsHandler(
		phlockRepo, historyRepo, swapRepo, memberCache,
		txManager, eventBus, clock, log,
	)

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        slogLog,
		Timezone:      cfg.App.Location,
		EnableMetrics: true,
	})

	swapJob := jobs.NewApplyDueSwapsJob(applier)
	if err := sched.Register(swapJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SwapScanInterval)); err != nil {
		return fmt.Errorf("failed to register swap cutover job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	log.Info("stopping scheduler...")
	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown complete")
	return nil
}
