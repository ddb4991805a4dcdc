// Package main - entry point for the phlock core API server.
//
// The server exposes the follow graph and phlock roster over a REST API.
// Writes go through the command handlers (single transactional path per
// operation), reads go through the query handlers backed by the bounded
// Redis caches. Deferred swap cutover runs in the worker binary, not
// here.
//
// Architecture follows Clean Architecture and DDD:
// - Domain: pure business logic without external dependencies
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: repositories, caches, external APIs
// - Interface: HTTP handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/phlock-app/phlock-core/config"

	// Application layer
	"github.com/phlock-app/phlock-core/internal/application/command"
	"github.com/phlock-app/phlock-core/internal/application/query"

	// Infrastructure layer
	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/phlock"
	"github.com/phlock-app/phlock-core/internal/infrastructure/external/platform"
	"github.com/phlock-app/phlock-core/internal/infrastructure/messaging"
	"github.com/phlock-app/phlock-core/internal/infrastructure/persistence/postgres"
	"github.com/phlock-app/phlock-core/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/phlock-app/phlock-core/internal/interface/http"

	// Packages
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
	// .env is optional; real deployments inject environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: true,
	})
	slogLog := setupSlog(cfg)

	log.Info("starting phlock core API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("version", cfg.App.Version),
	)

	clock := timeutil.NewSystemClock(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL (or DB_HOST/DB_USER) is required")
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

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	txManager := postgres.NewTxManager(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional; reads fall through to the store without it)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache  *redis.Cache
		listCache   graph.ListCache    = redis.NoopListCache{}
		memberCache phlock.MemberCache = redis.NoopMemberCache{}
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			listCache = redis.NewListCache(redisCache, log)
			memberCache = redis.NewMemberCache(redisCache, log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	edgeRepo := postgres.NewEdgeRepository(dbConn)
	requestRepo := postgres.NewRequestRepository(dbConn)
	phlockRepo := postgres.NewPhlockRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)
	swapRepo := postgres.NewSwapRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	platformCfg := platform.DefaultClientConfig(cfg.Platform.BaseURL)
	platformCfg.APIKey = cfg.Platform.APIKey
	platformCfg.Timeout = cfg.Platform.RequestTimeout
	platformCfg.RateLimiterConfig.RequestsPerSecond = float64(cfg.Platform.RateLimit)
	platformCfg.RateLimiterConfig.BurstSize = cfg.Platform.RateLimitBurst
	platformCfg.Logger = log
	platformClient := platform.NewClient(platformCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = slogLog
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcher := messaging.NewNotificationDispatcher(platformClient, log)
	if err := dispatcher.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register notification dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	followCmd := command.NewFollowUserHandler(edgeRepo, requestRepo, platformClient, listCache, txManager, eventBus, clock)
	unfollowCmd := command.NewUnfollowUserHandler(edgeRepo, phlockRepo, historyRepo, listCache, memberCache, txManager, eventBus, clock)
	requestCmd := command.NewRequestLifecycleHandler(requestRepo, edgeRepo, listCache, txManager, eventBus, clock)
	addMemberCmd := command.NewAddPhlockMemberHandler(phlockRepo, historyRepo, memberCache, txManager, eventBus, clock)
	removeMemberCmd := command.NewRemovePhlockMemberHandler(phlockRepo, historyRepo, memberCache, txManager, eventBus, clock)
	reorderCmd := command.NewReorderPhlockHandler(edgeRepo, phlockRepo, historyRepo, memberCache, txManager, eventBus, clock)
	swapCmd := command.NewSwapPhlockMemberHandler(edgeRepo, phlockRepo, historyRepo, swapRepo, memberCache, platformClient, txManager, eventBus, clock)

	followListQuery := query.NewFollowListHandler(edgeRepo, listCache, platformClient)
	relationshipQuery := query.NewRelationshipStatusHandler(edgeRepo, requestRepo)
	pendingQuery := query.NewPendingRequestsHandler(requestRepo)
	requestQuery := query.NewFollowRequestHandler(requestRepo)
	mutualsQuery := query.NewMutualFollowsHandler(followListQuery)
	membersQuery := query.NewPhlockMembersHandler(phlockRepo, memberCache)
	removalsQuery := query.NewScheduledRemovalsHandler(swapRepo)
	reachQuery := query.NewReachHandler(edgeRepo, historyRepo)
	viralityQuery := query.NewViralityHandler()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		FollowUser:       followCmd,
		UnfollowUser:     unfollowCmd,
		RequestLifecycle: requestCmd,
		AddMember:        addMemberCmd,
		RemoveMember:     removeMemberCmd,
		ReorderPhlock:    reorderCmd,
		SwapMember:       swapCmd,

		RelationshipStatus: relationshipQuery,
		PendingRequests:    pendingQuery,
		FollowRequest:      requestQuery,
		FollowList:         followListQuery,
		MutualFollows:      mutualsQuery,
		PhlockMembers:      membersQuery,
		ScheduledRemovals:  removalsQuery,
		Reach:              reachQuery,
		Virality:           viralityQuery,

		Logger:        log,
		HealthChecker: &dependencyHealth{db: dbConn, cache: redisCache},
	}

	server := httpserver.NewServer(httpCfg, httpDeps)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", server.Address()))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// setupSlog builds the slog logger used by infrastructure components
// that predate pkg/logger.
func setupSlog(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// dependencyHealth reports database and cache health for /health.
type dependencyHealth struct {
	db    *postgres.Connection
	cache *redis.Cache
}

func (h *dependencyHealth) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy:    true,
		Components: map[string]string{},
	}

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Message = "database unreachable"
		status.Components["postgres"] = err.Error()
	} else {
		status.Components["postgres"] = "ok"
	}

	// Cache is best effort: the API stays healthy without it.
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status.Components["redis"] = err.Error()
		} else {
			status.Components["redis"] = "ok"
		}
	}

	return status
}
