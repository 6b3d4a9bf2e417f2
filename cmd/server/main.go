// Stratix Workflow Engine server - durable workflow execution, scheduling,
// distributed locking, and crash recovery.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stratix/workflow-engine/internal/application/engine"
	"github.com/stratix/workflow-engine/internal/application/observer"
	"github.com/stratix/workflow-engine/internal/application/recovery"
	"github.com/stratix/workflow-engine/internal/application/scheduler"
	"github.com/stratix/workflow-engine/internal/application/serviceapi"
	"github.com/stratix/workflow-engine/internal/config"
	"github.com/stratix/workflow-engine/internal/infrastructure/cache"
	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
	"github.com/stratix/workflow-engine/internal/infrastructure/storage"
	"github.com/stratix/workflow-engine/migrations"
	"github.com/stratix/workflow-engine/pkg/executor"
	"github.com/stratix/workflow-engine/pkg/executor/builtin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("starting workflow engine",
		"version", "1.0.0",
		"port", cfg.Server.Port,
	)

	dbConfig := &storage.Config{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MinConnections,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		ConnMaxIdleTime: cfg.Database.MaxIdleTime,
		Debug:           cfg.Logging.Level == "debug",
	}

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		appLogger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	migrator, err := storage.NewMigrator(db, migrations.FS)
	if err != nil {
		appLogger.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	if err := migrator.Init(context.Background()); err != nil {
		appLogger.Error("failed to initialize migration tables", "error", err)
		os.Exit(1)
	}
	if err := migrator.Up(context.Background()); err != nil {
		appLogger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	appLogger.Info("database connected", "max_conns", cfg.Database.MaxConnections)

	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		appLogger.Warn("failed to initialize redis cache, continuing without it", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
		appLogger.Info("redis cache connected")
	}

	executorManager := executor.NewManager()
	if err := builtin.RegisterBuiltins(executorManager); err != nil {
		appLogger.Error("failed to register built-in executors", "error", err)
		os.Exit(1)
	}
	appLogger.Info("registered executors", "types", executorManager.List())

	observerManager := observer.NewObserverManager(
		observer.WithLogger(appLogger),
		observer.WithBufferSize(cfg.Observer.BufferSize),
		observer.WithMaxListeners(cfg.Observer.MaxListeners),
	)

	workflowRepo := storage.NewWorkflowRepository(db)
	executionRepo := storage.NewExecutionRepository(db)
	scheduleRepo := storage.NewScheduleRepository(db)
	lockRepo := storage.NewLockRepository(db)

	if cfg.Observer.EnableDatabase {
		if err := observerManager.Register(observer.NewDatabaseObserver(executionRepo)); err != nil {
			appLogger.Error("failed to register database observer", "error", err)
		} else {
			appLogger.Info("database observer registered")
		}
	}
	if cfg.Observer.EnableLogger {
		if err := observerManager.Register(observer.NewLoggerObserver(observer.WithLoggerInstance(appLogger))); err != nil {
			appLogger.Error("failed to register logger observer", "error", err)
		} else {
			appLogger.Info("logger observer registered")
		}
	}

	appLogger.Info("repositories initialized")

	executionMgr := engine.NewExecutionManager(
		executorManager,
		workflowRepo,
		executionRepo,
		lockRepo,
		observerManager,
	)
	executionMgr.InstanceLockTTL = cfg.Lock.InstanceLockTTL
	executionMgr.HeartbeatInterval = cfg.Engine.HeartbeatInterval

	appLogger.Info("execution engine initialized", "engine_id", executionMgr.EngineID)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{
			ScheduleRepo:  scheduleRepo,
			ExecutionRepo: executionRepo,
			LockRepo:      lockRepo,
			ExecutionMgr:  executionMgr,
			Cache:         redisCache,
			Logger:        appLogger,
			EngineID:      executionMgr.EngineID,
			LeaderLockTTL: cfg.Scheduler.LeaderLockTTL,
		})
		sched.Start(context.Background())
		appLogger.Info("scheduler started")
	}

	var recoverySvc *recovery.Service
	if cfg.Recovery.Enabled {
		recoverySvc = recovery.New(recovery.Config{
			ExecutionRepo:    executionRepo,
			LockRepo:         lockRepo,
			ExecutionMgr:     executionMgr,
			ObserverManager:  observerManager,
			Logger:           appLogger,
			EngineID:         executionMgr.EngineID,
			ScanInterval:     cfg.Recovery.ScanInterval,
			HeartbeatTimeout: cfg.Recovery.HeartbeatTimeout,
		})
		recoveryCtx, cancelRecovery := context.WithCancel(context.Background())
		defer cancelRecovery()
		recoverySvc.Start(recoveryCtx)
		appLogger.Info("recovery service started")
	}

	// Operations is the transport-agnostic Control API surface. No HTTP/gRPC
	// transport ships (out of scope); an embedding caller wires its own
	// transport against this struct.
	ops := &serviceapi.Operations{
		WorkflowRepo:    workflowRepo,
		ExecutionRepo:   executionRepo,
		ScheduleRepo:    scheduleRepo,
		LockRepo:        lockRepo,
		ExecutionMgr:    executionMgr,
		ExecutorManager: executorManager,
		Logger:          appLogger,
	}
	if sched != nil {
		ops.Scheduler = sched
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := storage.Ping(ctx, db); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  fmt.Sprintf("database: %s", err.Error()),
			})
			return
		}
		if redisCache != nil {
			if err := redisCache.Health(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  fmt.Sprintf("redis: %s", err.Error()),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		dbStats := storage.Stats(db)
		metrics := map[string]any{
			"database": map[string]any{
				"open_connections": dbStats.OpenConnections,
				"in_use":           dbStats.InUse,
				"idle":             dbStats.Idle,
				"max_open_conns":   dbStats.MaxOpenConnections,
			},
		}
		if redisCache != nil {
			cacheStats := redisCache.Stats()
			metrics["redis"] = map[string]any{
				"hits":        cacheStats.Hits,
				"misses":      cacheStats.Misses,
				"total_conns": cacheStats.TotalConns,
				"idle_conns":  cacheStats.IdleConns,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("health server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error("server error", "error", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		appLogger.Info("shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if recoverySvc != nil {
			recoverySvc.Stop()
			appLogger.Info("recovery service stopped")
		}
		if sched != nil {
			sched.Stop()
			appLogger.Info("scheduler stopped")
		}

		if err := server.Shutdown(ctx); err != nil {
			appLogger.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				appLogger.Error("server close failed", "error", err)
			}
		}

		appLogger.Info("server stopped")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
