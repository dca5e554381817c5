// Command linc-permd runs the LINC permission service: role administration,
// per-user permission compilation and the authorization API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/schuttebj/linc-backend/pkg/api"
	"github.com/schuttebj/linc-backend/pkg/audit"
	"github.com/schuttebj/linc-backend/pkg/config"
	"github.com/schuttebj/linc-backend/pkg/httputil"
	"github.com/schuttebj/linc-backend/pkg/observability"
	"github.com/schuttebj/linc-backend/pkg/permissions"
	"github.com/schuttebj/linc-backend/pkg/permissions/cache"
	"github.com/schuttebj/linc-backend/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("cache_backend", cfg.Cache.Backend).Info("Starting linc-permd")

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	metrics.CollectDBStats(db)

	roleStore := postgres.NewRoleStore(db)
	assignmentStore := postgres.NewAssignmentStore(db)
	geoStore := postgres.NewGeographyStore(db)

	store, redisCache, err := buildCache(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize permission cache")
		os.Exit(1)
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	trail, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit trail")
		os.Exit(1)
	}

	engine := permissions.NewEngine(permissions.EngineConfig{
		Registry:       roleStore,
		Assignments:    assignmentStore,
		Geography:      geoStore,
		Cache:          store,
		Audit:          trail,
		TTL:            cfg.Engine.CacheTTL,
		CompileTimeout: cfg.Engine.CompileTimeout,
		Logger:         logger,
		Metrics:        metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Seed.File != "" {
		seeder := permissions.NewSeeder(roleStore, logger)
		if err := seeder.ApplyFile(ctx, cfg.Seed.File); err != nil {
			logger.WithError(err).WithField("file", cfg.Seed.File).Error("Failed to apply role seed file")
			os.Exit(1)
		}
		if cfg.Seed.Watch {
			go func() {
				if err := seeder.Watch(ctx, cfg.Seed.File); err != nil {
					logger.WithError(err).Error("Role seed watcher stopped")
				}
			}()
		}
	}

	scheduler := startAuditCleanup(ctx, cfg, trail, logger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	guard := permissions.NewMiddleware(engine)
	handlers := api.NewHandlers(engine, roleStore, trail, logger)

	router := mux.NewRouter()
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(apiRouter, guard)

	chain := httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.IdentityMiddleware,
		httputil.LoggingMiddleware(logger),
	)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      chain(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := buildHealthServer(cfg, db, redisCache, registry)

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.WithError(err).Error("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server shutdown did not complete cleanly")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Health server shutdown did not complete cleanly")
	}
	logger.Info("Shutdown complete")
}

// buildCache constructs the configured cache backend. The redis handle is
// returned separately so health checks and shutdown can reach it.
func buildCache(cfg *config.Config, logger *observability.Logger) (permissions.CacheStore, *cache.Redis, error) {
	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("addr", cfg.Cache.RedisAddr).Info("Using redis permission cache")
		return r, r, nil
	default:
		logger.WithField("max_entries", cfg.Cache.MemoryMaxEntries).Info("Using in-memory permission cache")
		return cache.NewMemory(cfg.Cache.MemoryMaxEntries, cfg.Engine.CacheTTL), nil, nil
	}
}

// startAuditCleanup schedules periodic audit trail retention enforcement
func startAuditCleanup(ctx context.Context, cfg *config.Config, trail audit.Logger, logger *observability.Logger) *cron.Cron {
	if cfg.Audit.CleanupSchedule == "" {
		return nil
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.Audit.CleanupSchedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		removed, err := trail.Cleanup(jobCtx, audit.RetentionPolicy{MaxAge: cfg.Audit.RetentionMaxAge})
		if err != nil {
			logger.WithError(err).Error("Audit cleanup failed")
			return
		}
		logger.WithField("removed", removed).Info("Audit cleanup completed")
	})
	if err != nil {
		logger.WithError(err).Error("Invalid audit cleanup schedule, job disabled")
		return nil
	}
	scheduler.Start()
	return scheduler
}

func buildHealthServer(cfg *config.Config, db *sql.DB, redisCache *cache.Redis, registry *prometheus.Registry) *http.Server {
	var health *observability.HealthChecker
	if redisCache != nil {
		health = observability.NewHealthChecker(db, redisCache.Client())
	} else {
		health = observability.NewHealthChecker(db, nil)
	}

	healthMux := mux.NewRouter()
	healthMux.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthMux.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry)).Methods("GET")
	}

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
