package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/api"
	"github.com/campuskit/registrar/pkg/assignment"
	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/config"
	"github.com/campuskit/registrar/pkg/enrollment"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/session"
	"github.com/campuskit/registrar/pkg/storage"
	pgstore "github.com/campuskit/registrar/pkg/storage/postgres"
	"github.com/campuskit/registrar/pkg/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	if err := run(cfg, logger, metrics); err != nil {
		logger.WithError(err).Error("service exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) error {
	registry := roles.NewRegistry()

	// Backing stores. Memory mode serves local development and tests;
	// production runs on Postgres.
	var (
		db           *sql.DB
		institutions tenant.InstitutionStore
		users        tenant.UserStore
		seats        enrollment.SeatStore
	)
	switch cfg.Storage.Type {
	case "postgres":
		var err error
		db, err = pgstore.Connect(cfg.Storage.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Postgres.ConnectTimeout)
		err = pgstore.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			return err
		}

		institutions = pgstore.NewInstitutionStore(db)
		users = pgstore.NewUserStore(db)
		seats = enrollment.NewPostgresSeatStore(db, metrics)
		logger.Info("postgres storage initialized")
	default:
		mem := tenant.NewMemoryStore()
		institutions = mem
		users = mem
		seats = enrollment.NewMemorySeatStore()
		logger.Warn("using in-memory storage, data will not survive restarts")
	}

	// Audit trail: bounded in-memory ring for queries, plus a durable
	// database sink when Postgres is available.
	memorySink := audit.NewMemorySink(cfg.Audit.MemoryCapacity, metrics)
	sinks := []audit.Sink{memorySink}
	var dbSink *audit.DBSink
	if db != nil {
		var err error
		dbSink, err = audit.NewDBSink(db)
		if err != nil {
			return fmt.Errorf("failed to initialize audit database sink: %w", err)
		}
		sinks = append(sinks, dbSink)
	}
	sink := audit.NewMultiSink(sinks...)
	sink.SetAsync(cfg.Audit.Async)
	defer sink.Wait()

	// Session cache.
	var (
		sessionStore session.Store
		redisClient  *redis.Client
	)
	if cfg.Session.Store == "redis" {
		var err error
		redisClient, err = storage.NewRedisClient(cfg.Storage.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient, cfg.Session.TTL)
		logger.Info("redis session store initialized")
	} else {
		sessionStore = session.NewMemoryStore(session.WithTTL(cfg.Session.TTL))
	}

	resolver := tenant.NewResolver(institutions, users, logger)
	sessions := session.NewManager(sessionStore, resolver, logger, metrics)

	accessors := api.Accessors(seats, users, institutions)
	validator := access.NewValidator(registry, users, accessors, sink, logger, metrics)
	assignments := assignment.NewService(registry, users, sink, logger)
	enrollments := enrollment.NewController(seats, validator, sink, logger, metrics)

	server := api.NewServer(sessions, validator, assignments, enrollments, sink, memorySink, logger, metrics)

	// Background jobs: session sweep, audit retention.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Session.SweepSchedule, func() {
		if _, err := sessions.Sweep(context.Background()); err != nil {
			logger.WithError(err).Error("session sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid session sweep schedule: %w", err)
	}
	if dbSink != nil {
		retention := cfg.Audit.Retention
		if _, err := scheduler.AddFunc(cfg.Audit.RetentionSchedule, func() {
			removed, err := dbSink.Cleanup(context.Background(), time.Now().Add(-retention))
			if err != nil {
				logger.WithError(err).Error("audit cleanup failed")
				return
			}
			if removed > 0 {
				logger.Infof("removed %d expired audit entries", removed)
			}
		}); err != nil {
			return fmt.Errorf("invalid audit retention schedule: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Health and metrics on a separate port for probes.
	health := observability.NewHealthChecker(db, redisClient)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if metrics != nil {
		healthRouter.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("registrar API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	return group.Wait()
}
