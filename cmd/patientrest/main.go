package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/cache"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/events"
	v1 "github.com/dmehra2102/prod-golang-projects/patientrest/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/representation"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/service"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "patientrest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("initialising tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	m := metrics.NewCollector(prometheus.NewRegistry(), "patientrest")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	defer sqlDB.Close()

	if err := database.Instrument(db, m, log, cfg.Database.SlowQueryThreshold); err != nil {
		return err
	}
	m.RegisterRuntime(sqlDB, cfg.Database.Name)

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, log); err != nil {
			return err
		}
	}

	checks := map[string]v1.ReadinessCheck{
		"database": sqlDB.PingContext,
	}

	var patientCache service.PatientCache = cache.Nop{}
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		rc := cache.NewRedisPatientCache(rdb, cfg.Redis.PatientTTL)
		patientCache = rc
		checks["redis"] = rc.Ping
	}

	var publisher interface {
		service.EventPublisher
		Healthy() bool
		Close() error
	} = events.Nop{}
	if cfg.Events.Enabled {
		p, err := events.NewAMQPPublisher(cfg.Events, log)
		if err != nil {
			return err
		}
		publisher = p
		checks["amqp"] = func(context.Context) error {
			if !p.Healthy() {
				return errors.New("broker connection closed")
			}
			return nil
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("closing event publisher", zap.Error(err))
		}
	}()

	patientRepo := repository.NewPatientRepository(db)
	metaRepo := repository.NewMetadataRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, log, m)
	defer auditSvc.Shutdown(10 * time.Second)

	jwtManager := auth.NewJWTManager(cfg.JWT)
	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)
	patientSvc := service.NewPatientService(patientRepo, metaRepo, patientCache, publisher, auditSvc, m, cfg.REST, log)
	metaSvc := service.NewMetadataService(metaRepo, auditSvc, log)

	if cfg.Bootstrap.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("bootstrapping admin: %w", err)
		}
	}

	globalLimiter := v1.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize)
	authLimiter := v1.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(max(cfg.RateLimit.AuthRequestsPerMinute, 1))), max(cfg.RateLimit.AuthRequestsPerMinute, 1))
	go globalLimiter.RunCleanup(ctx, time.Minute, 10*time.Minute)
	go authLimiter.RunCleanup(ctx, time.Minute, 10*time.Minute)

	router := v1.NewRouter(v1.RouterDeps{
		Config:        cfg,
		Log:           log,
		Metrics:       m,
		Tokens:        jwtManager,
		Patients:      patientSvc,
		Metadata:      metaSvc,
		Auth:          authSvc,
		Builder:       representation.NewBuilder(cfg.REST.BaseURL),
		GlobalLimiter: globalLimiter,
		AuthLimiter:   authLimiter,
		Checks:        checks,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
