package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/core/services"
	httphandlers "djbook/internal/handlers/http"
	"djbook/internal/infrastructure/distributed"
	"djbook/internal/infrastructure/monitoring"
	"djbook/internal/infrastructure/repositories"
	"djbook/pkg/clock"
	"djbook/pkg/config"
	"djbook/pkg/logger"
	"djbook/pkg/security"
	"djbook/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Instances heartbeat at a third of this.
const instanceTTL = 30 * time.Second

func loadConfig() (*config.Config, error) {
	configPaths := []string{
		os.Getenv("DJBOOK_CONFIG"),
		"configs/config.yaml",
		"/etc/djbook/config.yaml",
	}
	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return config.Load(path)
	}
	// defaults plus environment overrides
	return config.Load("")
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "djbook:", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer func() { _ = zapLogger.Sync() }()
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.JaegerURL = cfg.Tracing.JaegerURL
	tracingCfg.Environment = cfg.Tracing.Environment
	tracingCfg.SampleRate = cfg.Tracing.SampleRate
	tp, err := tracing.Init(tracingCfg)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	userRepo := repoFactory.CreateUserRepository()
	venueRepo := repoFactory.CreateVenueRepository()
	bookingRepo := repoFactory.CreateBookingRepository()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := monitoring.NewPrometheusCollector(reg)
	if cached, ok := venueRepo.(*repositories.CachedVenueRepository); ok {
		collector.RegisterCacheStats("venues", cached.Stats)
		defer cached.Close()
	}

	clk := clock.Real()
	instanceID := uuid.NewString()

	var (
		events   ports.EventPublisher = distributed.NewLogPublisher(log)
		bus      *distributed.EventBus
		registry *distributed.InstanceRegistry
	)
	if client := repoFactory.RedisClient(); client != nil {
		bus = distributed.NewEventBus(client, instanceID, clk, log)
		events = bus
		host, _ := os.Hostname()
		registry = distributed.NewInstanceRegistry(client, distributed.InstanceInfo{
			ID:        instanceID,
			Address:   host + cfg.Server.Address,
			Backend:   repoFactory.Backend(),
			StartedAt: clk.Now().UTC(),
		}, instanceTTL, clk, log)
	}

	hasher, err := security.NewPasswordHasher(security.DefaultParams())
	if err != nil {
		log.Fatalw("failed to create password hasher", "error", err)
	}

	recurrence := services.NewRecurrenceResolver(cfg.Location())
	presenter := services.NewPresenter(recurrence, services.NewVisibilityResolver())

	ledgerCfg := services.DefaultAbuseLedgerConfig()
	ledgerCfg.Policy = domain.EscalationPolicy{RestrictAt: cfg.Abuse.RestrictAt, BanAt: cfg.Abuse.BanAt}
	ledgerCfg.Retry.MaxAttempts = cfg.Abuse.MaxUpdateAttempts - 1

	ledger := services.NewAbuseLedger(userRepo, repoFactory.CreateUserLocker(), events, collector, ledgerCfg, log)
	userService := services.NewUserService(userRepo, hasher, clk, log)
	venueService := services.NewVenueService(venueRepo, userRepo, clk, log)
	bookingService := services.NewBookingService(services.BookingDeps{
		Bookings:   bookingRepo,
		Venues:     venueRepo,
		Users:      userRepo,
		Recurrence: recurrence,
		Presenter:  presenter,
		Events:     events,
		Metrics:    collector,
		Clock:      clk,
		Logger:     log,
	})
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, clk)

	health := monitoring.NewHealthChecker(clk)
	health.AddStoreCheck("store", repoFactory.HealthCheck, 15*time.Second, 2*time.Second)
	health.StartBackgroundChecks(ctx, func(name string, err error) {
		log.Warnw("health check failed", "check", name, "error", err)
	})

	var wg sync.WaitGroup
	if bus != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := bus.Subscribe(ctx, func(e *distributed.Event) error {
				log.Infow("remote event", "type", e.Type, "instance", e.InstanceID, "username", e.Username, "booking_id", e.BookingID)
				return nil
			}, distributed.EventUserViolation, distributed.EventBookingStatus)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("event subscription stopped", "error", err)
			}
		}()
	}
	if registry != nil {
		if err := registry.Register(ctx); err != nil {
			log.Warnw("instance registration failed", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Run(ctx)
		}()
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := httphandlers.RouterDeps{
		Config:    cfg,
		Logger:    zapLogger,
		Auth:      authService,
		Users:     userService,
		Venues:    venueService,
		Bookings:  bookingService,
		Ledger:    ledger,
		Health:    health,
		Backend:   repoFactory.Backend(),
		Collector: collector,
		Gatherer:  reg,
	}
	if registry != nil {
		deps.Instances = registry
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      httphandlers.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting djbook api", "address", cfg.Server.Address, "backend", repoFactory.Backend(), "instance", instanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
		stop()
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdown(cfg, srv, tp, log)
	// background workers still use the store until they see ctx done
	wg.Wait()
	if err := repoFactory.Close(); err != nil {
		log.Errorw("closing repositories failed", "error", err)
	}
	log.Info("djbook api stopped")
}

func shutdown(cfg *config.Config, srv *http.Server, tp *tracing.TracerProvider, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("force close failed", "error", closeErr)
		}
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Errorw("tracer shutdown failed", "error", err)
	}
}
