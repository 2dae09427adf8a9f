package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/omarkhalifa/laundryops-backend/api/routes"
	"github.com/omarkhalifa/laundryops-backend/internal/assignment"
	"github.com/omarkhalifa/laundryops-backend/internal/broadcast"
	"github.com/omarkhalifa/laundryops-backend/internal/dispatch"
	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/internal/messaging"
	"github.com/omarkhalifa/laundryops-backend/internal/orders"
	"github.com/omarkhalifa/laundryops-backend/internal/portal"
	"github.com/omarkhalifa/laundryops-backend/pkg/config"
	"github.com/omarkhalifa/laundryops-backend/pkg/db"
	"github.com/omarkhalifa/laundryops-backend/pkg/geo"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/metrics"
	"github.com/omarkhalifa/laundryops-backend/pkg/migrate"
	"github.com/omarkhalifa/laundryops-backend/pkg/notify"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
	"github.com/omarkhalifa/laundryops-backend/pkg/redis"
	"github.com/omarkhalifa/laundryops-backend/pkg/scoring"
)

const (
	hubBuffer       = 32
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	estimator, err := geo.NewEstimator(cfg.Dispatch.AssumedSpeedKmh)
	if err != nil {
		logg.Error(context.Background(), "failed to create arrival estimator", err)
		os.Exit(1)
	}

	locations, err := drivers.NewRedisLocationStore(redisClient, cfg.Dispatch.LocationTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create driver location store", err)
		os.Exit(1)
	}

	hub := broadcast.NewHub(hubBuffer, dispatchMetrics)

	dispatchRepo := dispatch.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	dispatchParams := dispatch.ServiceParams{
		Repo:      dispatchRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
		Estimator: estimator,
		Locations: locations,
		Hub:       hub,
		Metrics:   dispatchMetrics,
		Logger:    logg,
	}
	if cfg.Dispatch.ScoringURL != "" {
		scorer, err := scoring.NewClient(cfg.Dispatch.ScoringURL, cfg.Dispatch.ScoringAPIKey,
			scoring.WithTimeout(cfg.Dispatch.ScoringTimeout))
		if err != nil {
			logg.Error(context.Background(), "failed to create scoring client", err)
			os.Exit(1)
		}
		dispatchParams.Optimizer = assignment.NewOptimizer(
			scorer, dispatchRepo, locations, cfg.Dispatch.BatchWindow, logg, dispatchMetrics)
	} else {
		logg.Warn(context.Background(), "scoring url not configured, driver recommendations disabled")
	}

	dispatchService, err := dispatch.NewService(dispatchParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	deliveryFee, err := decimal.NewFromString(cfg.Orders.DeliveryFee)
	if err != nil {
		logg.Error(context.Background(), "invalid delivery fee", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()), dbClient, outboxService, deliveryFee, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	portalService, err := portal.NewService(portal.ServiceParams{
		Deliveries: dispatchRepo,
		Store:      redisClient,
		Sender:     notify.NewClient(cfg.Notify),
		Estimator:  estimator,
		Locations:  locations,
		JWT:        cfg.JWT,
		Portal:     cfg.Portal,
		Password:   cfg.Password,
		Metrics:    dispatchMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create portal service", err)
		os.Exit(1)
	}

	messagingService, err := messaging.NewService(
		messaging.NewRepository(dbClient.DB()), dispatchRepo, dbClient, outboxService, hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create messaging service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Dispatch:  dispatchService,
			Orders:    ordersService,
			Portal:    portalService,
			Messaging: messagingService,
			Locations: locations,
			Hub:       hub,
			Registry:  registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
