package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/anvaya/commerce-backend/api/routes"
	"github.com/anvaya/commerce-backend/internal/fulfillment"
	"github.com/anvaya/commerce-backend/internal/orders"
	"github.com/anvaya/commerce-backend/internal/returns"
	paymentwebhook "github.com/anvaya/commerce-backend/internal/webhooks/payment"
	shipmentwebhook "github.com/anvaya/commerce-backend/internal/webhooks/shipment"
	"github.com/anvaya/commerce-backend/pkg/config"
	"github.com/anvaya/commerce-backend/pkg/db"
	"github.com/anvaya/commerce-backend/pkg/logger"
	"github.com/anvaya/commerce-backend/pkg/metrics"
	"github.com/anvaya/commerce-backend/pkg/migrate"
	"github.com/anvaya/commerce-backend/pkg/redis"
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

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(promRegistry)
	pipelineMetrics := metrics.NewPipelineMetrics(promRegistry)

	orderRepo := orders.NewRepository(dbClient.DB())
	returnRepo := returns.NewRepository(dbClient.DB())

	ordersSvc, err := orders.NewService(orderRepo, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	returnsSvc, err := returns.NewService(returnRepo, orderRepo, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	pipelineSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Repo:              orderRepo,
		TransactionRunner: dbClient,
		Bander:            fulfillment.NewBander(cfg.Fulfillment.SLAUrgentWindow, cfg.Fulfillment.SLAWarningWindow),
		CriticalWindow:    cfg.Fulfillment.CriticalShipWindow,
		Metrics:           pipelineMetrics,
		Cache:             redisClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	paymentWebhookSvc, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Repo:              orderRepo,
		TransactionRunner: dbClient,
		Refunds:           returnRepo,
		Cache:             redisClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook service", err)
		os.Exit(1)
	}

	paymentWebhookGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, cfg.Razorpay.EventTTL, paymentwebhook.Source)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook guard", err)
		os.Exit(1)
	}

	shipmentWebhookSvc, err := shipmentwebhook.NewService(shipmentwebhook.ServiceParams{
		Repo:              orderRepo,
		TransactionRunner: dbClient,
		Cache:             redisClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment webhook service", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			webhookMetrics,
			ordersSvc,
			returnsSvc,
			pipelineSvc,
			paymentWebhookSvc,
			paymentWebhookGuard,
			shipmentWebhookSvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
