package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/printmitra/printmitra-backend/api/routes"
	"github.com/printmitra/printmitra-backend/internal/conversion"
	"github.com/printmitra/printmitra-backend/internal/invoices"
	"github.com/printmitra/printmitra-backend/internal/notifications"
	internalorders "github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/internal/payments"
	"github.com/printmitra/printmitra-backend/internal/printing"
	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/db"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/metrics"
	"github.com/printmitra/printmitra-backend/pkg/migrate"
	"github.com/printmitra/printmitra-backend/pkg/razorpay"
	"github.com/printmitra/printmitra-backend/pkg/redis"
	"github.com/printmitra/printmitra-backend/pkg/storage/gcs"
)

const shutdownGrace = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(ctx, cfg.Gateway, logg)
	if err != nil {
		logg.Error(ctx, "failed to create payment gateway client", err)
		os.Exit(1)
	}

	storageClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to create object storage client", err)
		os.Exit(1)
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage client", err)
		}
	}()

	ordersRepo := internalorders.NewRepository(dbClient.DB())

	ordersSvc, err := internalorders.NewService(internalorders.ServiceParams{
		Repo:    ordersRepo,
		Gateway: gateway,
		Storage: storageClient,
		Orders:  cfg.Orders,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		os.Exit(1)
	}

	notifier, err := notifications.NewNotifier(cfg.Notify, redisClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notifier", err)
		os.Exit(1)
	}

	jobStore, err := conversion.NewJobStore(redisClient, cfg.Conversion.JobTTL)
	if err != nil {
		logg.Error(ctx, "failed to create conversion job store", err)
		os.Exit(1)
	}

	pipeline, err := conversion.NewPipeline(conversion.PipelineParams{
		Config: cfg.Conversion,
		Render: conversion.NewRenderClient(cfg.Conversion, cfg.App.BaseURL),
		Jobs:   jobStore,
		Orders: ordersRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create conversion pipeline", err)
		os.Exit(1)
	}

	webhookSvc, err := conversion.NewWebhookService(conversion.WebhookServiceParams{
		Jobs:     jobStore,
		Storage:  storageClient,
		Orders:   ordersRepo,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create render webhook service", err)
		os.Exit(1)
	}

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	dispatcher, err := printing.NewDispatcher(printing.DispatcherParams{
		Printers: cfg.Printers,
		Metrics:  dispatchMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create print dispatcher", err)
		os.Exit(1)
	}

	retryQueue, err := printing.NewRetryQueue(printing.RetryQueueParams{
		Dispatcher:  dispatcher,
		Store:       ordersRepo,
		MaxAttempts: cfg.Printers.MaxAttempts,
		RetryBase:   cfg.Printers.RetryBase,
		Metrics:     dispatchMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create dispatch retry queue", err)
		os.Exit(1)
	}
	go retryQueue.Run(ctx, cfg.Printers.RetryBase)

	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Storage:  storageClient,
		Orders:   ordersRepo,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create invoice service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:       ordersRepo,
		Gateway:    gateway,
		Dispatcher: dispatcher,
		Retry:      retryQueue,
		Conversion: pipeline,
		Invoices:   invoiceSvc,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment service", err)
		os.Exit(1)
	}

	fleet, err := printing.NewFleetMonitor(cfg.Printers, logg)
	if err != nil {
		logg.Error(ctx, "failed to create fleet monitor", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Orders:   ordersSvc,
			Payments: paymentsSvc,
			Pipeline: pipeline,
			Webhooks: webhookSvc,
			Fleet:    fleet,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(startCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(startCtx, "shutdown signal received, draining in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(startCtx, "graceful shutdown failed", err)
		}
		retryQueue.Drain(context.Background())
	}
}
