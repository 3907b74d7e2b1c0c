package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/printmitra/printmitra-backend/internal/conversion"
	"github.com/printmitra/printmitra-backend/internal/cron"
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

const lockKeyFormat = "pm:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	gateway, err := razorpay.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	storageClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create object storage client", err)
		os.Exit(1)
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage client", err)
		}
	}()

	ordersRepo := internalorders.NewRepository(dbClient.DB())

	notifier, err := notifications.NewNotifier(cfg.Notify, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	dispatcher, err := printing.NewDispatcher(printing.DispatcherParams{
		Printers: cfg.Printers,
		Metrics:  dispatchMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create print dispatcher", err)
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
		logg.Error(context.Background(), "failed to create dispatch retry queue", err)
		os.Exit(1)
	}

	jobStore, err := conversion.NewJobStore(redisClient, cfg.Conversion.JobTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversion job store", err)
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
		logg.Error(context.Background(), "failed to create conversion pipeline", err)
		os.Exit(1)
	}

	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Storage:  storageClient,
		Orders:   ordersRepo,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
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
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:        logg,
		Orders:        ordersRepo,
		Gateway:       gateway,
		Settler:       paymentsSvc,
		StrictAmounts: cfg.FeatureFlags.StrictReconcileAmounts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconcile job", err)
		os.Exit(1)
	}

	staleJob, err := cron.NewStaleOrderJob(cron.StaleOrderJobParams{
		Logger:     logg,
		Orders:     ordersRepo,
		StaleAfter: cfg.Orders.StaleAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale order job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reconcileJob, staleJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
