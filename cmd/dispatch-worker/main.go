package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	internalorders "github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/internal/printing"
	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/db"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/metrics"
	"github.com/printmitra/printmitra-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatch-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "dispatch-worker"

	logg = logger.New(logger.Options{
		ServiceName: "dispatch-worker",
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

	ordersRepo := internalorders.NewRepository(dbClient.DB())
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

	queue, err := printing.NewRetryQueue(printing.RetryQueueParams{
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

	seeded := seedQueue(ctx, logg, ordersRepo, queue)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"seededJobs":  seeded,
	})
	logg.Info(ctx, "starting dispatch worker")

	queue.Run(ctx, cfg.Printers.RetryBase)

	logg.Info(ctx, "dispatch worker shutting down, draining queue")
	queue.Drain(context.Background())
}

// seedQueue re-enqueues print jobs that were interrupted before completion so
// a restart picks up where the previous process stopped.
func seedQueue(ctx context.Context, logg *logger.Logger, repo internalorders.Repository, queue *printing.RetryQueue) int {
	seeded := 0
	for _, status := range []enums.PrintJobStatus{enums.PrintJobStatusPending, enums.PrintJobStatusFailed} {
		jobs, err := repo.ListPrintJobsByStatus(ctx, status)
		if err != nil {
			logg.Error(ctx, "failed to list print jobs for seeding", err)
			continue
		}
		for _, job := range jobs {
			queue.Enqueue(job.OrderID, job.PrinterIndex)
			seeded++
		}
	}
	return seeded
}
