package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

const defaultStaleAfter = 24 * time.Hour

type staleOrderStore interface {
	ListAwaitingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	CancelIfAwaitingPayment(ctx context.Context, id uuid.UUID) (bool, error)
}

// StaleOrderJobParams configure the abandoned-checkout sweep.
type StaleOrderJobParams struct {
	Logger     *logger.Logger
	Orders     staleOrderStore
	StaleAfter time.Duration
	Now        func() time.Time
}

// NewStaleOrderJob builds the job that cancels orders nobody ever paid for.
// Cancellation is a conditional write guarded on pending_payment, so a
// payment confirmed between the sweep's listing and its cancel keeps the
// order: the sweep loses the write and moves on.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &staleOrderJob{
		logg:       params.Logger,
		orders:     params.Orders,
		staleAfter: staleAfter,
		now:        now,
	}, nil
}

type staleOrderJob struct {
	logg       *logger.Logger
	orders     staleOrderStore
	staleAfter time.Duration
	now        func() time.Time
}

func (j *staleOrderJob) Name() string { return "stale-order-cancel" }

func (j *staleOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	stale, err := j.orders.ListAwaitingPaymentBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale orders: %w", err)
	}

	var errs error
	cancelled, kept := 0, 0
	for _, order := range stale {
		orderCtx := j.logg.WithOrderID(ctx, order.OrderRef)
		won, err := j.orders.CancelIfAwaitingPayment(orderCtx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.OrderRef, err))
			continue
		}
		if !won {
			// A payment landed after the listing. The order is no longer
			// pending_payment, so it stays exactly as the settlement left it.
			j.logg.Info(orderCtx, "stale order paid mid-sweep, leaving it alone")
			kept++
			continue
		}
		j.logg.Info(orderCtx, "cancelled stale unpaid order")
		cancelled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"checked": len(stale), "cancelled": cancelled, "kept": kept})
	j.logg.Info(logCtx, "stale order sweep complete")
	return errs
}
