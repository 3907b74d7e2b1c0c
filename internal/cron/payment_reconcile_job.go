package cron

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/razorpay"
)

// amountTolerance is one paise: gateways occasionally round fees into the
// captured amount and a one-unit drift is not a reason to hold an order.
var amountTolerance = decimal.NewFromInt(1)

type pendingOrderLister interface {
	ListAwaitingPayment(ctx context.Context) ([]models.Order, error)
}

type paymentFetcher interface {
	FetchPayments(ctx context.Context, gatewayOrderID string) ([]razorpay.Payment, error)
}

type paymentSettler interface {
	Settle(ctx context.Context, order *models.Order, gatewayPaymentID string) (*models.Order, error)
}

// PaymentReconcileJobParams configure the lost-callback sweeper.
type PaymentReconcileJobParams struct {
	Logger  *logger.Logger
	Orders  pendingOrderLister
	Gateway paymentFetcher
	Settler paymentSettler

	// StrictAmounts blocks settlement on a gross amount mismatch instead of
	// warning and proceeding.
	StrictAmounts bool
}

// NewPaymentReconcileJob builds the job that settles orders whose payment
// callback never arrived: the money is captured at the gateway but the order
// still says pending.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lister required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("payment settler required")
	}
	return &paymentReconcileJob{
		logg:    params.Logger,
		orders:  params.Orders,
		gateway: params.Gateway,
		settler: params.Settler,
		strict:  params.StrictAmounts,
	}, nil
}

type paymentReconcileJob struct {
	logg    *logger.Logger
	orders  pendingOrderLister
	gateway paymentFetcher
	settler paymentSettler
	strict  bool
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	pending, err := j.orders.ListAwaitingPayment(ctx)
	if err != nil {
		return fmt.Errorf("list orders awaiting payment: %w", err)
	}

	var errs error
	settled := 0
	for i := range pending {
		order := pending[i]
		recovered, err := j.reconcileOrder(ctx, &order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.OrderRef, err))
			continue
		}
		if recovered {
			settled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"checked": len(pending), "settled": settled})
	j.logg.Info(logCtx, "payment reconcile sweep complete")
	return errs
}

func (j *paymentReconcileJob) reconcileOrder(ctx context.Context, order *models.Order) (bool, error) {
	ctx = j.logg.WithOrderID(ctx, order.OrderRef)

	payments, err := j.gateway.FetchPayments(ctx, order.GatewayOrderID)
	if err != nil {
		return false, fmt.Errorf("fetch gateway payments: %w", err)
	}

	captured, ok := capturedPayment(payments)
	if !ok {
		return false, nil
	}

	if err := j.checkAmount(ctx, order, captured); err != nil {
		return false, err
	}

	if _, err := j.settler.Settle(ctx, order, captured.ID); err != nil {
		return false, fmt.Errorf("settle: %w", err)
	}
	j.logg.Info(ctx, "recovered payment without callback")
	return true, nil
}

func capturedPayment(payments []razorpay.Payment) (razorpay.Payment, bool) {
	for _, p := range payments {
		if p.Succeeded() {
			return p, true
		}
	}
	return razorpay.Payment{}, false
}

func (j *paymentReconcileJob) checkAmount(ctx context.Context, order *models.Order, payment razorpay.Payment) error {
	expected := decimal.NewFromInt(order.AmountPaise)
	got := decimal.NewFromInt(payment.AmountPaise)
	diff := got.Sub(expected).Abs()
	if diff.IsZero() {
		return nil
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expected_paise": order.AmountPaise,
		"captured_paise": payment.AmountPaise,
		"payment_id":     payment.ID,
	})
	if diff.LessThanOrEqual(amountTolerance) {
		j.logg.Warn(logCtx, "captured amount off by a rounding unit, settling anyway")
		return nil
	}

	j.logg.Warn(logCtx, "captured amount differs from order amount")
	if j.strict {
		return fmt.Errorf("captured amount %s differs from expected %s", got, expected)
	}
	return nil
}
