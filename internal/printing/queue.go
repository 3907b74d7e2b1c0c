package printing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/metrics"
)

type printJobStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetDeliveryNumber(ctx context.Context, id uuid.UUID, deliveryNumber string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	FindPrintJob(ctx context.Context, orderID uuid.UUID) (*models.PrintJob, error)
	UpdatePrintJob(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type queuedJob struct {
	orderID      uuid.UUID
	printerIndex int
}

// RetryQueue holds failed dispatches for another try. It is in-memory and
// process-local: a crash loses pending retries, which the reconciliation
// sweep will not replace. Acceptable for a single-process deployment.
type RetryQueue struct {
	mu      sync.Mutex
	pending []queuedJob
	queued  map[uuid.UUID]bool

	dispatcher  Dispatcher
	store       printJobStore
	maxAttempts uint64
	base        time.Duration
	metrics     *metrics.DispatchMetrics
	logg        *logger.Logger
}

// RetryQueueParams bundles the retry queue dependencies.
type RetryQueueParams struct {
	Dispatcher  Dispatcher
	Store       printJobStore
	MaxAttempts int
	RetryBase   time.Duration
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
}

// NewRetryQueue builds the queue.
func NewRetryQueue(params RetryQueueParams) (*RetryQueue, error) {
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("print job store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	base := params.RetryBase
	if base <= 0 {
		base = 30 * time.Second
	}
	return &RetryQueue{
		queued:      map[uuid.UUID]bool{},
		dispatcher:  params.Dispatcher,
		store:       params.Store,
		maxAttempts: uint64(maxAttempts),
		base:        base,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// Enqueue registers a failed dispatch for retry. One entry per order; a
// second enqueue for the same order is a no-op (single writer per key).
func (q *RetryQueue) Enqueue(orderID uuid.UUID, printerIndex int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queued[orderID] {
		return
	}
	q.queued[orderID] = true
	q.pending = append(q.pending, queuedJob{orderID: orderID, printerIndex: printerIndex})
	q.metrics.SetQueueLength(len(q.pending))
}

// Len reports the number of jobs waiting.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain retries every queued job once per backoff schedule, blocking until
// all have either succeeded or exhausted their attempts.
func (q *RetryQueue) Drain(ctx context.Context) {
	q.mu.Lock()
	jobs := q.pending
	q.pending = nil
	for _, job := range jobs {
		delete(q.queued, job.orderID)
	}
	q.metrics.SetQueueLength(0)
	q.mu.Unlock()

	for _, job := range jobs {
		q.process(ctx, job)
	}
}

// Run drains the queue on the given interval until the context ends.
func (q *RetryQueue) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Drain(ctx)
		}
	}
}

func (q *RetryQueue) process(ctx context.Context, job queuedJob) {
	ctx = q.logg.WithField(ctx, "order_id", job.orderID.String())

	order, err := q.store.FindByID(ctx, job.orderID)
	if err != nil {
		q.logg.Error(ctx, "retry queue: load order", err)
		return
	}
	if order.Status == enums.OrderStatusCancelled {
		q.logg.Warn(ctx, "retry queue: dropping cancelled order")
		return
	}

	var result DispatchResult
	backoff := retry.WithMaxRetries(q.maxAttempts, retry.NewFibonacci(q.base))
	attempts := 0

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		var dispatchErr error
		result, dispatchErr = q.dispatcher.Dispatch(ctx, order, job.printerIndex)
		if dispatchErr == nil {
			return nil
		}
		if appErr := pkgerrors.As(dispatchErr); appErr != nil && appErr.Code() == pkgerrors.CodeValidation {
			// Misconfigured order, retrying will not help.
			return dispatchErr
		}
		q.metrics.IncRetry()
		return retry.RetryableError(dispatchErr)
	})
	if err != nil {
		q.metrics.IncExhausted()
		q.logg.Error(ctx, "retry queue: dispatch attempts exhausted", err)
		q.surfaceFailure(ctx, order, attempts, err)
		return
	}

	q.recordSuccess(ctx, order, job.printerIndex, attempts, result)
}

// surfaceFailure marks the print job failed for manual intervention. Payment
// state is never touched: the customer has paid and the order stays paid.
func (q *RetryQueue) surfaceFailure(ctx context.Context, order *models.Order, attempts int, cause error) {
	printJob, err := q.store.FindPrintJob(ctx, order.ID)
	if err != nil {
		q.logg.Error(ctx, "retry queue: load print job", err)
		return
	}
	msg := cause.Error()
	if err := q.store.UpdatePrintJob(ctx, printJob.ID, map[string]any{
		"status":     enums.PrintJobStatusFailed,
		"attempts":   printJob.Attempts + attempts,
		"last_error": msg,
	}); err != nil {
		q.logg.Error(ctx, "retry queue: mark print job failed", err)
	}
}

func (q *RetryQueue) recordSuccess(ctx context.Context, order *models.Order, printerIndex, attempts int, result DispatchResult) {
	if result.DeliveryNumber != "" {
		if err := q.store.SetDeliveryNumber(ctx, order.ID, result.DeliveryNumber); err != nil {
			q.logg.Error(ctx, "retry queue: persist delivery number", err)
		}
	}
	// A job seeded from a restart may still carry a paid order if the
	// processing flip never landed. Walk it through processing first so the
	// lifecycle stays paid -> processing -> printing.
	if order.Status == enums.OrderStatusPaid {
		if err := q.store.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
			q.logg.Error(ctx, "retry queue: update order status", err)
		}
	}
	if err := q.store.UpdateStatus(ctx, order.ID, enums.OrderStatusPrinting); err != nil {
		q.logg.Error(ctx, "retry queue: update order status", err)
	}

	printJob, err := q.store.FindPrintJob(ctx, order.ID)
	if err != nil {
		q.logg.Error(ctx, "retry queue: load print job", err)
		return
	}
	if err := q.store.UpdatePrintJob(ctx, printJob.ID, map[string]any{
		"status":                     enums.PrintJobStatusPrinting,
		"printer_index":              printerIndex,
		"attempts":                   printJob.Attempts + attempts,
		"estimated_duration_seconds": result.EstimatedSecs,
		"last_error":                 nil,
	}); err != nil {
		q.logg.Error(ctx, "retry queue: update print job", err)
		return
	}
	q.logg.Info(ctx, "retry queue: dispatch succeeded")
}
