package payments

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printmitra/printmitra-backend/internal/conversion"
	"github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/internal/printing"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

// VerifyInput is the client-side payment confirmation.
type VerifyInput struct {
	GatewayOrderID   string `json:"razorpayOrderId" validate:"required"`
	GatewayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	Signature        string `json:"razorpaySignature" validate:"required"`
}

type signatureVerifier interface {
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

type conversionSubmitter interface {
	SubmitAsync(ctx context.Context, order *models.Order, docxURL string) (*conversion.Job, error)
}

type invoiceGenerator interface {
	Generate(ctx context.Context, order *models.Order) (string, bool)
}

type paymentNotifier interface {
	NotifyOnce(ctx context.Context, event enums.NotificationEvent, dedupID string, payload map[string]any) bool
}

type retryEnqueuer interface {
	Enqueue(orderID uuid.UUID, printerIndex int)
}

// Service confirms gateway payments and fans out the post-payment work.
type Service interface {
	// Verify authenticates the confirmation and settles the order. Safe to
	// call any number of times for the same payment.
	Verify(ctx context.Context, input VerifyInput) (*models.Order, error)

	// Settle flips an order to paid for an already-trusted payment and runs
	// the downstream effects. Used by Verify and by reconciliation.
	Settle(ctx context.Context, order *models.Order, gatewayPaymentID string) (*models.Order, error)
}

// ServiceParams bundles the verification service dependencies. Dispatcher,
// Retry, Conversion and Invoices are optional; missing ones disable the
// corresponding downstream step.
type ServiceParams struct {
	Repo       orders.Repository
	Gateway    signatureVerifier
	Dispatcher printing.Dispatcher
	Retry      retryEnqueuer
	Conversion conversionSubmitter
	Invoices   invoiceGenerator
	Notifier   paymentNotifier
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       orders.Repository
	gateway    signatureVerifier
	dispatcher printing.Dispatcher
	retry      retryEnqueuer
	conversion conversionSubmitter
	invoices   invoiceGenerator
	notifier   paymentNotifier
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:       params.Repo,
		gateway:    params.Gateway,
		dispatcher: params.Dispatcher,
		retry:      params.Retry,
		conversion: params.Conversion,
		invoices:   params.Invoices,
		notifier:   params.Notifier,
		logg:       params.Logger,
		now:        params.Now,
	}, nil
}

func (s *service) Verify(ctx context.Context, input VerifyInput) (*models.Order, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id and signature are required")
	}

	if !s.gateway.VerifySignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	order, err := s.repo.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for gateway order id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	ctx = s.logg.WithOrderID(ctx, order.OrderRef)

	// Replay of an already-settled confirmation: nothing left to do.
	if order.PaymentStatus == enums.PaymentStatusCompleted &&
		order.GatewayPaymentID != nil && *order.GatewayPaymentID == input.GatewayPaymentID {
		s.logg.Info(ctx, "payment already verified, returning current order")
		return order, nil
	}

	return s.Settle(ctx, order, input.GatewayPaymentID)
}

func (s *service) Settle(ctx context.Context, order *models.Order, gatewayPaymentID string) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, order.OrderRef)

	won, err := s.repo.MarkPaid(ctx, order.ID, gatewayPaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	if !won {
		// A concurrent confirmation got there first. Its caller owns the
		// downstream effects; this one just reports the settled order.
		current, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload settled order")
		}
		s.logg.Info(ctx, "payment was settled concurrently")
		return current, nil
	}

	s.logg.Info(ctx, "payment verified, order marked paid")

	printerIndex := s.printerIndexFor(order)
	s.assignDeliveryNumber(ctx, order, printerIndex)

	// Everything past the paid flip is best effort. The customer has paid;
	// failures here surface through logs and retries, never as a verify error.
	s.ensurePrintJob(ctx, order)

	// Accepted for production: paid moves to processing here, and the order
	// only reaches printing once a printer takes the job.
	if err := s.repo.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("marking order processing failed: %v", err))
	} else {
		order.Status = enums.OrderStatusProcessing
		order.ProductionStatus = order.Status.Production()
	}

	switch order.Type {
	case enums.OrderTypeFile:
		s.triggerDispatch(ctx, order, printerIndex)
	case enums.OrderTypeTemplate:
		if order.FilledPDFURL != nil && *order.FilledPDFURL != "" {
			s.triggerDispatch(ctx, order, printerIndex)
		} else {
			s.triggerConversion(ctx, order)
		}
	}

	if s.invoices != nil {
		s.invoices.Generate(ctx, order)
	}

	s.notifier.NotifyOnce(ctx, enums.NotificationPaymentConfirmed, order.OrderRef, map[string]any{
		"orderId":   order.OrderRef,
		"email":     order.CustomerEmail,
		"phone":     order.CustomerPhone,
		"amount":    order.AmountPaise,
		"paymentId": gatewayPaymentID,
	})

	settled, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload settled order")
	}
	return settled, nil
}

// printerIndexFor spreads orders across the fleet deterministically, so a
// replayed settlement targets the same printer.
func (s *service) printerIndexFor(order *models.Order) int {
	if s.dispatcher == nil {
		return 0
	}
	endpoints := s.dispatcher.Endpoints()
	if len(endpoints) == 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(order.OrderRef))
	return int(h.Sum32() % uint32(len(endpoints)))
}

func (s *service) assignDeliveryNumber(ctx context.Context, order *models.Order, printerIndex int) {
	if order.DeliveryNumber != nil && *order.DeliveryNumber != "" {
		return
	}
	number := printing.GenerateDeliveryNumber(printerIndex, s.now())
	if err := s.repo.SetDeliveryNumber(ctx, order.ID, number); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("assigning delivery number failed: %v", err))
		return
	}
	// The guard keeps the first assignment; reload to pick up whichever won.
	if current, err := s.repo.FindByID(ctx, order.ID); err == nil {
		order.DeliveryNumber = current.DeliveryNumber
	}
}

func (s *service) ensurePrintJob(ctx context.Context, order *models.Order) {
	job := &models.PrintJob{
		ID:              uuid.New(),
		OrderID:         order.ID,
		Status:          enums.PrintJobStatusPending,
		PrintingOptions: order.PrintingOptions,
	}
	if _, err := s.repo.CreatePrintJobIfAbsent(ctx, job); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("ensuring print job failed: %v", err))
	}
}

func (s *service) triggerDispatch(ctx context.Context, order *models.Order, printerIndex int) {
	if s.dispatcher == nil {
		return
	}
	result, err := s.dispatcher.Dispatch(ctx, order, printerIndex)
	if err != nil || !result.Success {
		if err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("print dispatch failed, queueing retry: %v", err))
		} else {
			s.logg.Warn(ctx, fmt.Sprintf("printer rejected job, queueing retry: %s", result.Message))
		}
		if s.retry != nil {
			s.retry.Enqueue(order.ID, printerIndex)
		}
		return
	}

	if order.DeliveryNumber == nil || *order.DeliveryNumber == "" {
		if result.DeliveryNumber != "" {
			if err := s.repo.SetDeliveryNumber(ctx, order.ID, result.DeliveryNumber); err != nil {
				s.logg.Warn(ctx, fmt.Sprintf("persisting delivery number failed: %v", err))
			}
		}
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPrinting); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("marking order printing failed: %v", err))
	}
	if job, err := s.repo.FindPrintJob(ctx, order.ID); err == nil {
		fields := map[string]any{
			"status":        enums.PrintJobStatusPrinting,
			"printer_index": printerIndex,
			"attempts":      gorm.Expr("attempts + 1"),
		}
		if result.EstimatedSecs > 0 {
			fields["estimated_duration_seconds"] = result.EstimatedSecs
		}
		if err := s.repo.UpdatePrintJob(ctx, job.ID, fields); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("updating print job failed: %v", err))
		}
	}
	s.logg.Info(ctx, "order dispatched to printer")
}

func (s *service) triggerConversion(ctx context.Context, order *models.Order) {
	if s.conversion == nil {
		return
	}
	docxURL := ""
	if order.FilledDocxURL != nil {
		docxURL = *order.FilledDocxURL
	}
	if docxURL == "" {
		s.logg.Warn(ctx, "template order has no filled docx to convert")
		return
	}
	if _, err := s.conversion.SubmitAsync(ctx, order, docxURL); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("submitting pdf conversion failed: %v", err))
	}
}
