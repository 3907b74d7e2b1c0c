package conversion

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

// WebhookPayload is the render service's completion callback body.
type WebhookPayload struct {
	OrderID   string `json:"orderId" validate:"required"`
	JobID     string `json:"jobId"`
	Status    string `json:"status" validate:"required,oneof=completed failed"`
	PDFURL    string `json:"pdfUrl"`
	PDFBuffer string `json:"pdfBuffer"`
	Error     string `json:"error"`
}

type objectStore interface {
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	Download(ctx context.Context, objectURL string) ([]byte, error)
}

type webhookOrderStore interface {
	FindByOrderRef(ctx context.Context, orderRef string) (*models.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type completionNotifier interface {
	NotifyOnce(ctx context.Context, event enums.NotificationEvent, dedupID string, payload map[string]any) bool
}

// WebhookService applies render completions to orders and jobs. Handling is
// replay-safe: a repeated completed webhook re-uploads the same object path
// (last write wins) and the notification layer dedups the customer notice.
type WebhookService struct {
	jobs     JobStore
	storage  objectStore
	orders   webhookOrderStore
	notifier completionNotifier
	logg     *logger.Logger
}

// WebhookServiceParams bundles the webhook service dependencies.
type WebhookServiceParams struct {
	Jobs     JobStore
	Storage  objectStore
	Orders   webhookOrderStore
	Notifier completionNotifier
	Logger   *logger.Logger
}

// NewWebhookService builds the webhook handler service.
func NewWebhookService(params WebhookServiceParams) (*WebhookService, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("job store required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("object storage required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &WebhookService{
		jobs:     params.Jobs,
		storage:  params.Storage,
		orders:   params.Orders,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

// Handle applies one webhook delivery.
func (s *WebhookService) Handle(ctx context.Context, payload WebhookPayload) error {
	order, err := s.orders.FindByOrderRef(ctx, payload.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	ctx = s.logg.WithOrderID(ctx, order.OrderRef)
	if payload.JobID != "" {
		ctx = s.logg.WithJobID(ctx, payload.JobID)
	}

	switch payload.Status {
	case "completed":
		return s.handleCompleted(ctx, order, payload)
	case "failed":
		return s.handleFailed(ctx, order, payload)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown webhook status %q", payload.Status))
	}
}

func (s *WebhookService) handleCompleted(ctx context.Context, order *models.Order, payload WebhookPayload) error {
	pdf, err := s.resolvePDF(ctx, payload)
	if err != nil {
		return err
	}

	objectPath := fmt.Sprintf("orders/%s/filled.pdf", order.OrderRef)
	pdfURL, err := s.storage.Upload(ctx, pdf, objectPath, "application/pdf")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store converted pdf")
	}

	if err := s.orders.UpdateFields(ctx, order.ID, map[string]any{
		"filled_pdf_url":        pdfURL,
		"pdf_conversion_status": enums.ConversionStatusCompleted,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order pdf state")
	}

	s.recordJob(ctx, payload, order.OrderRef, enums.ConversionStatusCompleted, pdfURL, "")

	// Best-effort and deduped so replays do not spam the customer.
	s.notifier.NotifyOnce(ctx, enums.NotificationPDFReady, order.OrderRef, map[string]any{
		"orderId": order.OrderRef,
		"email":   order.CustomerEmail,
		"pdfUrl":  pdfURL,
	})

	s.logg.Info(ctx, "render webhook applied, pdf stored")
	return nil
}

// handleFailed records the failure and nothing else: the order is not rolled
// back and the filled DOCX stays downloadable.
func (s *WebhookService) handleFailed(ctx context.Context, order *models.Order, payload WebhookPayload) error {
	if err := s.orders.UpdateFields(ctx, order.ID, map[string]any{
		"pdf_conversion_status": enums.ConversionStatusFailed,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record conversion failure")
	}
	s.recordJob(ctx, payload, order.OrderRef, enums.ConversionStatusFailed, "", payload.Error)
	s.logg.Warn(ctx, "render webhook reported conversion failure")
	return nil
}

func (s *WebhookService) resolvePDF(ctx context.Context, payload WebhookPayload) ([]byte, error) {
	if payload.PDFURL != "" {
		pdf, err := s.storage.Download(ctx, payload.PDFURL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download rendered pdf")
		}
		return pdf, nil
	}
	if payload.PDFBuffer != "" {
		pdf, err := base64.StdEncoding.DecodeString(payload.PDFBuffer)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode pdf buffer")
		}
		return pdf, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook carries neither pdf url nor buffer")
}

func (s *WebhookService) recordJob(ctx context.Context, payload WebhookPayload, orderRef string, status enums.ConversionStatus, pdfURL, errMsg string) {
	if payload.JobID == "" {
		return
	}
	job, err := s.jobs.Get(ctx, payload.JobID)
	if err != nil {
		// TTL may have evicted the record; rebuild it from the payload.
		job = &Job{JobID: payload.JobID, OrderRef: orderRef}
	}
	job.Status = status
	job.PDFURL = pdfURL
	job.Error = errMsg
	if err := s.jobs.Put(ctx, job); err != nil {
		s.logg.Error(ctx, "update conversion job", err)
	}
}
