package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

type objectStore interface {
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
}

type orderStore interface {
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type invoiceNotifier interface {
	NotifyOnce(ctx context.Context, event enums.NotificationEvent, dedupID string, payload map[string]any) bool
}

// Service renders and delivers invoices. Every step is best effort: a failed
// invoice never fails the payment that triggered it.
type Service interface {
	Generate(ctx context.Context, order *models.Order) (string, bool)
}

type ServiceParams struct {
	Storage  objectStore
	Orders   orderStore
	Notifier invoiceNotifier
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	storage  objectStore
	orders   orderStore
	notifier invoiceNotifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
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
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		storage:  params.Storage,
		orders:   params.Orders,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      params.Now,
	}, nil
}

// Generate renders the invoice PDF, uploads it, stamps the order and notifies
// the customer. Returns the invoice URL and whether the whole chain succeeded;
// failures are logged and swallowed so callers can fire and forget.
func (s *service) Generate(ctx context.Context, order *models.Order) (string, bool) {
	if order == nil {
		return "", false
	}
	ctx = s.logg.WithOrderID(ctx, order.OrderRef)

	if order.InvoiceURL != nil && *order.InvoiceURL != "" {
		return *order.InvoiceURL, true
	}

	pdf := renderPDF("PrintMitra Invoice", s.invoiceLines(order))
	objectPath := fmt.Sprintf("orders/%s/invoice.pdf", order.OrderRef)
	url, err := s.storage.Upload(ctx, pdf, objectPath, "application/pdf")
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("invoice upload failed: %v", err))
		return "", false
	}

	if err := s.orders.UpdateFields(ctx, order.ID, map[string]any{"invoice_url": url}); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("attaching invoice url failed: %v", err))
		return url, false
	}

	s.notifier.NotifyOnce(ctx, enums.NotificationInvoiceReady, order.OrderRef, map[string]any{
		"orderId":    order.OrderRef,
		"email":      order.CustomerEmail,
		"invoiceUrl": url,
	})

	s.logg.Info(ctx, "invoice generated")
	return url, true
}

func (s *service) invoiceLines(order *models.Order) []string {
	lines := []string{
		fmt.Sprintf("Order: %s", order.OrderRef),
		fmt.Sprintf("Date: %s", s.now().Format("02 Jan 2006")),
		fmt.Sprintf("Order type: %s", order.Type),
		"",
		fmt.Sprintf("Amount paid: Rs %s", rupees(order.AmountPaise)),
	}
	if order.Type == enums.OrderTypeTemplate && order.TemplatePricePaise > 0 {
		lines = append(lines,
			fmt.Sprintf("  Template price: Rs %s", rupees(order.TemplatePricePaise)),
			fmt.Sprintf("  Printing: Rs %s", rupees(order.AmountPaise-order.TemplatePricePaise)),
		)
	}
	if order.GatewayPaymentID != nil && *order.GatewayPaymentID != "" {
		lines = append(lines, "", fmt.Sprintf("Payment reference: %s", *order.GatewayPaymentID))
	}
	if order.CustomerEmail != "" {
		lines = append(lines, fmt.Sprintf("Billed to: %s", order.CustomerEmail))
	}
	return lines
}

func rupees(paise int64) string {
	return decimal.NewFromInt(paise).Div(decimal.NewFromInt(100)).StringFixed(2)
}
