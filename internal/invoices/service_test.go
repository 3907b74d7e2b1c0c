package invoices

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

type fakeStorage struct {
	uploads map[string][]byte
	err     error
}

func (f *fakeStorage) Upload(_ context.Context, data []byte, objectPath, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[objectPath] = data
	return "https://storage.googleapis.com/pm-bucket/" + objectPath, nil
}

type fakeOrders struct {
	updates []map[string]any
	err     error
}

func (f *fakeOrders) UpdateFields(_ context.Context, _ uuid.UUID, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, fields)
	return nil
}

type fakeNotifier struct {
	events []enums.NotificationEvent
}

func (f *fakeNotifier) NotifyOnce(_ context.Context, event enums.NotificationEvent, _ string, _ map[string]any) bool {
	f.events = append(f.events, event)
	return true
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard})
}

func newTestService(t *testing.T, storage *fakeStorage, orders *fakeOrders, notifier *fakeNotifier) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Storage:  storage,
		Orders:   orders,
		Notifier: notifier,
		Logger:   testLogger(),
		Now:      func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func testOrder() *models.Order {
	paymentID := "pay_test_1"
	return &models.Order{
		ID:                 uuid.New(),
		OrderRef:           "PM-INV-1",
		Type:               enums.OrderTypeTemplate,
		AmountPaise:        12000,
		TemplatePricePaise: 5000,
		GatewayPaymentID:   &paymentID,
		CustomerEmail:      "c@example.com",
	}
}

func TestGenerateUploadsAndAttaches(t *testing.T) {
	storage := &fakeStorage{}
	orders := &fakeOrders{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, storage, orders, notifier)

	url, ok := svc.Generate(context.Background(), testOrder())
	if !ok {
		t.Fatal("expected success")
	}
	if !strings.HasSuffix(url, "orders/PM-INV-1/invoice.pdf") {
		t.Errorf("unexpected invoice url %q", url)
	}

	pdf := storage.uploads["orders/PM-INV-1/invoice.pdf"]
	if !bytes.HasPrefix(pdf, []byte("%PDF-1.4")) || !bytes.HasSuffix(pdf, []byte("%%EOF\n")) {
		t.Error("uploaded object is not a pdf document")
	}
	if !bytes.Contains(pdf, []byte("PM-INV-1")) || !bytes.Contains(pdf, []byte("120.00")) {
		t.Error("invoice body missing order reference or amount")
	}

	if len(orders.updates) != 1 || orders.updates[0]["invoice_url"] != url {
		t.Errorf("invoice url not attached: %v", orders.updates)
	}
	if len(notifier.events) != 1 || notifier.events[0] != enums.NotificationInvoiceReady {
		t.Errorf("expected invoice_ready notification, got %v", notifier.events)
	}
}

func TestGenerateIsIdempotentPerOrder(t *testing.T) {
	storage := &fakeStorage{}
	orders := &fakeOrders{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, storage, orders, notifier)

	existing := "https://storage.googleapis.com/pm-bucket/orders/PM-INV-1/invoice.pdf"
	order := testOrder()
	order.InvoiceURL = &existing

	url, ok := svc.Generate(context.Background(), order)
	if !ok || url != existing {
		t.Fatalf("expected existing invoice to be returned, got %q ok=%v", url, ok)
	}
	if len(storage.uploads) != 0 || len(orders.updates) != 0 || len(notifier.events) != 0 {
		t.Error("existing invoice must not be regenerated")
	}
}

func TestGenerateSwallowsFailures(t *testing.T) {
	storage := &fakeStorage{err: errors.New("bucket unavailable")}
	orders := &fakeOrders{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, storage, orders, notifier)

	url, ok := svc.Generate(context.Background(), testOrder())
	if ok || url != "" {
		t.Errorf("upload failure must report not-ok, got %q ok=%v", url, ok)
	}
	if len(notifier.events) != 0 {
		t.Error("no notification without an invoice")
	}

	// Attach failure still hands back the URL for the caller's logs.
	storage = &fakeStorage{}
	orders = &fakeOrders{err: errors.New("db down")}
	svc = newTestService(t, storage, orders, notifier)
	url, ok = svc.Generate(context.Background(), testOrder())
	if ok || url == "" {
		t.Errorf("attach failure must report not-ok with url, got %q ok=%v", url, ok)
	}
}

func TestRenderPDFEscapesText(t *testing.T) {
	pdf := renderPDF("Invoice (draft)", []string{`path\to (file)`})
	if !bytes.Contains(pdf, []byte(`Invoice \(draft\)`)) {
		t.Error("title parentheses not escaped")
	}
	if !bytes.Contains(pdf, []byte(`path\\to \(file\)`)) {
		t.Error("line text not escaped")
	}
	if !bytes.Contains(pdf, []byte("startxref")) {
		t.Error("missing xref trailer")
	}
}
