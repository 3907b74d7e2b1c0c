package webhooks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/printmitra/printmitra-backend/internal/conversion"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*conversion.Job
}

func (f *fakeJobStore) Put(_ context.Context, job *conversion.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobs == nil {
		f.jobs = map[string]*conversion.Job{}
	}
	copied := *job
	f.jobs[job.JobID] = &copied
	return nil
}

func (f *fakeJobStore) Get(_ context.Context, jobID string) (*conversion.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[jobID]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (f *fakeStorage) Upload(_ context.Context, data []byte, objectPath, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[objectPath] = data
	return "https://storage.googleapis.com/pm-bucket/" + objectPath, nil
}

func (f *fakeStorage) Download(_ context.Context, _ string) ([]byte, error) {
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "object not found")
}

type fakeOrders struct {
	mu      sync.Mutex
	order   *models.Order
	updates []map[string]any
}

func (f *fakeOrders) FindByOrderRef(_ context.Context, orderRef string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil || f.order.OrderRef != orderRef {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrders) UpdateFields(_ context.Context, _ uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) NotifyOnce(_ context.Context, event enums.NotificationEvent, dedupID string, _ map[string]any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, string(event)+":"+dedupID)
	return true
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test", Level: zerolog.Disabled, Output: io.Discard})
}

type renderFixture struct {
	handler  http.HandlerFunc
	orders   *fakeOrders
	storage  *fakeStorage
	notifier *fakeNotifier
}

func newRenderFixture(t *testing.T, secret string) *renderFixture {
	t.Helper()
	orders := &fakeOrders{
		order: &models.Order{
			ID:                  uuid.New(),
			OrderRef:            "PM-RW-1",
			Type:                enums.OrderTypeTemplate,
			Status:              enums.OrderStatusPaid,
			PDFConversionStatus: enums.ConversionStatusProcessing,
			CustomerEmail:       "c@example.com",
		},
	}
	storage := &fakeStorage{}
	notifier := &fakeNotifier{}
	svc, err := conversion.NewWebhookService(conversion.WebhookServiceParams{
		Jobs:     &fakeJobStore{},
		Storage:  storage,
		Orders:   orders,
		Notifier: notifier,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewWebhookService: %v", err)
	}
	return &renderFixture{
		handler:  RenderWebhook(svc, secret, quietLogger()),
		orders:   orders,
		storage:  storage,
		notifier: notifier,
	}
}

func postRender(handler http.HandlerFunc, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/render", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Render-Webhook-Secret", secret)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func completedBody(orderRef string) string {
	payload := map[string]any{
		"orderId":   orderRef,
		"jobId":     "job-rw-1",
		"status":    "completed",
		"pdfBuffer": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 rendered")),
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestRenderWebhookRejectsWrongSecret(t *testing.T) {
	f := newRenderFixture(t, "hook-secret")

	w := postRender(f.handler, "not-the-secret", completedBody("PM-RW-1"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if len(f.orders.updates) != 0 {
		t.Errorf("order must not be touched, got %v", f.orders.updates)
	}
}

func TestRenderWebhookSkipsCheckWhenSecretUnset(t *testing.T) {
	f := newRenderFixture(t, "")

	w := postRender(f.handler, "", completedBody("PM-RW-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRenderWebhookCompleted(t *testing.T) {
	f := newRenderFixture(t, "hook-secret")

	w := postRender(f.handler, "hook-secret", completedBody("PM-RW-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var envelope struct {
		Data struct {
			Received bool `json:"received"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Received {
		t.Error("expected received ack")
	}
	if _, ok := f.storage.uploads["orders/PM-RW-1/filled.pdf"]; !ok {
		t.Errorf("pdf not stored, uploads = %v", f.storage.uploads)
	}
	if len(f.orders.updates) != 1 {
		t.Fatalf("updates = %v", f.orders.updates)
	}
	if got := f.orders.updates[0]["pdf_conversion_status"]; got != enums.ConversionStatusCompleted {
		t.Errorf("conversion status = %v", got)
	}
	if len(f.notifier.events) != 1 {
		t.Errorf("events = %v", f.notifier.events)
	}
}

func TestRenderWebhookFailedStillAcked(t *testing.T) {
	f := newRenderFixture(t, "hook-secret")

	body := `{"orderId":"PM-RW-1","jobId":"job-rw-1","status":"failed","error":"soffice crashed"}`
	w := postRender(f.handler, "hook-secret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(f.orders.updates) != 1 {
		t.Fatalf("updates = %v", f.orders.updates)
	}
	if got := f.orders.updates[0]["pdf_conversion_status"]; got != enums.ConversionStatusFailed {
		t.Errorf("conversion status = %v", got)
	}
	if len(f.storage.uploads) != 0 {
		t.Errorf("failed webhook must not upload, got %v", f.storage.uploads)
	}
}

func TestRenderWebhookUnknownOrder(t *testing.T) {
	f := newRenderFixture(t, "hook-secret")

	w := postRender(f.handler, "hook-secret", completedBody("PM-MISSING"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRenderWebhookRejectsMalformedBody(t *testing.T) {
	f := newRenderFixture(t, "hook-secret")

	w := postRender(f.handler, "hook-secret", `{"orderId":"PM-RW-1","status":"sideways"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}
