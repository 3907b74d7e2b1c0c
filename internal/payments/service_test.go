package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/printmitra/printmitra-backend/internal/conversion"
	"github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/internal/printing"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/razorpay"
)

const testGatewaySecret = "test_secret"

func signConfirmation(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeGateway struct{}

func (fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return razorpay.VerifySignature(testGatewaySecret, orderID, paymentID, signature)
}

type fakeRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	printJobs map[uuid.UUID]*models.PrintJob

	markPaidWins int
	jobUpdates   []map[string]any
	statusWrites []enums.OrderStatus
}

func newFakeRepo(seed ...*models.Order) *fakeRepo {
	r := &fakeRepo{
		orders:    map[uuid.UUID]*models.Order{},
		printJobs: map[uuid.UUID]*models.PrintJob{},
	}
	for _, o := range seed {
		copied := *o
		r.orders[o.ID] = &copied
	}
	return r
}

func (r *fakeRepo) WithTx(*gorm.DB) orders.Repository { return r }

func (r *fakeRepo) CreateOrder(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindByOrderRef(_ context.Context, ref string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderRef == ref {
			copied := *o
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.GatewayOrderID == gatewayOrderID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) ListOrders(context.Context, int) ([]models.Order, error)     { return nil, nil }
func (r *fakeRepo) ListAwaitingPayment(context.Context) ([]models.Order, error) { return nil, nil }
func (r *fakeRepo) ListAwaitingPaymentBefore(context.Context, time.Time) ([]models.Order, error) {
	return nil, nil
}

func (r *fakeRepo) MarkPaid(_ context.Context, id uuid.UUID, gatewayPaymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if o.PaymentStatus == enums.PaymentStatusCompleted {
		return false, nil
	}
	o.PaymentStatus = enums.PaymentStatusCompleted
	o.GatewayPaymentID = &gatewayPaymentID
	o.Status = enums.OrderStatusPaid
	o.ProductionStatus = o.Status.Production()
	r.markPaidWins++
	return true, nil
}

func (r *fakeRepo) CancelIfAwaitingPayment(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if o.Status != enums.OrderStatusPendingPayment {
		return false, nil
	}
	o.Status = enums.OrderStatusCancelled
	o.ProductionStatus = o.Status.Production()
	return true, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.Status = status
		o.ProductionStatus = status.Production()
		r.statusWrites = append(r.statusWrites, status)
	}
	return nil
}

func (r *fakeRepo) SetDeliveryNumber(_ context.Context, id uuid.UUID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok && o.DeliveryNumber == nil {
		o.DeliveryNumber = &number
	}
	return nil
}

func (r *fakeRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	return nil
}

func (r *fakeRepo) CreatePrintJobIfAbsent(_ context.Context, job *models.PrintJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.printJobs[job.OrderID]; ok {
		*job = *existing
		return false, nil
	}
	copied := *job
	r.printJobs[job.OrderID] = &copied
	return true, nil
}

func (r *fakeRepo) FindPrintJob(_ context.Context, orderID uuid.UUID) (*models.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.printJobs[orderID]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpdatePrintJob(_ context.Context, _ uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobUpdates = append(r.jobUpdates, fields)
	return nil
}

func (r *fakeRepo) ListPrintJobsByStatus(context.Context, enums.PrintJobStatus) ([]models.PrintJob, error) {
	return nil, nil
}

type fakeDispatcher struct {
	mu        sync.Mutex
	calls     int
	err       error
	result    printing.DispatchResult
	endpoints []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ *models.Order, _ int) (printing.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return printing.DispatchResult{Success: false, Message: f.err.Error()}, f.err
	}
	return f.result, nil
}

func (f *fakeDispatcher) Endpoints() []string { return f.endpoints }

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRetry struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (f *fakeRetry) Enqueue(orderID uuid.UUID, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, orderID)
}

type fakeConversion struct {
	mu    sync.Mutex
	calls int
	urls  []string
}

func (f *fakeConversion) SubmitAsync(_ context.Context, _ *models.Order, docxURL string) (*conversion.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, docxURL)
	return &conversion.Job{JobID: "job-1"}, nil
}

type fakeInvoices struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvoices) Generate(context.Context, *models.Order) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "https://storage.example.com/invoice.pdf", true
}

func (f *fakeInvoices) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []enums.NotificationEvent
}

func (f *fakeNotifier) NotifyOnce(_ context.Context, event enums.NotificationEvent, _ string, _ map[string]any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return true
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard})
}

type fixture struct {
	svc        Service
	repo       *fakeRepo
	dispatcher *fakeDispatcher
	retry      *fakeRetry
	conversion *fakeConversion
	invoices   *fakeInvoices
	notifier   *fakeNotifier
}

func newFixture(t *testing.T, seed ...*models.Order) *fixture {
	t.Helper()
	f := &fixture{
		repo: newFakeRepo(seed...),
		dispatcher: &fakeDispatcher{
			result:    printing.DispatchResult{Success: true, EstimatedSecs: 120},
			endpoints: []string{"http://printer-a:9100", "http://printer-b:9100"},
		},
		retry:      &fakeRetry{},
		conversion: &fakeConversion{},
		invoices:   &fakeInvoices{},
		notifier:   &fakeNotifier{},
	}
	svc, err := NewService(ServiceParams{
		Repo:       f.repo,
		Gateway:    fakeGateway{},
		Dispatcher: f.dispatcher,
		Retry:      f.retry,
		Conversion: f.conversion,
		Invoices:   f.invoices,
		Notifier:   f.notifier,
		Logger:     testLogger(),
		Now:        func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	f.svc = svc
	return f
}

func fileOrder() *models.Order {
	fileURL := "https://storage.example.com/orders/doc.pdf"
	return &models.Order{
		ID:             uuid.New(),
		OrderRef:       "PM-PAY-1",
		Type:           enums.OrderTypeFile,
		Status:         enums.OrderStatusPendingPayment,
		PaymentStatus:  enums.PaymentStatusPending,
		AmountPaise:    7000,
		GatewayOrderID: "order_gw_1",
		FileURL:        &fileURL,
		CustomerEmail:  "c@example.com",
	}
}

func templateOrder() *models.Order {
	docxURL := "https://storage.example.com/orders/filled.docx"
	templateID := uuid.New()
	return &models.Order{
		ID:             uuid.New(),
		OrderRef:       "PM-PAY-2",
		Type:           enums.OrderTypeTemplate,
		Status:         enums.OrderStatusPendingPayment,
		PaymentStatus:  enums.PaymentStatusPending,
		AmountPaise:    12000,
		GatewayOrderID: "order_gw_2",
		FilledDocxURL:  &docxURL,
		TemplateID:     &templateID,
	}
}

func TestVerifyHappyPathFileOrder(t *testing.T) {
	seed := fileOrder()
	f := newFixture(t, seed)

	input := VerifyInput{
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: "pay_1",
		Signature:        signConfirmation("order_gw_1", "pay_1"),
	}
	order, err := f.svc.Verify(context.Background(), input)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if order.PaymentStatus != enums.PaymentStatusCompleted {
		t.Errorf("payment status = %s", order.PaymentStatus)
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID != "pay_1" {
		t.Error("gateway payment id not recorded")
	}
	if order.Status != enums.OrderStatusPrinting {
		t.Errorf("expected printing after successful dispatch, got %s", order.Status)
	}
	// The lifecycle steps through processing, never paid -> printing directly.
	wantWrites := []enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPrinting}
	if len(f.repo.statusWrites) != len(wantWrites) {
		t.Fatalf("status writes = %v", f.repo.statusWrites)
	}
	for i, want := range wantWrites {
		if f.repo.statusWrites[i] != want {
			t.Errorf("status write %d = %s, want %s", i, f.repo.statusWrites[i], want)
		}
	}
	if order.DeliveryNumber == nil || !strings.HasPrefix(*order.DeliveryNumber, "PMD-") {
		t.Errorf("delivery number not assigned: %v", order.DeliveryNumber)
	}

	if f.dispatcher.callCount() != 1 {
		t.Errorf("dispatcher calls = %d", f.dispatcher.callCount())
	}
	if f.conversion.calls != 0 {
		t.Error("file order must not trigger conversion")
	}
	if f.invoices.callCount() != 1 {
		t.Errorf("invoice calls = %d", f.invoices.callCount())
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0] != enums.NotificationPaymentConfirmed {
		t.Errorf("unexpected notifications %v", f.notifier.events)
	}
	if _, ok := f.repo.printJobs[seed.ID]; !ok {
		t.Error("print job not created")
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	f := newFixture(t, fileOrder())

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: "pay_1",
		Signature:        "deadbeef",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.repo.markPaidWins != 0 {
		t.Error("bad signature must not touch the order")
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_gw_missing",
		GatewayPaymentID: "pay_1",
		Signature:        signConfirmation("order_gw_missing", "pay_1"),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyReplayShortCircuits(t *testing.T) {
	f := newFixture(t, fileOrder())
	input := VerifyInput{
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: "pay_1",
		Signature:        signConfirmation("order_gw_1", "pay_1"),
	}

	if _, err := f.svc.Verify(context.Background(), input); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	replayed, err := f.svc.Verify(context.Background(), input)
	if err != nil {
		t.Fatalf("replay verify: %v", err)
	}

	if replayed.PaymentStatus != enums.PaymentStatusCompleted {
		t.Errorf("replay returned %s", replayed.PaymentStatus)
	}
	if f.repo.markPaidWins != 1 {
		t.Errorf("conditional update won %d times", f.repo.markPaidWins)
	}
	if f.dispatcher.callCount() != 1 {
		t.Errorf("replay re-ran dispatch: %d calls", f.dispatcher.callCount())
	}
	if f.invoices.callCount() != 1 {
		t.Errorf("replay re-ran invoicing: %d calls", f.invoices.callCount())
	}
}

func TestVerifyConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, fileOrder())
	input := VerifyInput{
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: "pay_1",
		Signature:        signConfirmation("order_gw_1", "pay_1"),
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Verify(context.Background(), input)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("verify %d returned error: %v", i, err)
		}
	}
	if f.repo.markPaidWins != 1 {
		t.Errorf("expected exactly one conditional update win, got %d", f.repo.markPaidWins)
	}
	if f.dispatcher.callCount() != 1 {
		t.Errorf("downstream dispatch ran %d times", f.dispatcher.callCount())
	}
	if f.invoices.callCount() != 1 {
		t.Errorf("invoice ran %d times", f.invoices.callCount())
	}
}

func TestVerifyTemplateOrderTriggersConversion(t *testing.T) {
	f := newFixture(t, templateOrder())

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_gw_2",
		GatewayPaymentID: "pay_2",
		Signature:        signConfirmation("order_gw_2", "pay_2"),
	})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if f.conversion.calls != 1 {
		t.Fatalf("conversion calls = %d", f.conversion.calls)
	}
	if f.conversion.urls[0] != "https://storage.example.com/orders/filled.docx" {
		t.Errorf("conversion got %q", f.conversion.urls[0])
	}
	if f.dispatcher.callCount() != 0 {
		t.Error("template order without pdf must wait for conversion before dispatch")
	}
}

func TestVerifyTemplateWithPDFDispatchesDirectly(t *testing.T) {
	seed := templateOrder()
	pdfURL := "https://storage.example.com/orders/filled.pdf"
	seed.FilledPDFURL = &pdfURL
	f := newFixture(t, seed)

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_gw_2",
		GatewayPaymentID: "pay_2",
		Signature:        signConfirmation("order_gw_2", "pay_2"),
	})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if f.dispatcher.callCount() != 1 || f.conversion.calls != 0 {
		t.Errorf("dispatch=%d conversion=%d", f.dispatcher.callCount(), f.conversion.calls)
	}
}

func TestVerifyDispatchFailureEnqueuesRetry(t *testing.T) {
	seed := fileOrder()
	f := newFixture(t, seed)
	f.dispatcher.err = errors.New("printer unreachable")

	order, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: "pay_1",
		Signature:        signConfirmation("order_gw_1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("dispatch failure must not fail verification: %v", err)
	}

	// The order is accepted for production but never reaches printing until
	// a printer takes the job.
	if order.PaymentStatus != enums.PaymentStatusCompleted || order.Status != enums.OrderStatusProcessing {
		t.Errorf("payment state disturbed: %s/%s", order.PaymentStatus, order.Status)
	}
	if len(f.retry.enqueued) != 1 || f.retry.enqueued[0] != seed.ID {
		t.Errorf("retry queue got %v", f.retry.enqueued)
	}
}
