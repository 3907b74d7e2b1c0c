package printing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	result   DispatchResult
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ *models.Order, _ int) (DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return DispatchResult{}, f.err
	}
	if f.calls <= f.failures {
		return DispatchResult{}, pkgerrors.New(pkgerrors.CodeDependency, "printer unreachable")
	}
	return f.result, nil
}

func (f *fakeDispatcher) Endpoints() []string { return []string{"http://printer:9100"} }

type fakeStore struct {
	mu             sync.Mutex
	order          *models.Order
	printJob       *models.PrintJob
	deliveryNumber string
	jobUpdates     []map[string]any
	statusUpdates  []enums.OrderStatus
}

func (f *fakeStore) FindByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *f.order
	return &copied, nil
}

func (f *fakeStore) SetDeliveryNumber(_ context.Context, _ uuid.UUID, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deliveryNumber == "" {
		f.deliveryNumber = dn
	}
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ uuid.UUID, status enums.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeStore) FindPrintJob(_ context.Context, _ uuid.UUID) (*models.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *f.printJob
	return &copied, nil
}

func (f *fakeStore) UpdatePrintJob(_ context.Context, _ uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobUpdates = append(f.jobUpdates, fields)
	return nil
}

func newQueueFixture(t *testing.T, dispatcher *fakeDispatcher) (*RetryQueue, *fakeStore) {
	t.Helper()
	url := "https://storage/docs/a.pdf"
	store := &fakeStore{
		order: &models.Order{
			ID:       uuid.New(),
			OrderRef: "PM-QUEUE-1",
			Type:     enums.OrderTypeFile,
			Status:   enums.OrderStatusProcessing,
			FileURL:  &url,
		},
		printJob: &models.PrintJob{ID: uuid.New(), Status: enums.PrintJobStatusPending},
	}
	store.printJob.OrderID = store.order.ID

	q, err := NewRetryQueue(RetryQueueParams{
		Dispatcher:  dispatcher,
		Store:       store,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("NewRetryQueue returned error: %v", err)
	}
	return q, store
}

func TestRetryQueueSucceedsAfterTransientFailures(t *testing.T) {
	dispatcher := &fakeDispatcher{
		failures: 2,
		result:   DispatchResult{Success: true, DeliveryNumber: "PMD-1-1", EstimatedSecs: 60},
	}
	q, store := newQueueFixture(t, dispatcher)

	q.Enqueue(store.order.ID, 0)
	q.Drain(context.Background())

	if dispatcher.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", dispatcher.calls)
	}
	if store.deliveryNumber != "PMD-1-1" {
		t.Errorf("delivery number not persisted, got %q", store.deliveryNumber)
	}
	if len(store.statusUpdates) != 1 || store.statusUpdates[0] != enums.OrderStatusPrinting {
		t.Errorf("expected order moved to printing, got %v", store.statusUpdates)
	}
	if len(store.jobUpdates) != 1 || store.jobUpdates[0]["status"] != enums.PrintJobStatusPrinting {
		t.Errorf("expected print job marked printing, got %v", store.jobUpdates)
	}
}

func TestRetryQueueWalksPaidOrderThroughProcessing(t *testing.T) {
	dispatcher := &fakeDispatcher{result: DispatchResult{Success: true, DeliveryNumber: "PMD-1-2"}}
	q, store := newQueueFixture(t, dispatcher)
	store.order.Status = enums.OrderStatusPaid

	q.Enqueue(store.order.ID, 0)
	q.Drain(context.Background())

	want := []enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusPrinting}
	if len(store.statusUpdates) != len(want) {
		t.Fatalf("status updates = %v", store.statusUpdates)
	}
	for i, status := range want {
		if store.statusUpdates[i] != status {
			t.Errorf("status update %d = %s, want %s", i, store.statusUpdates[i], status)
		}
	}
}

func TestRetryQueueExhaustionSurfacesFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{failures: 100}
	q, store := newQueueFixture(t, dispatcher)

	q.Enqueue(store.order.ID, 0)
	q.Drain(context.Background())

	// MaxAttempts=3 means 1 initial + 3 retries.
	if dispatcher.calls != 4 {
		t.Errorf("expected 4 attempts, got %d", dispatcher.calls)
	}
	if len(store.jobUpdates) != 1 || store.jobUpdates[0]["status"] != enums.PrintJobStatusFailed {
		t.Fatalf("expected print job marked failed, got %v", store.jobUpdates)
	}
	if store.jobUpdates[0]["last_error"] == "" {
		t.Error("expected last_error to be recorded")
	}
	if len(store.statusUpdates) != 0 {
		t.Errorf("order status must not change on exhaustion, got %v", store.statusUpdates)
	}
}

func TestRetryQueueEnqueueDeduplicatesPerOrder(t *testing.T) {
	dispatcher := &fakeDispatcher{result: DispatchResult{Success: true, DeliveryNumber: "PMD-1-1"}}
	q, store := newQueueFixture(t, dispatcher)

	q.Enqueue(store.order.ID, 0)
	q.Enqueue(store.order.ID, 1)
	if q.Len() != 1 {
		t.Fatalf("expected one queued job, got %d", q.Len())
	}

	q.Drain(context.Background())
	if dispatcher.calls != 1 {
		t.Errorf("expected one dispatch, got %d", dispatcher.calls)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after drain, got %d", q.Len())
	}
}

func TestRetryQueueDropsCancelledOrders(t *testing.T) {
	dispatcher := &fakeDispatcher{result: DispatchResult{Success: true}}
	q, store := newQueueFixture(t, dispatcher)
	store.order.Status = enums.OrderStatusCancelled

	q.Enqueue(store.order.ID, 0)
	q.Drain(context.Background())

	if dispatcher.calls != 0 {
		t.Errorf("cancelled order must not be dispatched, got %d calls", dispatcher.calls)
	}
}

func TestRetryQueueDoesNotRetryValidationErrors(t *testing.T) {
	dispatcher := &fakeDispatcher{err: pkgerrors.New(pkgerrors.CodeValidation, "order has no printable document")}
	q, store := newQueueFixture(t, dispatcher)

	q.Enqueue(store.order.ID, 0)
	q.Drain(context.Background())

	if dispatcher.calls != 1 {
		t.Errorf("validation failures must not be retried, got %d calls", dispatcher.calls)
	}
	if len(store.jobUpdates) != 1 || store.jobUpdates[0]["status"] != enums.PrintJobStatusFailed {
		t.Errorf("expected job surfaced as failed, got %v", store.jobUpdates)
	}
}
