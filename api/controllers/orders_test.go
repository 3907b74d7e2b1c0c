package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	internalorders "github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

type fakeOrderService struct {
	summary    *internalorders.OrderSummary
	list       []internalorders.OrderSummary
	err        error
	lastCreate internalorders.CreateOrderInput
	lastTarget enums.OrderStatus
	lastAdmin  bool
}

func (f *fakeOrderService) Create(_ context.Context, input internalorders.CreateOrderInput) (*internalorders.OrderSummary, error) {
	f.lastCreate = input
	return f.summary, f.err
}

func (f *fakeOrderService) Get(context.Context, string) (*internalorders.OrderSummary, error) {
	return f.summary, f.err
}

func (f *fakeOrderService) List(context.Context, int) ([]internalorders.OrderSummary, error) {
	return f.list, f.err
}

func (f *fakeOrderService) ApplyTransition(_ context.Context, _ string, to enums.OrderStatus, admin bool) (*internalorders.OrderSummary, error) {
	f.lastTarget = to
	f.lastAdmin = admin
	return f.summary, f.err
}

func newOrderRouter(svc internalorders.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", OrderCreate(svc, testLogger()))
	r.Get("/orders", OrderList(svc, testLogger()))
	r.Get("/orders/{orderRef}", OrderDetail(svc, testLogger()))
	r.Post("/orders/{orderRef}/transition", OrderTransition(svc, testLogger()))
	return r
}

func TestOrderCreateReturnsCreated(t *testing.T) {
	svc := &fakeOrderService{summary: &internalorders.OrderSummary{OrderID: "PM-CTRL-2", Status: "pending_payment"}}
	router := newOrderRouter(svc)

	body := `{"orderType":"file","fileUrl":"https://cdn.example.com/doc.pdf","printCostPaise":7000}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if svc.lastCreate.Type != enums.OrderTypeFile || svc.lastCreate.PrintCostPaise != 7000 {
		t.Errorf("service got %+v", svc.lastCreate)
	}
}

func TestOrderCreateRejectsUnknownType(t *testing.T) {
	router := newOrderRouter(&fakeOrderService{})

	body := `{"orderType":"poster","printCostPaise":7000}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestOrderTransitionPassesAdminFlag(t *testing.T) {
	svc := &fakeOrderService{summary: &internalorders.OrderSummary{OrderID: "PM-CTRL-2", Status: "processing"}}
	router := newOrderRouter(svc)

	body := `{"status":"processing","admin":true}`
	req := httptest.NewRequest(http.MethodPost, "/orders/PM-CTRL-2/transition", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if svc.lastTarget != enums.OrderStatusProcessing || !svc.lastAdmin {
		t.Errorf("service got target=%s admin=%v", svc.lastTarget, svc.lastAdmin)
	}
}

func TestOrderTransitionSurfacesStateConflict(t *testing.T) {
	svc := &fakeOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "transition delivered to paid is not allowed").
		WithDetails(map[string]string{"from": "delivered", "to": "paid"})}
	router := newOrderRouter(svc)

	body := `{"status":"paid"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/PM-CTRL-2/transition", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	var envelope struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeStateConflict) {
		t.Errorf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Details["from"] != "delivered" || envelope.Error.Details["to"] != "paid" {
		t.Errorf("details = %v", envelope.Error.Details)
	}
}

func TestOrderListRejectsOutOfRangeLimit(t *testing.T) {
	svc := &fakeOrderService{list: []internalorders.OrderSummary{{OrderID: "PM-1"}}}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders?limit=9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range limit must be rejected, got %d", w.Code)
	}
}
