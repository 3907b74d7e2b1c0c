package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/printmitra/printmitra-backend/internal/payments"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

type fakePaymentService struct {
	order *models.Order
	err   error
	got   payments.VerifyInput
}

func (f *fakePaymentService) Verify(_ context.Context, input payments.VerifyInput) (*models.Order, error) {
	f.got = input
	return f.order, f.err
}

func (f *fakePaymentService) Settle(_ context.Context, order *models.Order, _ string) (*models.Order, error) {
	return order, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
}

func paidOrder() *models.Order {
	paymentID := "pay_1"
	return &models.Order{
		ID:               uuid.New(),
		OrderRef:         "PM-CTRL-1",
		Type:             enums.OrderTypeFile,
		Status:           enums.OrderStatusPaid,
		ProductionStatus: enums.ProductionStatusPending,
		PaymentStatus:    enums.PaymentStatusCompleted,
		AmountPaise:      7000,
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: &paymentID,
	}
}

func TestPaymentVerifyReturnsSettledOrder(t *testing.T) {
	svc := &fakePaymentService{order: paidOrder()}
	handler := PaymentVerify(svc, testLogger())

	body := `{"razorpayOrderId":"order_gw_1","razorpayPaymentId":"pay_1","razorpaySignature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/verify", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var envelope struct {
		Data struct {
			Success bool `json:"success"`
			Order   struct {
				OrderID       string `json:"orderId"`
				PaymentStatus string `json:"paymentStatus"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Success || envelope.Data.Order.OrderID != "PM-CTRL-1" {
		t.Errorf("unexpected payload %+v", envelope.Data)
	}
	if envelope.Data.Order.PaymentStatus != "completed" {
		t.Errorf("paymentStatus = %s", envelope.Data.Order.PaymentStatus)
	}
	if svc.got.GatewayOrderID != "order_gw_1" {
		t.Errorf("service got %+v", svc.got)
	}
}

func TestPaymentVerifyRejectsMissingFields(t *testing.T) {
	svc := &fakePaymentService{order: paidOrder()}
	handler := PaymentVerify(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/verify", strings.NewReader(`{"razorpayOrderId":"order_gw_1"}`))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.got.GatewayOrderID != "" {
		t.Error("service must not be called for invalid bodies")
	}
}

func TestPaymentVerifyMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad signature", pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature"), http.StatusBadRequest},
		{"unknown order", pkgerrors.New(pkgerrors.CodeNotFound, "order not found for gateway order id"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := PaymentVerify(&fakePaymentService{err: tc.err}, testLogger())
			body := `{"razorpayOrderId":"order_gw_1","razorpayPaymentId":"pay_1","razorpaySignature":"sig"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/verify", strings.NewReader(body))
			w := httptest.NewRecorder()
			handler(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
		})
	}
}
