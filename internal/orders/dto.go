package orders

import (
	"time"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/types"
)

// CreateOrderInput carries everything needed to open a new order in
// pending_payment.
type CreateOrderInput struct {
	Type            enums.OrderType
	FileURL         string
	TemplateID      string
	TemplateDocxURL string
	TemplateFields  map[string]string
	TemplatePaise   int64
	PrintCostPaise  int64
	PrintingOptions types.PrintingOptions
	CustomerEmail   string
	CustomerPhone   string
}

// OrderSummary is the client-visible shape of an order.
type OrderSummary struct {
	OrderID          string    `json:"orderId"`
	Type             string    `json:"orderType"`
	Status           string    `json:"status"`
	ProductionStatus string    `json:"orderStatus"`
	PaymentStatus    string    `json:"paymentStatus"`
	AmountPaise      int64     `json:"amount"`
	GatewayOrderID   string    `json:"gatewayOrderId,omitempty"`
	DeliveryNumber   *string   `json:"deliveryNumber"`
	FileURL          *string   `json:"fileUrl,omitempty"`
	FilledDocxURL    *string   `json:"filledDocxUrl,omitempty"`
	FilledPDFURL     *string   `json:"filledPdfUrl,omitempty"`
	InvoiceURL       *string   `json:"invoiceUrl,omitempty"`
	ConversionStatus string    `json:"pdfConversionStatus,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ToSummary projects a stored order onto its API shape.
func ToSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		OrderID:          order.OrderRef,
		Type:             order.Type.String(),
		Status:           order.Status.String(),
		ProductionStatus: order.ProductionStatus.String(),
		PaymentStatus:    order.PaymentStatus.String(),
		AmountPaise:      order.AmountPaise,
		GatewayOrderID:   order.GatewayOrderID,
		DeliveryNumber:   order.DeliveryNumber,
		FileURL:          order.FileURL,
		FilledDocxURL:    order.FilledDocxURL,
		FilledPDFURL:     order.FilledPDFURL,
		InvoiceURL:       order.InvoiceURL,
		ConversionStatus: order.PDFConversionStatus.String(),
		CreatedAt:        order.CreatedAt,
	}
}
