package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/types"
)

// Order is the root aggregate for one customer purchase, either an uploaded
// file print or a template-derived print.
type Order struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderRef string          `gorm:"column:order_ref;uniqueIndex;not null"`
	Type     enums.OrderType `gorm:"column:order_type;type:text;not null"`

	// Status and ProductionStatus are written in lockstep: ProductionStatus is
	// always derived from Status via enums.OrderStatus.Production.
	Status           enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	ProductionStatus enums.ProductionStatus `gorm:"column:production_status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null;default:'pending'"`

	AmountPaise      int64   `gorm:"column:amount_paise;not null"`
	GatewayOrderID   string  `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`
	DeliveryNumber   *string `gorm:"column:delivery_number"`

	FileURL       *string `gorm:"column:file_url"`
	FilledDocxURL *string `gorm:"column:filled_docx_url"`
	FilledPDFURL  *string `gorm:"column:filled_pdf_url"`
	InvoiceURL    *string `gorm:"column:invoice_url"`

	PDFConversionStatus enums.ConversionStatus `gorm:"column:pdf_conversion_status;type:text;not null;default:'pending'"`
	RenderJobID         *string                `gorm:"column:render_job_id;index"`

	TemplateID         *uuid.UUID `gorm:"column:template_id;type:uuid"`
	TemplatePricePaise int64      `gorm:"column:template_price_paise;not null;default:0"`
	CreatorSharePaise  int64      `gorm:"column:creator_share_paise;not null;default:0"`
	PlatformSharePaise int64      `gorm:"column:platform_share_paise;not null;default:0"`

	PrintingOptions types.PrintingOptions `gorm:"column:printing_options;type:jsonb;serializer:json"`

	CustomerEmail string `gorm:"column:customer_email"`
	CustomerPhone string `gorm:"column:customer_phone"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SourceDocumentURL returns the document that feeds printing, preferring the
// converted PDF for template orders.
func (o *Order) SourceDocumentURL() string {
	if o.Type == enums.OrderTypeTemplate {
		if o.FilledPDFURL != nil && *o.FilledPDFURL != "" {
			return *o.FilledPDFURL
		}
		if o.FilledDocxURL != nil {
			return *o.FilledDocxURL
		}
		return ""
	}
	if o.FileURL != nil {
		return *o.FileURL
	}
	return ""
}
