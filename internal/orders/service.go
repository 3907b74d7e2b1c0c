package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printmitra/printmitra-backend/internal/templates"
	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/razorpay"
)

type gatewayOrderCreator interface {
	CreateOrder(ctx context.Context, amountPaise int64, receipt string, notes map[string]string) (*razorpay.Order, error)
}

type documentStore interface {
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	Download(ctx context.Context, objectURL string) ([]byte, error)
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderSummary, error)
	Get(ctx context.Context, orderRef string) (*OrderSummary, error)
	List(ctx context.Context, limit int) ([]OrderSummary, error)
	ApplyTransition(ctx context.Context, orderRef string, to enums.OrderStatus, admin bool) (*OrderSummary, error)
}

// ServiceParams bundles the service dependencies. Storage is optional: without
// it template orders keep the caller-supplied DOCX URL unfilled.
type ServiceParams struct {
	Repo    Repository
	Gateway gatewayOrderCreator
	Storage documentStore
	Orders  config.OrderConfig
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	gateway gatewayOrderCreator
	storage documentStore
	cfg     config.OrderConfig
	logg    *logger.Logger
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		gateway: params.Gateway,
		storage: params.Storage,
		cfg:     params.Orders,
		logg:    params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderSummary, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order type must be file or template")
	}
	if input.Type == enums.OrderTypeFile && input.FileURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file orders require an uploaded file url")
	}
	if input.Type == enums.OrderTypeTemplate && input.TemplateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template orders require a template id")
	}
	if input.PrintCostPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "print cost must be positive")
	}

	amount := input.PrintCostPaise
	record := buildOrderRecord(input)
	if input.Type == enums.OrderTypeTemplate && input.TemplatePaise > 0 {
		shares := SplitTemplatePrice(input.TemplatePaise, s.cfg.CommissionPercent)
		record.TemplatePricePaise = input.TemplatePaise
		record.CreatorSharePaise = shares.CreatorPaise
		record.PlatformSharePaise = shares.PlatformPaise
		amount += input.TemplatePaise
	}
	amount += s.cfg.TemplateSurcharge * surchargeMultiplier(input.Type)
	record.AmountPaise = amount

	if input.Type == enums.OrderTypeTemplate && input.TemplateDocxURL != "" {
		filledURL, err := s.fillTemplate(ctx, record.OrderRef, input)
		if err != nil {
			return nil, err
		}
		record.FilledDocxURL = &filledURL
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, amount, record.OrderRef, map[string]string{
		"order_ref":  record.OrderRef,
		"order_type": input.Type.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}
	record.GatewayOrderID = gatewayOrder.ID

	if err := s.repo.CreateOrder(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	ctx = s.logg.WithOrderID(ctx, record.OrderRef)
	s.logg.Info(ctx, "order created")

	summary := ToSummary(record)
	return &summary, nil
}

// fillTemplate resolves the template DOCX, substitutes the customer fields and
// stores the filled copy under the order's object prefix.
func (s *service) fillTemplate(ctx context.Context, orderRef string, input CreateOrderInput) (string, error) {
	if s.storage == nil {
		return input.TemplateDocxURL, nil
	}

	docx, err := s.storage.Download(ctx, input.TemplateDocxURL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch template document")
	}
	filled, err := templates.Fill(docx, input.TemplateFields)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "fill template document")
	}
	objectPath := fmt.Sprintf("orders/%s/filled.docx", orderRef)
	url, err := s.storage.Upload(ctx, filled, objectPath, docxContentType)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store filled document")
	}
	return url, nil
}

func (s *service) Get(ctx context.Context, orderRef string) (*OrderSummary, error) {
	order, err := s.findByRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	summary := ToSummary(order)
	return &summary, nil
}

func (s *service) List(ctx context.Context, limit int) ([]OrderSummary, error) {
	records, err := s.repo.ListOrders(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderSummary, 0, len(records))
	for i := range records {
		out = append(out, ToSummary(&records[i]))
	}
	return out, nil
}

func (s *service) ApplyTransition(ctx context.Context, orderRef string, to enums.OrderStatus, admin bool) (*OrderSummary, error) {
	order, err := s.findByRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(order.Status, to, admin); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, to); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = to
	order.ProductionStatus = to.Production()

	ctx = s.logg.WithOrderID(ctx, order.OrderRef)
	s.logg.Info(ctx, "order status updated")

	summary := ToSummary(order)
	return &summary, nil
}

func (s *service) findByRef(ctx context.Context, orderRef string) (*models.Order, error) {
	if orderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByOrderRef(ctx, orderRef)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func buildOrderRecord(input CreateOrderInput) *models.Order {
	record := &models.Order{
		ID:                  uuid.New(),
		OrderRef:            NewOrderRef(),
		Type:                input.Type,
		Status:              enums.OrderStatusPendingPayment,
		ProductionStatus:    enums.OrderStatusPendingPayment.Production(),
		PaymentStatus:       enums.PaymentStatusPending,
		PDFConversionStatus: enums.ConversionStatusPending,
		PrintingOptions:     input.PrintingOptions.Normalized(),
		CustomerEmail:       input.CustomerEmail,
		CustomerPhone:       input.CustomerPhone,
	}
	if input.FileURL != "" {
		record.FileURL = &input.FileURL
	}
	if input.TemplateID != "" {
		if id, err := uuid.Parse(input.TemplateID); err == nil {
			record.TemplateID = &id
		}
	}
	return record
}

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func surchargeMultiplier(orderType enums.OrderType) int64 {
	if orderType == enums.OrderTypeTemplate {
		return 1
	}
	return 0
}

// NewOrderRef mints a client-visible order identifier.
func NewOrderRef() string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("PM-%s-%s", time.Now().UTC().Format("20060102"), fragment)
}
