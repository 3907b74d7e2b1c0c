package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
)

// Repository is the persistence surface for orders and their print jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderRef(ctx context.Context, orderRef string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.Order, error)
	ListAwaitingPayment(ctx context.Context) ([]models.Order, error)
	ListAwaitingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)

	// MarkPaid performs the single conditional update that flips an order
	// to paid. It returns true when this caller won the update.
	MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string) (bool, error)
	// CancelIfAwaitingPayment cancels only while the order is still
	// pending_payment. It returns false when a payment flip got there first.
	CancelIfAwaitingPayment(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	SetDeliveryNumber(ctx context.Context, id uuid.UUID, deliveryNumber string) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error

	CreatePrintJobIfAbsent(ctx context.Context, job *models.PrintJob) (bool, error)
	FindPrintJob(ctx context.Context, orderID uuid.UUID) (*models.PrintJob, error)
	UpdatePrintJob(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ListPrintJobsByStatus(ctx context.Context, status enums.PrintJobStatus) ([]models.PrintJob, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderRef(ctx context.Context, orderRef string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "order_ref = ?", orderRef).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "gateway_order_id = ?", gatewayOrderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *repository) ListAwaitingPayment(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("status = ?", enums.OrderStatusPendingPayment).
		Where("gateway_order_id <> ''").
		Find(&out).Error
	return out, err
}

func (r *repository) ListAwaitingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusPendingPayment).
		Where("created_at < ?", cutoff).
		Find(&out).Error
	return out, err
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Where("payment_status <> ?", enums.PaymentStatusCompleted).
		Updates(map[string]any{
			"payment_status":     enums.PaymentStatusCompleted,
			"gateway_payment_id": gatewayPaymentID,
			"status":             enums.OrderStatusPaid,
			"production_status":  enums.OrderStatusPaid.Production(),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CancelIfAwaitingPayment(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Where("status = ?", enums.OrderStatusPendingPayment).
		Updates(map[string]any{
			"status":            enums.OrderStatusCancelled,
			"production_status": enums.OrderStatusCancelled.Production(),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            status,
			"production_status": status.Production(),
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) SetDeliveryNumber(ctx context.Context, id uuid.UUID, deliveryNumber string) error {
	// Assigned once; concurrent assignments keep the first value.
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Where("delivery_number IS NULL").
		Update("delivery_number", deliveryNumber).Error
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) CreatePrintJobIfAbsent(ctx context.Context, job *models.PrintJob) (bool, error) {
	var existing models.PrintJob
	err := r.db.WithContext(ctx).First(&existing, "order_id = ?", job.OrderID).Error
	if err == nil {
		*job = existing
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) FindPrintJob(ctx context.Context, orderID uuid.UUID) (*models.PrintJob, error) {
	var job models.PrintJob
	if err := r.db.WithContext(ctx).First(&job, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) UpdatePrintJob(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) ListPrintJobsByStatus(ctx context.Context, status enums.PrintJobStatus) ([]models.PrintJob, error) {
	var out []models.PrintJob
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
