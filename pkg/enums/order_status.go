package enums

import "fmt"

// OrderStatus is the canonical order lifecycle state.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusPrinting       OrderStatus = "printing"
	OrderStatusDispatched     OrderStatus = "dispatched"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusPrinting,
	OrderStatusDispatched,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// Production maps the canonical status onto the customer-facing
// production vocabulary. The stored production_status column is always
// written from this projection, never on its own.
func (o OrderStatus) Production() ProductionStatus {
	switch o {
	case OrderStatusPrinting:
		return ProductionStatusPrinting
	case OrderStatusDispatched:
		return ProductionStatusDispatched
	case OrderStatusDelivered:
		return ProductionStatusDelivered
	default:
		return ProductionStatusPending
	}
}
