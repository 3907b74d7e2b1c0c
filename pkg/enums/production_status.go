package enums

import "fmt"

// ProductionStatus is the customer-facing view of where an order sits in
// the production pipeline. It is derived from OrderStatus.
type ProductionStatus string

const (
	ProductionStatusPending    ProductionStatus = "pending"
	ProductionStatusPrinting   ProductionStatus = "printing"
	ProductionStatusDispatched ProductionStatus = "dispatched"
	ProductionStatusDelivered  ProductionStatus = "delivered"
)

var validProductionStatuses = []ProductionStatus{
	ProductionStatusPending,
	ProductionStatusPrinting,
	ProductionStatusDispatched,
	ProductionStatusDelivered,
}

// String implements fmt.Stringer.
func (p ProductionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductionStatus.
func (p ProductionStatus) IsValid() bool {
	for _, candidate := range validProductionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductionStatus converts raw input into a ProductionStatus.
func ParseProductionStatus(value string) (ProductionStatus, error) {
	for _, candidate := range validProductionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid production status %q", value)
}
