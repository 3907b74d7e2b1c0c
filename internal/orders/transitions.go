package orders

import (
	"fmt"

	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

// transitionTable is the adjacency table of the order lifecycle. A transition
// absent from both the table and the admin override list is rejected.
var transitionTable = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment: {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:           {enums.OrderStatusProcessing},
	enums.OrderStatusProcessing:     {enums.OrderStatusPrinting},
	enums.OrderStatusPrinting:       {enums.OrderStatusDispatched},
	enums.OrderStatusDispatched:     {enums.OrderStatusDelivered},
}

type transitionPair struct {
	From enums.OrderStatus
	To   enums.OrderStatus
}

// adminOverrides lists short-circuit transitions back-office operators can
// apply outside the normal ordering.
var adminOverrides = []transitionPair{
	{enums.OrderStatusPendingPayment, enums.OrderStatusProcessing},
	{enums.OrderStatusPaid, enums.OrderStatusPrinting},
	{enums.OrderStatusPaid, enums.OrderStatusCancelled},
	{enums.OrderStatusProcessing, enums.OrderStatusDispatched},
}

// CanTransition reports whether from→to is in the adjacency table.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitionTable[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsAdminOverride reports whether from→to is an allowed operator override.
func IsAdminOverride(from, to enums.OrderStatus) bool {
	for _, pair := range adminOverrides {
		if pair.From == from && pair.To == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a requested status change. Validation is pure;
// callers persist the result themselves.
func ValidateTransition(from, to enums.OrderStatus, admin bool) error {
	if !from.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", from))
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	if CanTransition(from, to) {
		return nil
	}
	if admin && IsAdminOverride(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("order cannot move from %s to %s", from, to)).
		WithDetails(map[string]string{"from": from.String(), "to": to.String()})
}
