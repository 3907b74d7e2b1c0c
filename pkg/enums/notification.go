package enums

import "fmt"

// NotificationEvent names the customer-facing events the notifier can emit.
type NotificationEvent string

const (
	NotificationPaymentConfirmed NotificationEvent = "payment_confirmed"
	NotificationPDFReady         NotificationEvent = "pdf_ready"
	NotificationConversionFailed NotificationEvent = "conversion_failed"
	NotificationOrderDispatched  NotificationEvent = "order_dispatched"
	NotificationInvoiceReady     NotificationEvent = "invoice_ready"
)

var validNotificationEvents = []NotificationEvent{
	NotificationPaymentConfirmed,
	NotificationPDFReady,
	NotificationConversionFailed,
	NotificationOrderDispatched,
	NotificationInvoiceReady,
}

// String implements fmt.Stringer.
func (n NotificationEvent) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationEvent.
func (n NotificationEvent) IsValid() bool {
	for _, candidate := range validNotificationEvents {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationEvent converts raw input into a NotificationEvent.
func ParseNotificationEvent(value string) (NotificationEvent, error) {
	for _, candidate := range validNotificationEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification event %q", value)
}
