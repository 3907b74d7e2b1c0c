package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/types"
)

// PrintJob is one unit of physical printer work derived from a paid order.
// At most one exists per order; it never owns the order record.
type PrintJob struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`

	Status          enums.PrintJobStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	PrintingOptions types.PrintingOptions `gorm:"column:printing_options;type:jsonb;serializer:json"`

	PrinterIndex      int     `gorm:"column:printer_index;not null;default:0"`
	Attempts          int     `gorm:"column:attempts;not null;default:0"`
	LastError         *string `gorm:"column:last_error"`
	EstimatedDuration int     `gorm:"column:estimated_duration_seconds;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
