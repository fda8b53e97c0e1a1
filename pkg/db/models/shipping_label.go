package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// ShippingLabel stores the carrier label issued for a shipping order. The
// unique order id is the idempotency key for label creation.
type ShippingLabel struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_shipping_labels_order_id"`
	CarrierLabelID string                    `gorm:"column:carrier_label_id;not null"`
	TrackingNumber string                    `gorm:"column:tracking_number;not null"`
	Carrier        string                    `gorm:"column:carrier;not null"`
	PriceCents     int64                     `gorm:"column:price_cents;not null;default:0"`
	PDFURL         *string                   `gorm:"column:pdf_url"`
	Status         enums.ShippingLabelStatus `gorm:"column:status;type:text;not null;default:'created'"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
