package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// Transaction records one captured money movement: one per (order, line item)
// for sellers, one per delivery leg for couriers. Immutable except status.
type Transaction struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID    *uuid.UUID              `gorm:"column:order_item_id;type:uuid"`
	BuyerID        uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID       uuid.UUID               `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents    int64                   `gorm:"column:amount_cents;not null"`
	PlatformFeeBps int64                   `gorm:"column:platform_fee_bps;not null"`
	Status         enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'captured'"`
	ProviderRef    *string                 `gorm:"column:provider_ref"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
