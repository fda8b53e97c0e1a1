package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// PaymentEscrow holds a seller payout for shipping orders until the order
// reaches the configured trigger status.
type PaymentEscrow struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_payment_escrows_order_seller,priority:1"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:idx_payment_escrows_order_seller,priority:2"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	PayoutTrigger enums.PayoutTrigger `gorm:"column:payout_trigger;type:text;not null;default:'delivered'"`
	CurrentStatus enums.EscrowStatus  `gorm:"column:current_status;type:text;not null;default:'held'"`
	ReleasedAt    *time.Time          `gorm:"column:released_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
