package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

// Order is the aggregate produced exactly once per checkout session. The
// unique session id is the durable idempotency proof for replayed events.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	SessionID        string               `gorm:"column:session_id;not null;uniqueIndex:idx_orders_session_id"`
	OrderNumber      string               `gorm:"column:order_number;not null"`
	Status           enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'confirmed'"`
	TotalAmountCents int64                `gorm:"column:total_amount_cents;not null"`
	DeliveryMode     enums.DeliveryMode   `gorm:"column:delivery_mode;type:text;not null;default:'pickup'"`
	DeliveryFeeCents int64                `gorm:"column:delivery_fee_cents;not null;default:0"`
	PaymentHeld      bool                 `gorm:"column:payment_held;not null;default:false"`
	PayoutTrigger    *enums.PayoutTrigger `gorm:"column:payout_trigger;type:text"`
	ShippingAddress  *types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	TrackingNumber   *string              `gorm:"column:tracking_number"`
	Carrier          *string              `gorm:"column:carrier"`
	Items            []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveredAt      *time.Time           `gorm:"column:delivered_at"`
	CancelledAt      *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
