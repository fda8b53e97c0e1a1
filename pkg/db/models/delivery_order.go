package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

// DeliveryOrder is the unassigned courier task broadcast to eligible
// couriers. Acceptance (first wins) happens downstream.
type DeliveryOrder struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID        uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	CourierID        *uuid.UUID                `gorm:"column:courier_id;type:uuid"`
	Status           enums.DeliveryOrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveryAddress  *types.Address            `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	DeliveryFeeCents int64                     `gorm:"column:delivery_fee_cents;not null;default:0"`
	EstimatedMinutes *int                      `gorm:"column:estimated_minutes"`
	AcceptedAt       *time.Time                `gorm:"column:accepted_at"`
	DeliveredAt      *time.Time                `gorm:"column:delivered_at"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
