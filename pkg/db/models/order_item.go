package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots one purchased line. Immutable once created.
type OrderItem struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID            uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	SellerID             *uuid.UUID `gorm:"column:seller_id;type:uuid"`
	Quantity             int        `gorm:"column:quantity;not null"`
	PriceCentsAtPurchase int64      `gorm:"column:price_cents_at_purchase;not null"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
}
