package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents the canonical seller listing. Stock is nullable: nil
// means the seller does not track quantity and decrements are skipped.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID   uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	Stock      *int      `gorm:"column:stock"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
