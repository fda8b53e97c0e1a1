package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// StockReservation is created at cart-initiation time and confirmed inside
// the order transaction so a replayed session is not counted twice.
type StockReservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID string                  `gorm:"column:session_id;not null;index:idx_stock_reservations_session"`
	ProductID uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int                     `gorm:"column:quantity;not null;default:0"`
	Status    enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
