package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout tracks the transfer owed to a seller or courier. ProviderRef is
// filled once the external transfer succeeds; a failed_<unix> sentinel marks a
// transfer failure that is reconciled out-of-band.
type Payout struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID  `gorm:"column:transaction_id;type:uuid;not null;index"`
	ToUserID      uuid.UUID  `gorm:"column:to_user_id;type:uuid;not null;index"`
	AmountCents   int64      `gorm:"column:amount_cents;not null"`
	ProviderRef   *string    `gorm:"column:provider_ref"`
	PaidAt        *time.Time `gorm:"column:paid_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
