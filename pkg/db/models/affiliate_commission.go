package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// AffiliateCommission credits an attribution id with a share of the platform
// fee, keyed by (order, product) for checkout or by invoice for subscription
// billing.
type AffiliateCommission struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       *uuid.UUID `gorm:"column:order_id;type:uuid;index"`
	InvoiceID     *string    `gorm:"column:invoice_id;index"`
	ProductID     *uuid.UUID `gorm:"column:product_id;type:uuid"`
	AttributionID string     `gorm:"column:attribution_id;not null;index"`
	Beneficiary   string     `gorm:"column:beneficiary;not null"`
	AmountCents   int64      `gorm:"column:amount_cents;not null"`
	FeeCents      int64      `gorm:"column:fee_cents;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// CommissionReversal cancels a previously recorded commission. Uniqueness is
// scoped to the (refund reference, commission) pair so one refund can reverse
// every commission on the order while duplicate attempts stay no-ops.
type CommissionReversal struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CommissionID uuid.UUID            `gorm:"column:commission_id;type:uuid;not null;index;uniqueIndex:idx_commission_reversals_refund_ref,priority:2"`
	RefundRef    string               `gorm:"column:refund_ref;not null;uniqueIndex:idx_commission_reversals_refund_ref,priority:1"`
	Reason       enums.ReversalReason `gorm:"column:reason;type:text;not null"`
	AmountCents  int64                `gorm:"column:amount_cents;not null"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}
