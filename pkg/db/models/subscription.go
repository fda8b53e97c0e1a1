package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// SubscriptionPlan maps a provider price to the seller fee tier it buys.
type SubscriptionPlan struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string    `gorm:"column:name;not null;uniqueIndex"`
	ProviderPriceID string    `gorm:"column:provider_price_id;not null"`
	FeeBps          int64     `gorm:"column:fee_bps;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Subscription persists provider subscription state per seller (upsert on
// user id).
type Subscription struct {
	ID                     uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                 uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_subscriptions_user_id"`
	ProviderSubscriptionID string                   `gorm:"column:provider_subscription_id;not null;uniqueIndex"`
	PlanID                 *uuid.UUID               `gorm:"column:plan_id;type:uuid"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'active'"`
	StartedAt              time.Time                `gorm:"column:started_at;not null"`
	CurrentPeriodEnd       *time.Time               `gorm:"column:current_period_end"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
