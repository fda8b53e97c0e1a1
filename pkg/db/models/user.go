package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/types"
)

// User is the canonical identity entity: buyers, sellers and couriers share
// the table and differ by role flags.
type User struct {
	ID                    uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                 string         `gorm:"type:text;not null;uniqueIndex"`
	FirstName             string         `gorm:"column:first_name;not null"`
	LastName              string         `gorm:"column:last_name;not null"`
	Phone                 *string        `gorm:"column:phone"`
	IsActive              bool           `gorm:"column:is_active;not null;default:true"`
	IsSeller              bool           `gorm:"column:is_seller;not null;default:false"`
	IsCourier             bool           `gorm:"column:is_courier;not null;default:false"`
	SMSNotifications      bool           `gorm:"column:sms_notifications;not null;default:false"`
	StripeAccountID       *string        `gorm:"column:stripe_account_id"`
	AttributionID         *string        `gorm:"column:attribution_id"`
	Lat                   *float64       `gorm:"column:lat"`
	Lng                   *float64       `gorm:"column:lng"`
	MaxRadiusKm           *float64       `gorm:"column:max_radius_km"`
	Address               *types.Address `gorm:"column:address;type:jsonb;serializer:json"`
	LifetimeEarningsCents int64          `gorm:"column:lifetime_earnings_cents;not null;default:0"`
	SubscriptionPlanID    *uuid.UUID     `gorm:"column:subscription_plan_id;type:uuid"`
	SubscriptionFeeBps    *int64         `gorm:"column:subscription_fee_bps"`
	SubscriptionPeriodEnd *time.Time     `gorm:"column:subscription_period_end"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCoordinates reports whether the profile carries a usable location.
func (u *User) HasCoordinates() bool {
	return u != nil && u.Lat != nil && u.Lng != nil
}
