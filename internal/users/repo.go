package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
)

// Repository exposes the user lookups and mutations the settlement and
// dispatch flows need. Reads that find nothing return a nil user, not an
// error.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByAttributionID(ctx context.Context, attributionID string) (*models.User, error)
	FindActiveCouriers(ctx context.Context) ([]models.User, error)
	IncrementLifetimeEarnings(ctx context.Context, userID uuid.UUID, amountCents int64) error
	SetSubscription(ctx context.Context, userID uuid.UUID, planID uuid.UUID, feeBps int64, periodEnd time.Time) error
	ClearSubscription(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.base.DB(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByAttributionID(ctx context.Context, attributionID string) (*models.User, error) {
	var user models.User
	err := r.base.DB(ctx).Where("attribution_id = ?", attributionID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindActiveCouriers returns every active courier with a usable location.
// Couriers without coordinates cannot be matched and are excluded here rather
// than filtered by the caller.
func (r *repository) FindActiveCouriers(ctx context.Context) ([]models.User, error) {
	var couriers []models.User
	err := r.base.DB(ctx).
		Where("is_courier = ? AND is_active = ?", true, true).
		Where("lat IS NOT NULL AND lng IS NOT NULL").
		Find(&couriers).Error
	if err != nil {
		return nil, err
	}
	return couriers, nil
}

func (r *repository) IncrementLifetimeEarnings(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("lifetime_earnings_cents", gorm.Expr("lifetime_earnings_cents + ?", amountCents)).Error
}

func (r *repository) SetSubscription(ctx context.Context, userID uuid.UUID, planID uuid.UUID, feeBps int64, periodEnd time.Time) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"subscription_plan_id":    planID,
			"subscription_fee_bps":    feeBps,
			"subscription_period_end": periodEnd,
		}).Error
}

func (r *repository) ClearSubscription(ctx context.Context, userID uuid.UUID) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"subscription_plan_id":    nil,
			"subscription_fee_bps":    nil,
			"subscription_period_end": nil,
		}).Error
}
