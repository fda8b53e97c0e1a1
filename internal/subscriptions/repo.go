package subscriptions

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
)

// Repository persists subscription plans and per-seller subscription state.
type Repository interface {
	FindPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error)
	FindPlanByPriceID(ctx context.Context, priceID string) (*models.SubscriptionPlan, error)
	FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Upsert(ctx context.Context, subscription *models.Subscription) error
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) FindPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.base.DB(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindPlanByPriceID(ctx context.Context, priceID string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.base.DB(ctx).Where("LOWER(provider_price_id) = ?", strings.ToLower(priceID)).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.base.DB(ctx).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.base.DB(ctx).Where("user_id = ?", userID).First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// Upsert inserts or refreshes the row keyed by user id.
func (r *repository) Upsert(ctx context.Context, subscription *models.Subscription) error {
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_subscription_id",
			"plan_id",
			"status",
			"started_at",
			"current_period_end",
			"updated_at",
		}),
	}).Create(subscription).Error
}
