package shippinglabels

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
)

// Repository persists issued carrier labels.
type Repository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ShippingLabel, error)
	Create(ctx context.Context, label *models.ShippingLabel) error
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ShippingLabel, error) {
	var label models.ShippingLabel
	err := r.base.DB(ctx).Where("order_id = ?", orderID).First(&label).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &label, nil
}

func (r *repository) Create(ctx context.Context, label *models.ShippingLabel) error {
	return r.base.DB(ctx).Create(label).Error
}
