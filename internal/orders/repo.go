package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// Repository exposes order aggregate persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) error
	CreateDeliveryOrder(ctx context.Context, delivery *models.DeliveryOrder) error
	FindDeliveryOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds an order repository backed by the provided GORM handle.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).Preload("Items").First(&order, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Create(order).Error
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&items).Error
}

func (r *repository) UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"tracking_number": trackingNumber,
			"carrier":         carrier,
		}).Error
}

func (r *repository) CreateDeliveryOrder(ctx context.Context, delivery *models.DeliveryOrder) error {
	if delivery.Status == "" {
		delivery.Status = enums.DeliveryOrderStatusPending
	}
	return r.base.DB(ctx).Create(delivery).Error
}

func (r *repository) FindDeliveryOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error) {
	var deliveries []models.DeliveryOrder
	err := r.base.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&deliveries).Error
	return deliveries, err
}
