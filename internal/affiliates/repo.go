package affiliates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
)

// Repository persists affiliate commissions and their reversals.
type Repository interface {
	CreateCommission(ctx context.Context, commission *models.AffiliateCommission) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AffiliateCommission, error)
	FindByInvoice(ctx context.Context, invoiceID string) ([]models.AffiliateCommission, error)
	CreateReversal(ctx context.Context, reversal *models.CommissionReversal) error
	ReversalExists(ctx context.Context, refundRef string, commissionID uuid.UUID) (bool, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) CreateCommission(ctx context.Context, commission *models.AffiliateCommission) error {
	return r.base.DB(ctx).Create(commission).Error
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AffiliateCommission, error) {
	var rows []models.AffiliateCommission
	err := r.base.DB(ctx).Where("order_id = ?", orderID).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByInvoice(ctx context.Context, invoiceID string) ([]models.AffiliateCommission, error) {
	var rows []models.AffiliateCommission
	err := r.base.DB(ctx).Where("invoice_id = ?", invoiceID).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateReversal(ctx context.Context, reversal *models.CommissionReversal) error {
	return r.base.DB(ctx).Create(reversal).Error
}

func (r *repository) ReversalExists(ctx context.Context, refundRef string, commissionID uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.CommissionReversal{}).
		Where("refund_ref = ? AND commission_id = ?", refundRef, commissionID).
		Count(&count).Error
	return count > 0, err
}
