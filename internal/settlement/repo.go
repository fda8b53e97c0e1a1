package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

// Repository persists the settlement ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransactions(ctx context.Context, transactions []models.Transaction) error
	CreatePayout(ctx context.Context, payout *models.Payout) error
	SetPayoutProviderRef(ctx context.Context, payoutID uuid.UUID, providerRef string, paidAt *time.Time) error
	CreateEscrow(ctx context.Context, escrow *models.PaymentEscrow) error
	FindEscrow(ctx context.Context, orderID, sellerID uuid.UUID) (*models.PaymentEscrow, error)
	ReleaseEscrows(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)
	HasTransactionsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) CreateTransactions(ctx context.Context, transactions []models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&transactions).Error
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	return r.base.DB(ctx).Create(payout).Error
}

func (r *repository) SetPayoutProviderRef(ctx context.Context, payoutID uuid.UUID, providerRef string, paidAt *time.Time) error {
	updates := map[string]any{"provider_ref": providerRef}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	return r.base.DB(ctx).Model(&models.Payout{}).
		Where("id = ?", payoutID).
		Updates(updates).Error
}

func (r *repository) CreateEscrow(ctx context.Context, escrow *models.PaymentEscrow) error {
	return r.base.DB(ctx).Create(escrow).Error
}

func (r *repository) FindEscrow(ctx context.Context, orderID, sellerID uuid.UUID) (*models.PaymentEscrow, error) {
	var escrow models.PaymentEscrow
	err := r.base.DB(ctx).
		Where("order_id = ? AND seller_id = ?", orderID, sellerID).
		First(&escrow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) ReleaseEscrows(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	result := r.base.DB(ctx).Model(&models.PaymentEscrow{}).
		Where("order_id = ? AND current_status = ?", orderID, enums.EscrowStatusHeld).
		Updates(map[string]any{
			"current_status": enums.EscrowStatusReleased,
			"released_at":    at,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) HasTransactionsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Transaction{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count > 0, err
}
