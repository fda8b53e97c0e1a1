package conversations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/repo"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
)

// Repository persists order conversation threads and their messages.
type Repository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	CreateMessage(ctx context.Context, message *models.Message) error
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.base.DB(ctx).Where("order_id = ?", orderID).First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *repository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.base.DB(ctx).Create(conversation).Error
}

func (r *repository) CreateMessage(ctx context.Context, message *models.Message) error {
	return r.base.DB(ctx).Create(message).Error
}
