package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

// OpenParams describes the buyer/seller thread opened for an order.
type OpenParams struct {
	OrderID     uuid.UUID
	OrderNumber string
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	// PickupAddress, when present, is announced in the seeded system message
	// so the buyer knows where to collect.
	PickupAddress *types.Address
}

// Service opens order threads and seeds the opening system message.
type Service interface {
	OpenThread(ctx context.Context, params OpenParams) (*models.Conversation, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "conversations repository required")
	}
	return &service{repo: repo}, nil
}

// OpenThread creates the thread for an order, or returns the existing one.
// The unique order id index makes the creation safe under replays.
func (s *service) OpenThread(ctx context.Context, params OpenParams) (*models.Conversation, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if params.BuyerID == uuid.Nil || params.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and seller ids required")
	}

	existing, err := s.repo.FindByOrderID(ctx, params.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing conversation")
	}
	if existing != nil {
		return existing, nil
	}

	conversation := &models.Conversation{
		OrderID:  params.OrderID,
		BuyerID:  params.BuyerID,
		SellerID: params.SellerID,
	}
	if err := s.repo.Create(ctx, conversation); err != nil {
		if db.IsUniqueViolation(err, "idx_conversations_order_id") {
			if existing, checkErr := s.repo.FindByOrderID(ctx, params.OrderID); checkErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create conversation")
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		SenderID:       nil,
		Body:           openingMessage(params),
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed system message")
	}

	return conversation, nil
}

func openingMessage(params OpenParams) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Order %s confirmed.", params.OrderNumber)
	if addr := params.PickupAddress; addr != nil && addr.Line1 != "" {
		fmt.Fprintf(&sb, " Pickup at %s", addr.Line1)
		if addr.City != "" {
			fmt.Fprintf(&sb, ", %s", addr.City)
		}
		sb.WriteString(".")
	}
	return sb.String()
}
