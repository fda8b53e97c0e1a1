package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/cart"
	"github.com/angelmondragon/vendio-backend/internal/stock"
	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/ordernum"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type decrementer func(ctx context.Context, tx *gorm.DB, requests []stock.DecrementRequest) error

type reservationConfirmer func(ctx context.Context, tx *gorm.DB, sessionID string, productIDs []uuid.UUID) error

// BuildParams carries everything needed to turn a paid session into an order
// aggregate.
type BuildParams struct {
	BuyerID          uuid.UUID
	SessionID        string
	TotalAmountCents int64
	Items            []cart.Item
	Meta             cart.SessionMeta
}

// BuildResult reports the created (or previously existing) aggregate.
type BuildResult struct {
	Order   *models.Order
	Created bool
}

// Service builds the order aggregate atomically.
type Service interface {
	Build(ctx context.Context, params BuildParams) (*BuildResult, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	decrement   decrementer
	confirm     reservationConfirmer
	orderNumber func(time.Time) string
	now         func() time.Time
}

// NewService wires the order aggregate builder.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		decrement:   stock.Decrement,
		confirm:     stock.ConfirmReservations,
		orderNumber: ordernum.ForProductOrder,
		now:         time.Now,
	}, nil
}

// Build creates the order, its items, the stock decrements and the
// reservation confirmations inside one transaction. An existing order for the
// session short-circuits: the persisted aggregate is the durable proof a
// previous delivery already succeeded.
func (s *service) Build(ctx context.Context, params BuildParams) (*BuildResult, error) {
	if params.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if params.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if len(params.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}

	existing, err := s.repo.FindBySessionID(ctx, params.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing order")
	}
	if existing != nil {
		return &BuildResult{Order: existing, Created: false}, nil
	}

	order := s.newOrder(params)

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := txRepo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "idx_orders_session_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists for session")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(params.Items))
		requests := make([]stock.DecrementRequest, 0, len(params.Items))
		for _, item := range params.Items {
			items = append(items, models.OrderItem{
				OrderID:              order.ID,
				ProductID:            item.ProductID,
				SellerID:             item.SellerID,
				Quantity:             item.Quantity,
				PriceCentsAtPurchase: item.PriceCents,
			})
			requests = append(requests, stock.DecrementRequest{
				ProductID: item.ProductID,
				Qty:       item.Quantity,
			})
		}
		if err := txRepo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		if err := s.decrement(ctx, tx, requests); err != nil {
			return err
		}

		productIDs := lo.Map(params.Items, func(item cart.Item, _ int) uuid.UUID {
			return item.ProductID
		})
		return s.confirm(ctx, tx, params.SessionID, productIDs)
	})
	if txErr != nil {
		// a partially-committed sibling delivery may have created the order
		// before our error surfaced; prefer acknowledging success then
		if existing, checkErr := s.repo.FindBySessionID(ctx, params.SessionID); checkErr == nil && existing != nil {
			return &BuildResult{Order: existing, Created: false}, nil
		}
		return nil, txErr
	}

	return &BuildResult{Order: order, Created: true}, nil
}

func (s *service) newOrder(params BuildParams) *models.Order {
	mode := enums.MapDeliveryMode(params.Meta.DeliveryModeRaw)

	total := params.TotalAmountCents
	if total <= 0 {
		total = lo.SumBy(params.Items, func(item cart.Item) int64 {
			return item.PriceCents * int64(item.Quantity)
		})
	}

	order := &models.Order{
		BuyerID:          params.BuyerID,
		SessionID:        params.SessionID,
		OrderNumber:      s.orderNumber(s.now()),
		Status:           enums.OrderStatusConfirmed,
		TotalAmountCents: total,
		DeliveryMode:     mode,
		DeliveryFeeCents: params.Meta.DeliveryFeeCents,
		ShippingAddress:  params.Meta.ShippingAddress,
	}
	if mode == enums.DeliveryModeShipping {
		trigger := enums.PayoutTriggerDelivered
		order.PaymentHeld = true
		order.PayoutTrigger = &trigger
	}
	return order
}
