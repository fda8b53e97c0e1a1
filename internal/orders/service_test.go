package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/internal/cart"
	"github.com/angelmondragon/vendio-backend/internal/stock"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
)

func TestBuild_CreatesOrderAggregate(t *testing.T) {
	t.Parallel()

	repo := &stubOrderRepo{}
	svc := newStubService(repo)
	sellerID := uuid.New()

	result, err := svc.Build(context.Background(), BuildParams{
		BuyerID:   uuid.New(),
		SessionID: "cs_test_1",
		Items: []cart.Item{
			{ProductID: uuid.New(), Quantity: 2, PriceCents: 1000, SellerID: &sellerID},
			{ProductID: uuid.New(), Quantity: 1, PriceCents: 500, SellerID: &sellerID},
		},
		Meta: cart.SessionMeta{DeliveryModeRaw: "pickup"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !result.Created {
		t.Fatal("expected created order")
	}
	if repo.createdOrder == nil {
		t.Fatal("order not persisted")
	}
	if len(repo.createdItems) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(repo.createdItems))
	}
	if result.Order.TotalAmountCents != 2500 {
		t.Fatalf("expected derived total 2500, got %d", result.Order.TotalAmountCents)
	}
	if result.Order.DeliveryMode != enums.DeliveryModePickup {
		t.Fatalf("unexpected delivery mode: %s", result.Order.DeliveryMode)
	}
	if result.Order.PaymentHeld {
		t.Fatal("pickup order must not hold payment")
	}
	if result.Order.OrderNumber == "" {
		t.Fatal("order number missing")
	}
}

func TestBuild_ShippingHoldsPayment(t *testing.T) {
	t.Parallel()

	repo := &stubOrderRepo{}
	svc := newStubService(repo)

	result, err := svc.Build(context.Background(), BuildParams{
		BuyerID:          uuid.New(),
		SessionID:        "cs_test_ship",
		TotalAmountCents: 4200,
		Items: []cart.Item{
			{ProductID: uuid.New(), Quantity: 1, PriceCents: 4200},
		},
		Meta: cart.SessionMeta{DeliveryModeRaw: "shipping"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !result.Order.PaymentHeld {
		t.Fatal("shipping order must hold payment")
	}
	if result.Order.PayoutTrigger == nil || *result.Order.PayoutTrigger != enums.PayoutTriggerDelivered {
		t.Fatalf("unexpected payout trigger: %v", result.Order.PayoutTrigger)
	}
	if result.Order.TotalAmountCents != 4200 {
		t.Fatalf("provided total ignored: %d", result.Order.TotalAmountCents)
	}
}

func TestBuild_ExistingSessionShortCircuits(t *testing.T) {
	t.Parallel()

	existing := &models.Order{ID: uuid.New(), SessionID: "cs_test_dup"}
	repo := &stubOrderRepo{existing: existing}
	svc := newStubService(repo)

	result, err := svc.Build(context.Background(), BuildParams{
		BuyerID:   uuid.New(),
		SessionID: "cs_test_dup",
		Items:     []cart.Item{{ProductID: uuid.New(), Quantity: 1, PriceCents: 100}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Created {
		t.Fatal("replay must not report a new order")
	}
	if result.Order.ID != existing.ID {
		t.Fatalf("expected the persisted order back, got %s", result.Order.ID)
	}
	if repo.createdOrder != nil {
		t.Fatal("replay must not write")
	}
}

func TestBuild_UniqueViolationRecheckPrefersWinner(t *testing.T) {
	t.Parallel()

	winner := &models.Order{ID: uuid.New(), SessionID: "cs_test_race"}
	repo := &stubOrderRepo{
		createErr: errors.New(`duplicate key value violates unique constraint "idx_orders_session_id"`),
		// the first existence check misses, the post-failure re-check hits
		existingAfterCreate: winner,
	}
	svc := newStubService(repo)

	result, err := svc.Build(context.Background(), BuildParams{
		BuyerID:   uuid.New(),
		SessionID: "cs_test_race",
		Items:     []cart.Item{{ProductID: uuid.New(), Quantity: 1, PriceCents: 100}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Created {
		t.Fatal("losing the race must not report a new order")
	}
	if result.Order.ID != winner.ID {
		t.Fatalf("expected winner's order, got %s", result.Order.ID)
	}
}

func TestBuild_OutOfStockAborts(t *testing.T) {
	t.Parallel()

	repo := &stubOrderRepo{}
	svc := newStubService(repo)
	svc.decrement = func(ctx context.Context, tx *gorm.DB, requests []stock.DecrementRequest) error {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")
	}

	_, err := svc.Build(context.Background(), BuildParams{
		BuyerID:   uuid.New(),
		SessionID: "cs_test_oos",
		Items:     []cart.Item{{ProductID: uuid.New(), Quantity: 5, PriceCents: 100}},
	})
	if err == nil {
		t.Fatal("expected out-of-stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuild_Rejections(t *testing.T) {
	t.Parallel()

	svc := newStubService(&stubOrderRepo{})
	item := cart.Item{ProductID: uuid.New(), Quantity: 1, PriceCents: 100}

	for name, params := range map[string]BuildParams{
		"missing buyer":   {SessionID: "cs_1", Items: []cart.Item{item}},
		"missing session": {BuyerID: uuid.New(), Items: []cart.Item{item}},
		"no items":        {BuyerID: uuid.New(), SessionID: "cs_1"},
	} {
		_, err := svc.Build(context.Background(), params)
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func newStubService(repo *stubOrderRepo) *service {
	return &service{
		tx:   stubTxRunner{},
		repo: repo,
		decrement: func(ctx context.Context, tx *gorm.DB, requests []stock.DecrementRequest) error {
			return nil
		},
		confirm: func(ctx context.Context, tx *gorm.DB, sessionID string, productIDs []uuid.UUID) error {
			return nil
		},
		orderNumber: func(time.Time) string { return "ORD-TEST-0001" },
		now:         time.Now,
	}
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOrderRepo struct {
	existing            *models.Order
	existingAfterCreate *models.Order
	createErr           error

	createdOrder *models.Order
	createdItems []models.OrderItem
	createTried  bool
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if s.existing != nil {
		return s.existing, nil
	}
	if s.createTried && s.existingAfterCreate != nil {
		return s.existingAfterCreate, nil
	}
	return nil, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	s.createTried = true
	if s.createErr != nil {
		return s.createErr
	}
	order.ID = uuid.New()
	s.createdOrder = order
	return nil
}

func (s *stubOrderRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	s.createdItems = append(s.createdItems, items...)
	return nil
}

func (s *stubOrderRepo) UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) error {
	return nil
}

func (s *stubOrderRepo) CreateDeliveryOrder(ctx context.Context, delivery *models.DeliveryOrder) error {
	return nil
}

func (s *stubOrderRepo) FindDeliveryOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error) {
	return nil, nil
}
