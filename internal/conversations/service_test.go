package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

func TestOpenThread_SeedsSystemMessage(t *testing.T) {
	t.Parallel()

	repo := &stubConversationRepo{}
	svc := newConversationService(t, repo)

	params := OpenParams{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-42",
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
	}
	conversation, err := svc.OpenThread(context.Background(), params)
	if err != nil {
		t.Fatalf("open thread: %v", err)
	}
	if conversation.OrderID != params.OrderID {
		t.Fatalf("unexpected order linkage: %s", conversation.OrderID)
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected 1 seeded message, got %d", len(repo.messages))
	}
	msg := repo.messages[0]
	if msg.SenderID != nil {
		t.Fatal("opening message must be a system message")
	}
	if msg.Body != "Order ORD-42 confirmed." {
		t.Fatalf("unexpected body: %q", msg.Body)
	}
}

func TestOpenThread_AnnouncesPickupAddress(t *testing.T) {
	t.Parallel()

	repo := &stubConversationRepo{}
	svc := newConversationService(t, repo)

	_, err := svc.OpenThread(context.Background(), OpenParams{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-42",
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		PickupAddress: &types.Address{
			Line1: "5 Rue du Marche",
			City:  "Lyon",
		},
	})
	if err != nil {
		t.Fatalf("open thread: %v", err)
	}
	if repo.messages[0].Body != "Order ORD-42 confirmed. Pickup at 5 Rue du Marche, Lyon." {
		t.Fatalf("unexpected body: %q", repo.messages[0].Body)
	}
}

func TestOpenThread_ExistingThreadReturned(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	existing := &models.Conversation{ID: uuid.New(), OrderID: orderID}
	repo := &stubConversationRepo{existing: existing}
	svc := newConversationService(t, repo)

	conversation, err := svc.OpenThread(context.Background(), OpenParams{
		OrderID:  orderID,
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("open thread: %v", err)
	}
	if conversation.ID != existing.ID {
		t.Fatal("expected the existing thread back")
	}
	if len(repo.created) != 0 || len(repo.messages) != 0 {
		t.Fatal("replay must not write")
	}
}

func TestOpenThread_UniqueViolationRefetches(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	winner := &models.Conversation{ID: uuid.New(), OrderID: orderID}
	repo := &stubConversationRepo{
		createErr:      errors.New(`duplicate key value violates unique constraint "idx_conversations_order_id"`),
		existingOnSecondLookup: winner,
	}
	svc := newConversationService(t, repo)

	conversation, err := svc.OpenThread(context.Background(), OpenParams{
		OrderID:  orderID,
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("open thread: %v", err)
	}
	if conversation.ID != winner.ID {
		t.Fatal("expected the winner's thread")
	}
	if len(repo.messages) != 0 {
		t.Fatal("losing the race must not seed a second message")
	}
}

func TestOpenThread_Rejections(t *testing.T) {
	t.Parallel()

	svc := newConversationService(t, &stubConversationRepo{})

	for name, params := range map[string]OpenParams{
		"missing order":  {BuyerID: uuid.New(), SellerID: uuid.New()},
		"missing buyer":  {OrderID: uuid.New(), SellerID: uuid.New()},
		"missing seller": {OrderID: uuid.New(), BuyerID: uuid.New()},
	} {
		_, err := svc.OpenThread(context.Background(), params)
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func newConversationService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type stubConversationRepo struct {
	existing               *models.Conversation
	existingOnSecondLookup *models.Conversation
	createErr              error

	lookups  int
	created  []*models.Conversation
	messages []*models.Message
}

func (s *stubConversationRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error) {
	s.lookups++
	if s.existing != nil {
		return s.existing, nil
	}
	if s.lookups > 1 {
		return s.existingOnSecondLookup, nil
	}
	return nil, nil
}

func (s *stubConversationRepo) Create(ctx context.Context, conversation *models.Conversation) error {
	if s.createErr != nil {
		return s.createErr
	}
	conversation.ID = uuid.New()
	s.created = append(s.created, conversation)
	return nil
}

func (s *stubConversationRepo) CreateMessage(ctx context.Context, message *models.Message) error {
	s.messages = append(s.messages, message)
	return nil
}
