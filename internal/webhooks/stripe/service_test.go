package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/vendio-backend/internal/affiliates"
	"github.com/angelmondragon/vendio-backend/internal/conversations"
	"github.com/angelmondragon/vendio-backend/internal/dispatch"
	"github.com/angelmondragon/vendio-backend/internal/notifications"
	"github.com/angelmondragon/vendio-backend/internal/orders"
	"github.com/angelmondragon/vendio-backend/internal/settlement"
	"github.com/angelmondragon/vendio-backend/internal/shippinglabels"
	"github.com/angelmondragon/vendio-backend/internal/subscriptions"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

func TestHandleEvent_CheckoutCompleted(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	buyer := &models.User{ID: uuid.New()}
	seller := &models.User{ID: uuid.New(), Address: &types.Address{Line1: "5 Rue du Marche", City: "Lyon", PostalCode: "69001", Country: "FR"}}
	deps.users.users = map[uuid.UUID]*models.User{buyer.ID: buyer, seller.ID: seller}

	order := pickupOrder(buyer.ID, seller.ID)
	deps.orders.result = &orders.BuildResult{Order: order, Created: true}
	deps.settlement.result = &settlement.SettleResult{
		Breakdowns: []settlement.Breakdown{{
			SellerID: seller.ID,
			Lines: []settlement.LineBreakdown{
				{OrderItemID: order.Items[0].ID, ProductID: order.Items[0].ProductID, AmountCents: 2000, PlatformFeeCents: 240},
			},
		}},
	}

	svc := newWebhookService(t, deps)
	event := checkoutEvent(t, buyer.ID, order.Items[0].ProductID, seller.ID, "pickup")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if deps.orders.calls != 1 {
		t.Fatalf("expected one order build, got %d", deps.orders.calls)
	}
	if deps.settlement.settled != 1 {
		t.Fatalf("expected one settlement, got %d", deps.settlement.settled)
	}
	if len(deps.affiliates.recorded) != 1 {
		t.Fatalf("expected one commission per settled line, got %d", len(deps.affiliates.recorded))
	}
	if deps.affiliates.recorded[0].PlatformFeeCents != 240 {
		t.Fatalf("commission fed the wrong fee: %d", deps.affiliates.recorded[0].PlatformFeeCents)
	}
	if len(deps.conversations.opened) != 1 {
		t.Fatalf("expected one thread, got %d", len(deps.conversations.opened))
	}
	if deps.conversations.opened[0].PickupAddress != seller.Address {
		t.Fatal("pickup thread must carry the seller address")
	}
	// buyer confirmation plus one seller notification
	if len(deps.notifications.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(deps.notifications.sent))
	}
	if deps.dispatchSvc.calls != 0 || deps.labels.calls != 0 {
		t.Fatal("pickup orders neither dispatch nor ship")
	}
}

func TestHandleEvent_CheckoutReplaySettlesButSkipsFanOut(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	buyer := uuid.New()
	seller := uuid.New()
	order := pickupOrder(buyer, seller)
	deps.orders.result = &orders.BuildResult{Order: order, Created: false}
	deps.settlement.result = &settlement.SettleResult{}

	svc := newWebhookService(t, deps)
	event := checkoutEvent(t, buyer, order.Items[0].ProductID, seller, "pickup")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if deps.settlement.settled != 1 {
		t.Fatal("replay must still reconcile the ledger")
	}
	if len(deps.affiliates.recorded) != 0 || len(deps.notifications.sent) != 0 {
		t.Fatal("replay must not fan out")
	}
}

func TestHandleEvent_CheckoutShippingIssuesLabel(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	buyer := uuid.New()
	seller := uuid.New()
	order := pickupOrder(buyer, seller)
	order.DeliveryMode = enums.DeliveryModeShipping
	deps.orders.result = &orders.BuildResult{Order: order, Created: true}
	deps.settlement.result = &settlement.SettleResult{Escrowed: true}

	svc := newWebhookService(t, deps)
	event := checkoutEvent(t, buyer, order.Items[0].ProductID, seller, "shipping")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if deps.labels.calls != 1 {
		t.Fatalf("expected label purchase, got %d", deps.labels.calls)
	}
	if deps.dispatchSvc.calls != 0 {
		t.Fatal("shipping orders must not dispatch couriers")
	}
}

func TestHandleEvent_CheckoutDeliveryDispatches(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	buyer := uuid.New()
	seller := uuid.New()
	order := pickupOrder(buyer, seller)
	order.DeliveryMode = enums.DeliveryModeDelivery
	deps.orders.result = &orders.BuildResult{Order: order, Created: true}
	deps.settlement.result = &settlement.SettleResult{}

	svc := newWebhookService(t, deps)
	event := checkoutEvent(t, buyer, order.Items[0].ProductID, seller, "delivery")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if deps.dispatchSvc.calls != 1 {
		t.Fatalf("expected courier dispatch, got %d", deps.dispatchSvc.calls)
	}
	if deps.dispatchSvc.last.BuyerLat == nil || *deps.dispatchSvc.last.BuyerLat != 48.8566 {
		t.Fatalf("buyer coordinates not forwarded: %+v", deps.dispatchSvc.last)
	}
}

func TestHandleEvent_CheckoutWithoutBuyerIsTerminal(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	svc := newWebhookService(t, deps)

	session := &stripe.CheckoutSession{ID: "cs_no_buyer", Metadata: map[string]string{}}
	err := svc.HandleEvent(context.Background(), marshalEvent(t, stripe.EventTypeCheckoutSessionCompleted, session, nil))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkgerrors.IsRetryable(err) {
		t.Fatal("a malformed session must never be redelivered")
	}
}

func TestHandleEvent_UnknownEventAcks(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	svc := newWebhookService(t, deps)

	event := &stripe.Event{
		Type: stripe.EventTypePaymentIntentCreated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown events must ack: %v", err)
	}
}

func TestHandleEvent_SubscriptionCheckoutSkipsOrderPipeline(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	svc := newWebhookService(t, deps)

	session := &stripe.CheckoutSession{
		ID:       "cs_sub_" + uuid.NewString(),
		Mode:     stripe.CheckoutSessionModeSubscription,
		Metadata: map[string]string{"user_id": uuid.New().String()},
	}
	event := marshalEvent(t, stripe.EventTypeCheckoutSessionCompleted, session, nil)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("subscription checkout must ack: %v", err)
	}
	if deps.orders.calls != 0 {
		t.Fatal("subscription checkout must not build an order")
	}
	if deps.settlement.settled != 0 {
		t.Fatal("subscription checkout must not settle")
	}
}

func TestHandleEvent_InvoicePaidSyncsAndCredits(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	sellerID := uuid.New()
	deps.stripe.subscription = stripeSubscription(sellerID, "sub_1", "Pro", "price_pro")

	svc := newWebhookService(t, deps)
	invoice := &stripe.Invoice{ID: "in_1", AmountPaid: 2900, Created: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Unix()}
	event := marshalEvent(t, stripe.EventTypeInvoicePaid, invoice, map[string]any{
		"parent": map[string]any{
			"subscription_details": map[string]any{"subscription": "sub_1"},
		},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if deps.stripe.fetched != "sub_1" {
		t.Fatalf("expected live subscription fetch, got %q", deps.stripe.fetched)
	}
	if len(deps.subscriptions.synced) != 1 {
		t.Fatalf("expected one sync, got %d", len(deps.subscriptions.synced))
	}
	synced := deps.subscriptions.synced[0]
	if synced.UserID != sellerID || synced.PlanName != "Pro" || synced.Deleted {
		t.Fatalf("unexpected sync params: %+v", synced)
	}
	if len(deps.affiliates.subscriptionCredits) != 1 {
		t.Fatalf("expected one subscription commission, got %d", len(deps.affiliates.subscriptionCredits))
	}
	credit := deps.affiliates.subscriptionCredits[0]
	if credit.InvoiceID != "in_1" || credit.FeeCents != 2900 || credit.SellerID != sellerID {
		t.Fatalf("unexpected commission params: %+v", credit)
	}
}

func TestHandleEvent_OneOffInvoiceAcks(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	svc := newWebhookService(t, deps)

	invoice := &stripe.Invoice{ID: "in_oneoff", AmountPaid: 500}
	// one-off invoices carry an explicit null parent
	event := marshalEvent(t, stripe.EventTypeInvoicePaid, invoice, map[string]any{"parent": nil})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("one-off invoices must ack: %v", err)
	}
	if deps.stripe.fetched != "" {
		t.Fatal("one-off invoices must not fetch subscriptions")
	}

	// same for a parent without subscription details
	event = marshalEvent(t, stripe.EventTypeInvoicePaid, invoice, map[string]any{
		"parent": map[string]any{"subscription_details": nil},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("invoice without subscription details must ack: %v", err)
	}
	if deps.stripe.fetched != "" {
		t.Fatal("invoice without subscription details must not fetch subscriptions")
	}
}

func TestHandleEvent_ChargeRefundedReversesOrder(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	order := &models.Order{ID: uuid.New(), SessionID: "cs_refund"}
	deps.finder.orders = map[string]*models.Order{"cs_refund": order}

	svc := newWebhookService(t, deps)
	charge := &stripe.Charge{ID: "ch_1", Metadata: map[string]string{"session_id": "cs_refund"}}
	event := marshalEvent(t, stripe.EventTypeChargeRefunded, charge, nil)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(deps.affiliates.reversed) != 1 {
		t.Fatalf("expected one reversal, got %d", len(deps.affiliates.reversed))
	}
	reversed := deps.affiliates.reversed[0]
	if reversed.OrderID == nil || *reversed.OrderID != order.ID {
		t.Fatalf("reversal not mapped to the order: %+v", reversed)
	}
	if reversed.RefundRef != "ch_1" || reversed.Reason != enums.ReversalReasonRefund {
		t.Fatalf("unexpected reversal: %+v", reversed)
	}
}

func TestHandleEvent_ChargeRefundedFallsBackToInvoice(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	svc := newWebhookService(t, deps)

	charge := &stripe.Charge{ID: "ch_sub"}
	event := marshalEvent(t, stripe.EventTypeChargeRefunded, charge, map[string]any{"invoice": "in_1"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(deps.affiliates.reversed) != 1 {
		t.Fatalf("expected one reversal, got %d", len(deps.affiliates.reversed))
	}
	reversed := deps.affiliates.reversed[0]
	if reversed.InvoiceID == nil || *reversed.InvoiceID != "in_1" {
		t.Fatalf("reversal not mapped to the invoice: %+v", reversed)
	}
}

func TestHandleEvent_UnmappableRefundAcks(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	svc := newWebhookService(t, deps)

	charge := &stripe.Charge{ID: "ch_orphan"}
	event := marshalEvent(t, stripe.EventTypeChargeRefunded, charge, nil)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("orphan refunds must ack: %v", err)
	}
	if len(deps.affiliates.reversed) != 0 {
		t.Fatal("orphan refunds must not reverse anything")
	}
}

func TestHandleEvent_DisputeReversesAsChargeback(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	order := &models.Order{ID: uuid.New(), SessionID: "cs_dispute"}
	deps.finder.orders = map[string]*models.Order{"cs_dispute": order}

	svc := newWebhookService(t, deps)
	dispute := &stripe.Dispute{
		ID:     "dp_1",
		Charge: &stripe.Charge{Metadata: map[string]string{"session_id": "cs_dispute"}},
	}
	event := marshalEvent(t, stripe.EventTypeChargeDisputeCreated, dispute, nil)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(deps.affiliates.reversed) != 1 {
		t.Fatalf("expected one reversal, got %d", len(deps.affiliates.reversed))
	}
	if deps.affiliates.reversed[0].Reason != enums.ReversalReasonChargeback {
		t.Fatalf("unexpected reason: %s", deps.affiliates.reversed[0].Reason)
	}
}

func TestHandleEvent_SubscriptionDeleted(t *testing.T) {
	t.Parallel()

	deps := newStubDeps()
	sellerID := uuid.New()
	svc := newWebhookService(t, deps)

	event := marshalEvent(t, stripe.EventTypeCustomerSubscriptionDeleted,
		stripeSubscription(sellerID, "sub_gone", "Pro", "price_pro"), nil)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(deps.subscriptions.synced) != 1 {
		t.Fatalf("expected one sync, got %d", len(deps.subscriptions.synced))
	}
	if !deps.subscriptions.synced[0].Deleted {
		t.Fatal("deletion must sync as deleted")
	}
}

// --- fixtures ---

func checkoutEvent(t *testing.T, buyerID, productID, sellerID uuid.UUID, mode string) *stripe.Event {
	t.Helper()
	items, err := json.Marshal([]map[string]any{{
		"productId":  productID.String(),
		"quantity":   2,
		"priceCents": 1000,
		"sellerId":   sellerID.String(),
	}})
	if err != nil {
		t.Fatalf("marshal items: %v", err)
	}
	session := &stripe.CheckoutSession{
		ID:          "cs_test_" + uuid.NewString(),
		AmountTotal: 2000,
		Metadata: map[string]string{
			"user_id":       buyerID.String(),
			"items":         string(items),
			"delivery_mode": mode,
			"buyer_lat":     "48.8566",
			"buyer_lng":     "2.3522",
		},
	}
	return marshalEvent(t, stripe.EventTypeCheckoutSessionCompleted, session, nil)
}

func marshalEvent(t *testing.T, eventType stripe.EventType, payload any, object map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw, Object: object},
	}
}

func stripeSubscription(userID uuid.UUID, subID, planName, priceID string) *stripe.Subscription {
	return &stripe.Subscription{
		ID:        subID,
		Status:    stripe.SubscriptionStatusActive,
		StartDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Metadata:  map[string]string{"user_id": userID.String()},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				CurrentPeriodEnd: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC).Unix(),
				Price:            &stripe.Price{ID: priceID, Nickname: planName},
			}},
		},
	}
}

func pickupOrder(buyerID, sellerID uuid.UUID) *models.Order {
	order := &models.Order{
		ID:           uuid.New(),
		BuyerID:      buyerID,
		OrderNumber:  "ORD-1",
		DeliveryMode: enums.DeliveryModePickup,
	}
	order.Items = []models.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), SellerID: &sellerID, Quantity: 2, PriceCentsAtPurchase: 1000},
	}
	return order
}

// --- stubs ---

type stubDeps struct {
	orders        *stubOrderBuilder
	finder        *stubOrderFinder
	settlement    *stubSettlement
	affiliates    *stubAffiliates
	dispatchSvc   *stubDispatch
	labels        *stubLabels
	subscriptions *stubSubscriptions
	conversations *stubConversations
	notifications *stubNotifications
	users         *stubUsers
	stripe        *stubStripeClient
}

func newStubDeps() *stubDeps {
	return &stubDeps{
		orders:        &stubOrderBuilder{},
		finder:        &stubOrderFinder{},
		settlement:    &stubSettlement{},
		affiliates:    &stubAffiliates{},
		dispatchSvc:   &stubDispatch{},
		labels:        &stubLabels{},
		subscriptions: &stubSubscriptions{},
		conversations: &stubConversations{},
		notifications: &stubNotifications{},
		users:         &stubUsers{},
		stripe:        &stubStripeClient{},
	}
}

func newWebhookService(t *testing.T, deps *stubDeps) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:        deps.orders,
		OrderFinder:   deps.finder,
		Settlement:    deps.settlement,
		Affiliates:    deps.affiliates,
		Dispatch:      deps.dispatchSvc,
		Labels:        deps.labels,
		Subscriptions: deps.subscriptions,
		Conversations: deps.conversations,
		Notifications: deps.notifications,
		Users:         deps.users,
		Stripe:        deps.stripe,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type stubOrderBuilder struct {
	result *orders.BuildResult
	calls  int
}

func (s *stubOrderBuilder) Build(ctx context.Context, params orders.BuildParams) (*orders.BuildResult, error) {
	s.calls++
	return s.result, nil
}

type stubOrderFinder struct {
	orders map[string]*models.Order
}

func (s *stubOrderFinder) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return s.orders[sessionID], nil
}

type stubSettlement struct {
	result  *settlement.SettleResult
	settled int
}

func (s *stubSettlement) SettleOrder(ctx context.Context, order *models.Order) (*settlement.SettleResult, error) {
	s.settled++
	return s.result, nil
}

func (s *stubSettlement) SettleCourierLeg(ctx context.Context, params settlement.CourierLegParams) error {
	return nil
}

func (s *stubSettlement) ReleaseEscrows(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubAffiliates struct {
	recorded            []affiliates.RecordParams
	subscriptionCredits []affiliates.SubscriptionParams
	reversed            []affiliates.ReverseParams
}

func (s *stubAffiliates) Record(ctx context.Context, params affiliates.RecordParams) {
	s.recorded = append(s.recorded, params)
}

func (s *stubAffiliates) RecordSubscription(ctx context.Context, params affiliates.SubscriptionParams) {
	s.subscriptionCredits = append(s.subscriptionCredits, params)
}

func (s *stubAffiliates) Reverse(ctx context.Context, params affiliates.ReverseParams) {
	s.reversed = append(s.reversed, params)
}

type stubDispatch struct {
	calls int
	last  dispatch.DispatchParams
}

func (s *stubDispatch) Dispatch(ctx context.Context, params dispatch.DispatchParams) {
	s.calls++
	s.last = params
}

type stubLabels struct {
	calls int
}

func (s *stubLabels) Issue(ctx context.Context, params shippinglabels.IssueParams) {
	s.calls++
}

type stubSubscriptions struct {
	synced []subscriptions.SyncParams
}

func (s *stubSubscriptions) Sync(ctx context.Context, params subscriptions.SyncParams) error {
	s.synced = append(s.synced, params)
	return nil
}

type stubConversations struct {
	opened []conversations.OpenParams
}

func (s *stubConversations) OpenThread(ctx context.Context, params conversations.OpenParams) (*models.Conversation, error) {
	s.opened = append(s.opened, params)
	return &models.Conversation{ID: uuid.New(), OrderID: params.OrderID}, nil
}

type stubNotifications struct {
	sent []notifications.SendParams
}

func (s *stubNotifications) Send(ctx context.Context, params notifications.SendParams) error {
	s.sent = append(s.sent, params)
	return nil
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

type stubStripeClient struct {
	subscription *stripe.Subscription
	fetched      string
}

func (s *stubStripeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	s.fetched = id
	return s.subscription, nil
}
