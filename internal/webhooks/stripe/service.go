package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/vendio-backend/internal/affiliates"
	"github.com/angelmondragon/vendio-backend/internal/cart"
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
)

const metadataUserIDKey = "user_id"

type orderFinder interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// ServiceParams wires every downstream consumer of provider events.
type ServiceParams struct {
	Orders        orders.Service
	OrderFinder   orderFinder
	Settlement    settlement.Service
	Affiliates    affiliates.Service
	Dispatch      dispatch.Service
	Labels        shippinglabels.Service
	Subscriptions subscriptions.Service
	Conversations conversations.Service
	Notifications notifications.Service
	Users         userReader
	Stripe        subscriptionFetcher
	Logger        *logger.Logger
}

// Service routes verified provider events to the fulfillment pipeline. The
// return contract is the ack contract: nil and terminal errors acknowledge the
// delivery, retriable errors request redelivery.
type Service struct {
	orders        orders.Service
	orderFinder   orderFinder
	settlement    settlement.Service
	affiliates    affiliates.Service
	dispatch      dispatch.Service
	labels        shippinglabels.Service
	subscriptions subscriptions.Service
	conversations conversations.Service
	notifications notifications.Service
	users         userReader
	stripe        subscriptionFetcher
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil || params.OrderFinder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders services required")
	}
	if params.Settlement == nil || params.Affiliates == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement services required")
	}
	if params.Dispatch == nil || params.Labels == nil || params.Conversations == nil || params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment services required")
	}
	if params.Subscriptions == nil || params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription services required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user reader required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:        params.Orders,
		orderFinder:   params.OrderFinder,
		settlement:    params.Settlement,
		affiliates:    params.Affiliates,
		dispatch:      params.Dispatch,
		labels:        params.Labels,
		subscriptions: params.Subscriptions,
		conversations: params.Conversations,
		notifications: params.Notifications,
		users:         params.Users,
		stripe:        params.Stripe,
		logg:          params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	ctx = s.logg.WithEventType(ctx, string(event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeInvoicePaid:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
		}
		return s.handleInvoicePaid(ctx, event, &invoice)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge")
		}
		return s.handleChargeReversal(ctx, reversalRef{
			SessionID: charge.Metadata["session_id"],
			InvoiceID: event.GetObjectValue("invoice"),
			RefundRef: charge.ID,
		}, enums.ReversalReasonRefund)
	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode dispute")
		}
		ref := reversalRef{RefundRef: dispute.ID}
		if dispute.Charge != nil {
			ref.SessionID = dispute.Charge.Metadata["session_id"]
		}
		return s.handleChargeReversal(ctx, ref, enums.ReversalReasonChargeback)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		return s.handleSubscriptionEvent(ctx, event, false)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		return s.handleSubscriptionEvent(ctx, event, true)
	default:
		// unknown event kinds acknowledge so the provider stops resending
		return nil
	}
}

// handleCheckoutCompleted is the main pipeline: order aggregate, settlement,
// then the best-effort fan-out (commissions, threads, notifications, courier
// dispatch, shipping label). Only the aggregate and the ledger can fail the
// ack; everything after is logged and swallowed.
func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}

	ctx = s.logg.WithSessionID(ctx, session.ID)

	// subscription checkouts settle through invoice.paid, not the order
	// pipeline
	if session.Mode == stripe.CheckoutSessionModeSubscription {
		s.logg.Info(ctx, "subscription checkout session, skipping order pipeline")
		return nil
	}

	buyerID, err := uuid.Parse(session.Metadata[metadataUserIDKey])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session without buyer id")
	}

	items, err := cart.DecodeItems(session.Metadata)
	if err != nil {
		return err
	}
	meta := cart.DecodeSessionMeta(session.Metadata)

	result, err := s.orders.Build(ctx, orders.BuildParams{
		BuyerID:          buyerID,
		SessionID:        session.ID,
		TotalAmountCents: session.AmountTotal,
		Items:            items,
		Meta:             meta,
	})
	if err != nil {
		return err
	}

	ctx = s.logg.WithOrderID(ctx, result.Order.ID.String())
	if !result.Created {
		s.logg.Info(ctx, "checkout session already processed")
	}

	settled, err := s.settlement.SettleOrder(ctx, result.Order)
	if err != nil {
		return err
	}

	if result.Created {
		s.fanOutOrder(ctx, result.Order, meta, settled)
	}
	return nil
}

func (s *Service) fanOutOrder(ctx context.Context, order *models.Order, meta cart.SessionMeta, settled *settlement.SettleResult) {
	buyer, err := s.users.FindByID(ctx, order.BuyerID)
	if err != nil {
		s.logg.Error(ctx, "load buyer for fan-out", err)
	}

	sellers := make(map[uuid.UUID]*models.User)
	for _, breakdown := range settled.Breakdowns {
		seller, err := s.users.FindByID(ctx, breakdown.SellerID)
		if err != nil {
			s.logg.Error(ctx, "load seller for fan-out", err)
			continue
		}
		sellers[breakdown.SellerID] = seller

		for _, line := range breakdown.Lines {
			s.affiliates.Record(ctx, affiliates.RecordParams{
				OrderID:          order.ID,
				ProductID:        line.ProductID,
				PlatformFeeCents: line.PlatformFeeCents,
				Buyer:            buyer,
				Seller:           seller,
			})
		}
	}

	s.openThread(ctx, order, sellers)
	s.notifyParticipants(ctx, order, sellers)

	switch order.DeliveryMode {
	case enums.DeliveryModeDelivery:
		s.dispatch.Dispatch(ctx, dispatch.DispatchParams{
			Order:    order,
			BuyerLat: meta.BuyerLat,
			BuyerLng: meta.BuyerLng,
		})
	case enums.DeliveryModeShipping:
		s.labels.Issue(ctx, shippinglabels.IssueParams{Order: order})
	}
}

// openThread seeds the buyer/seller conversation. Multi-seller orders get one
// thread with the first settled seller.
func (s *Service) openThread(ctx context.Context, order *models.Order, sellers map[uuid.UUID]*models.User) {
	for _, item := range order.Items {
		if item.SellerID == nil {
			continue
		}
		seller := sellers[*item.SellerID]

		params := conversations.OpenParams{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			SellerID:    *item.SellerID,
		}
		if order.DeliveryMode == enums.DeliveryModePickup && seller != nil {
			params.PickupAddress = seller.Address
		}
		if _, err := s.conversations.OpenThread(ctx, params); err != nil {
			s.logg.Error(ctx, "open order thread", err)
		}
		return
	}
}

func (s *Service) notifyParticipants(ctx context.Context, order *models.Order, sellers map[uuid.UUID]*models.User) {
	err := s.notifications.Send(ctx, notifications.SendParams{
		UserID:         order.BuyerID,
		Title:          "Order confirmed",
		Message:        fmt.Sprintf("Your order %s is confirmed.", order.OrderNumber),
		Channels:       []enums.NotificationChannel{enums.NotificationChannelPush, enums.NotificationChannelEmail},
		SaveToDatabase: true,
	})
	if err != nil {
		s.logg.Error(ctx, "notify buyer", err)
	}

	for sellerID, seller := range sellers {
		channels := []enums.NotificationChannel{enums.NotificationChannelPush}
		if seller != nil && seller.SMSNotifications {
			channels = append(channels, enums.NotificationChannelSMS)
		}
		err := s.notifications.Send(ctx, notifications.SendParams{
			UserID:         sellerID,
			Title:          "New order",
			Message:        fmt.Sprintf("You sold items on order %s.", order.OrderNumber),
			Channels:       channels,
			SaveToDatabase: true,
		})
		if err != nil {
			s.logg.Error(ctx, "notify seller", err)
		}
	}
}

// handleInvoicePaid refreshes the seller's fee tier from the live provider
// state and credits the subscription referrer inside the attribution window.
func (s *Service) handleInvoicePaid(ctx context.Context, event *stripe.Event, invoice *stripe.Invoice) error {
	subscriptionID := invoiceSubscriptionID(event)
	if subscriptionID == "" {
		// one-off invoices carry no subscription and need no sync
		return nil
	}

	stripeSub, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	params, err := syncParamsFromStripe(stripeSub, false)
	if err != nil {
		return err
	}
	if err := s.subscriptions.Sync(ctx, params); err != nil {
		return err
	}

	s.affiliates.RecordSubscription(ctx, affiliates.SubscriptionParams{
		InvoiceID:              invoice.ID,
		ProviderSubscriptionID: subscriptionID,
		SellerID:               params.UserID,
		FeeCents:               invoice.AmountPaid,
		InvoiceAt:              time.Unix(invoice.Created, 0).UTC(),
	})
	return nil
}

// invoiceSubscriptionID digs the subscription reference out of the raw
// invoice payload. One-off invoices carry "parent": null, so every step of
// the descent checks the shape before going deeper.
func invoiceSubscriptionID(event *stripe.Event) string {
	if event.Data == nil {
		return ""
	}
	object := event.Data.Object
	if parent, ok := object["parent"].(map[string]any); ok {
		if details, ok := parent["subscription_details"].(map[string]any); ok {
			if id, ok := details["subscription"].(string); ok && id != "" {
				return id
			}
		}
	}
	if id, ok := object["subscription"].(string); ok {
		return id
	}
	return ""
}

// reversalRef identifies what a refunded or disputed charge paid for.
type reversalRef struct {
	SessionID string
	InvoiceID string
	RefundRef string
}

// handleChargeReversal cancels commissions for a refunded or disputed charge.
// Commission bookkeeping is best-effort, so a charge we cannot map to an
// order or invoice just acks.
func (s *Service) handleChargeReversal(ctx context.Context, ref reversalRef, reason enums.ReversalReason) error {
	if ref.RefundRef == "" {
		return nil
	}

	params := affiliates.ReverseParams{RefundRef: ref.RefundRef, Reason: reason}

	if ref.SessionID != "" {
		order, err := s.orderFinder.FindBySessionID(ctx, ref.SessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for reversal")
		}
		if order != nil {
			orderID := order.ID
			params.OrderID = &orderID
		}
	}
	if params.OrderID == nil && ref.InvoiceID != "" {
		invoiceID := ref.InvoiceID
		params.InvoiceID = &invoiceID
	}
	if params.OrderID == nil && params.InvoiceID == nil {
		s.logg.Warn(ctx, "reversal charge maps to no order or invoice")
		return nil
	}

	s.affiliates.Reverse(ctx, params)
	return nil
}

func (s *Service) handleSubscriptionEvent(ctx context.Context, event *stripe.Event, deleted bool) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
	}
	params, err := syncParamsFromStripe(&stripeSub, deleted)
	if err != nil {
		return err
	}
	return s.subscriptions.Sync(ctx, params)
}

func syncParamsFromStripe(stripeSub *stripe.Subscription, deleted bool) (subscriptions.SyncParams, error) {
	if stripeSub == nil {
		return subscriptions.SyncParams{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	userID, err := uuid.Parse(stripeSub.Metadata[metadataUserIDKey])
	if err != nil {
		return subscriptions.SyncParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "subscription without user id")
	}

	status, parseErr := enums.ParseSubscriptionStatus(string(stripeSub.Status))
	if parseErr != nil {
		status = enums.SubscriptionStatusCanceled
	}

	params := subscriptions.SyncParams{
		UserID:                 userID,
		ProviderSubscriptionID: stripeSub.ID,
		Status:                 status,
		StartedAt:              time.Unix(stripeSub.StartDate, 0).UTC(),
		Deleted:                deleted,
	}
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 {
		item := stripeSub.Items.Data[0]
		if item.Price != nil {
			params.PlanName = item.Price.Nickname
			params.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			params.CurrentPeriodEnd = &end
		}
	}
	return params, nil
}
