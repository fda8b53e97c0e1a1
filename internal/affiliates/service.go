package affiliates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendio-backend/pkg/config"
	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
)

const (
	beneficiaryBuyer  = "buyer"
	beneficiarySeller = "seller"
)

type subscriptionReader interface {
	FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RecordParams credits attribution shares of one order line's platform fee.
type RecordParams struct {
	OrderID          uuid.UUID
	ProductID        uuid.UUID
	PlatformFeeCents int64
	Buyer            *models.User
	Seller           *models.User
}

// SubscriptionParams credits the referrer of a subscription invoice.
type SubscriptionParams struct {
	InvoiceID              string
	ProviderSubscriptionID string
	SellerID               uuid.UUID
	FeeCents               int64
	InvoiceAt              time.Time
}

// ReverseParams cancels the commissions of a refunded or disputed charge.
type ReverseParams struct {
	OrderID   *uuid.UUID
	InvoiceID *string
	RefundRef string
	Reason    enums.ReversalReason
}

// Service records and reverses affiliate commissions. Every entry point is
// best-effort: commission bookkeeping never fails the payment pipeline, so
// errors are logged and swallowed.
type Service interface {
	Record(ctx context.Context, params RecordParams)
	RecordSubscription(ctx context.Context, params SubscriptionParams)
	Reverse(ctx context.Context, params ReverseParams)
}

type service struct {
	repo          Repository
	subscriptions subscriptionReader
	users         userReader
	logg          *logger.Logger
	cfg           config.AffiliateConfig
}

// NewService wires the commission engine.
func NewService(repo Repository, subscriptions subscriptionReader, users userReader, logg *logger.Logger, cfg config.AffiliateConfig) (Service, error) {
	if repo == nil || subscriptions == nil || users == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "affiliates dependencies required")
	}
	return &service{repo: repo, subscriptions: subscriptions, users: users, logg: logg, cfg: cfg}, nil
}

// Record credits both the buyer's and the seller's referrer. The two shares
// are additive: an order where both sides were referred pays out twice.
func (s *service) Record(ctx context.Context, params RecordParams) {
	if params.PlatformFeeCents <= 0 {
		return
	}

	share := s.share(params.PlatformFeeCents)
	if share <= 0 {
		return
	}

	s.credit(ctx, params, params.Buyer, beneficiaryBuyer, share)
	s.credit(ctx, params, params.Seller, beneficiarySeller, share)
}

func (s *service) credit(ctx context.Context, params RecordParams, user *models.User, beneficiary string, share int64) {
	if user == nil || user.AttributionID == nil || *user.AttributionID == "" {
		return
	}

	orderID := params.OrderID
	productID := params.ProductID
	commission := &models.AffiliateCommission{
		OrderID:       &orderID,
		ProductID:     &productID,
		AttributionID: *user.AttributionID,
		Beneficiary:   beneficiary,
		AmountCents:   share,
		FeeCents:      params.PlatformFeeCents,
	}
	if err := s.repo.CreateCommission(ctx, commission); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    orderID.String(),
			"beneficiary": beneficiary,
		})
		s.logg.Error(logCtx, "record affiliate commission", err)
	}
}

// RecordSubscription credits the seller's referrer for a billing invoice, but
// only while the subscription is inside the attribution window measured from
// its start.
func (s *service) RecordSubscription(ctx context.Context, params SubscriptionParams) {
	if params.FeeCents <= 0 || params.InvoiceID == "" {
		return
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"invoice_id": params.InvoiceID,
		"seller_id":  params.SellerID.String(),
	})

	subscription, err := s.subscriptions.FindByProviderID(ctx, params.ProviderSubscriptionID)
	if err != nil {
		s.logg.Error(logCtx, "load subscription for commission", err)
		return
	}
	if subscription == nil {
		return
	}

	windowEnd := subscription.StartedAt.AddDate(0, s.cfg.AttributionWindowMonths, 0)
	if params.InvoiceAt.After(windowEnd) {
		s.logg.Info(logCtx, "subscription invoice outside attribution window")
		return
	}

	seller, err := s.sellerWithAttribution(ctx, params.SellerID)
	if err != nil {
		s.logg.Error(logCtx, "load seller for subscription commission", err)
		return
	}
	if seller == nil {
		return
	}

	share := s.share(params.FeeCents)
	if share <= 0 {
		return
	}

	invoiceID := params.InvoiceID
	commission := &models.AffiliateCommission{
		InvoiceID:     &invoiceID,
		AttributionID: *seller.AttributionID,
		Beneficiary:   beneficiarySeller,
		AmountCents:   share,
		FeeCents:      params.FeeCents,
	}
	if err := s.repo.CreateCommission(ctx, commission); err != nil {
		s.logg.Error(logCtx, "record subscription commission", err)
	}
}

// Reverse cancels every commission recorded against the refunded order or
// invoice. Each (refund reference, commission) pair is written at most once,
// so a replayed or partially applied refund only fills in what is missing.
func (s *service) Reverse(ctx context.Context, params ReverseParams) {
	if params.RefundRef == "" {
		return
	}

	logCtx := s.logg.WithField(ctx, "refund_ref", params.RefundRef)

	commissions, err := s.lookupCommissions(ctx, params)
	if err != nil {
		s.logg.Error(logCtx, "load commissions to reverse", err)
		return
	}

	for _, commission := range commissions {
		exists, err := s.repo.ReversalExists(ctx, params.RefundRef, commission.ID)
		if err != nil {
			s.logg.Error(logCtx, "check existing reversal", err)
			continue
		}
		if exists {
			continue
		}

		reversal := &models.CommissionReversal{
			CommissionID: commission.ID,
			RefundRef:    params.RefundRef,
			Reason:       params.Reason,
			AmountCents:  commission.AmountCents,
		}
		if err := s.repo.CreateReversal(ctx, reversal); err != nil {
			// concurrent duplicate delivery won the insert race
			if db.IsUniqueViolation(err, "idx_commission_reversals_refund_ref") {
				continue
			}
			s.logg.Error(logCtx, "record commission reversal", err)
		}
	}
}

func (s *service) lookupCommissions(ctx context.Context, params ReverseParams) ([]models.AffiliateCommission, error) {
	switch {
	case params.OrderID != nil:
		return s.repo.FindByOrder(ctx, *params.OrderID)
	case params.InvoiceID != nil:
		return s.repo.FindByInvoice(ctx, *params.InvoiceID)
	default:
		return nil, nil
	}
}

func (s *service) sellerWithAttribution(ctx context.Context, sellerID uuid.UUID) (*models.User, error) {
	if sellerID == uuid.Nil {
		return nil, nil
	}
	seller, err := s.users.FindByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil || seller.AttributionID == nil || *seller.AttributionID == "" {
		return nil, nil
	}
	return seller, nil
}

func (s *service) share(feeCents int64) int64 {
	return decimal.NewFromInt(feeCents).
		Mul(decimal.NewFromFloat(s.cfg.CommissionSharePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()
}
