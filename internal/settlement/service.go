package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/pkg/config"
	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transferClient interface {
	CreateTransfer(ctx context.Context, amountCents int64, destinationAccount, transferGroup string) (string, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	IncrementLifetimeEarnings(ctx context.Context, userID uuid.UUID, amountCents int64) error
}

// SettleResult reports the persisted ledger for one order.
type SettleResult struct {
	Breakdowns []Breakdown
	Escrowed   bool
}

// CourierLegParams settles the delivery fee once a courier completed a leg.
type CourierLegParams struct {
	Order     *models.Order
	CourierID uuid.UUID
}

// Service turns calculator breakdowns into ledger rows and moves the money.
type Service interface {
	SettleOrder(ctx context.Context, order *models.Order) (*SettleResult, error)
	SettleCourierLeg(ctx context.Context, params CourierLegParams) error
	ReleaseEscrows(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	users     userReader
	transfers transferClient
	logg      *logger.Logger
	fees      config.FeesConfig
	timeout   time.Duration
	now       func() time.Time
}

// NewService wires the settlement ledger.
func NewService(tx txRunner, repo Repository, users userReader, transfers transferClient, logg *logger.Logger, fees config.FeesConfig, transferTimeout time.Duration) (Service, error) {
	if tx == nil || repo == nil || users == nil || transfers == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settlement dependencies required")
	}
	if transferTimeout <= 0 {
		transferTimeout = 10 * time.Second
	}
	return &service{
		tx:        tx,
		repo:      repo,
		users:     users,
		transfers: transfers,
		logg:      logg,
		fees:      fees,
		timeout:   transferTimeout,
		now:       time.Now,
	}, nil
}

// SettleOrder writes the seller-side ledger for an order. Shipping orders hold
// every seller payout in escrow; pickup and delivery orders transfer
// synchronously. A failed transfer records a sentinel and never fails the
// settlement: the money question is reconciled out-of-band, the ledger row is
// the source of truth.
func (s *service) SettleOrder(ctx context.Context, order *models.Order) (*SettleResult, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items to settle")
	}

	settled, err := s.repo.HasTransactionsForOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settled order")
	}
	if settled {
		return &SettleResult{Escrowed: order.PaymentHeld}, nil
	}

	lines, terms, sellers, err := s.settlementInputs(ctx, order)
	if err != nil {
		return nil, err
	}

	breakdowns, err := Calculate(lines, terms, s.fees)
	if err != nil {
		return nil, err
	}

	escrowed := order.PaymentHeld && order.DeliveryMode == enums.DeliveryModeShipping

	payouts := make(map[uuid.UUID]uuid.UUID, len(breakdowns))
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		for _, breakdown := range breakdowns {
			transactions := make([]models.Transaction, 0, len(breakdown.Lines))
			for _, line := range breakdown.Lines {
				itemID := line.OrderItemID
				transactions = append(transactions, models.Transaction{
					OrderID:        order.ID,
					OrderItemID:    &itemID,
					BuyerID:        order.BuyerID,
					SellerID:       breakdown.SellerID,
					AmountCents:    line.AmountCents,
					PlatformFeeBps: breakdown.FeeBps,
					Status:         enums.TransactionStatusCaptured,
				})
			}
			if err := txRepo.CreateTransactions(ctx, transactions); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transactions")
			}

			payout := &models.Payout{
				TransactionID: transactions[0].ID,
				ToUserID:      breakdown.SellerID,
				AmountCents:   breakdown.PayoutCents,
			}
			if err := txRepo.CreatePayout(ctx, payout); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
			}
			payouts[breakdown.SellerID] = payout.ID

			if escrowed {
				escrow := &models.PaymentEscrow{
					OrderID:       order.ID,
					SellerID:      breakdown.SellerID,
					AmountCents:   breakdown.PayoutCents,
					PayoutTrigger: enums.PayoutTriggerDelivered,
					CurrentStatus: enums.EscrowStatusHeld,
				}
				if err := txRepo.CreateEscrow(ctx, escrow); err != nil {
					if db.IsUniqueViolation(err, "idx_payment_escrows_order_seller") {
						continue
					}
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create escrow")
				}
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if !escrowed {
		for _, breakdown := range breakdowns {
			s.transferPayout(ctx, payouts[breakdown.SellerID], sellers[breakdown.SellerID], breakdown.PayoutCents, order.OrderNumber)
		}
	}

	return &SettleResult{Breakdowns: breakdowns, Escrowed: escrowed}, nil
}

// SettleCourierLeg books the courier's share of the delivery fee as a second
// ledger leg and bumps the courier's lifetime earnings.
func (s *service) SettleCourierLeg(ctx context.Context, params CourierLegParams) error {
	if params.Order == nil || params.CourierID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and courier required")
	}
	if params.Order.DeliveryFeeCents <= 0 {
		return nil
	}

	courier, err := s.users.FindByID(ctx, params.CourierID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier")
	}
	if courier == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "courier not found")
	}

	payoutCents, _ := CourierPayout(params.Order.DeliveryFeeCents, s.fees)

	payout := &models.Payout{
		ToUserID:    params.CourierID,
		AmountCents: payoutCents,
	}
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		transaction := models.Transaction{
			OrderID:        params.Order.ID,
			BuyerID:        params.Order.BuyerID,
			SellerID:       params.CourierID,
			AmountCents:    params.Order.DeliveryFeeCents,
			PlatformFeeBps: s.fees.CourierFeeBps,
			Status:         enums.TransactionStatusCaptured,
		}
		if err := txRepo.CreateTransactions(ctx, []models.Transaction{transaction}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create courier transaction")
		}

		payout.TransactionID = transaction.ID
		if err := txRepo.CreatePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create courier payout")
		}

		return s.users.IncrementLifetimeEarnings(ctx, params.CourierID, payoutCents)
	})
	if txErr != nil {
		return txErr
	}

	s.transferPayout(ctx, payout.ID, courier, payoutCents, params.Order.OrderNumber)
	return nil
}

// ReleaseEscrows flips every held escrow of the order to released. The caller
// decides when the payout trigger fired.
func (s *service) ReleaseEscrows(ctx context.Context, orderID uuid.UUID) (int64, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	released, err := s.repo.ReleaseEscrows(ctx, orderID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release escrows")
	}
	return released, nil
}

func (s *service) settlementInputs(ctx context.Context, order *models.Order) ([]Line, map[uuid.UUID]SellerTerms, map[uuid.UUID]*models.User, error) {
	lines := make([]Line, 0, len(order.Items))
	terms := make(map[uuid.UUID]SellerTerms)
	sellers := make(map[uuid.UUID]*models.User)

	for _, item := range order.Items {
		if item.SellerID == nil {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order item without seller").
				WithDetails(map[string]any{"order_item_id": item.ID.String()})
		}
		sellerID := *item.SellerID
		lines = append(lines, Line{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			SellerID:    sellerID,
			Quantity:    item.Quantity,
			PriceCents:  item.PriceCentsAtPurchase,
		})

		if _, ok := terms[sellerID]; ok {
			continue
		}
		seller, err := s.users.FindByID(ctx, sellerID)
		if err != nil {
			return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}
		if seller == nil {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown seller on order item").
				WithDetails(map[string]any{"seller_id": sellerID.String()})
		}
		sellers[sellerID] = seller
		terms[sellerID] = SellerTerms{
			SellerID: sellerID,
			// the surcharge only applies when a message can actually go out
			SMSNotifications: seller.SMSNotifications && seller.Phone != nil && *seller.Phone != "",
			FeeBpsOverride:   activeFeeBps(seller, s.now()),
		}
	}
	return lines, terms, sellers, nil
}

// transferPayout moves a payout synchronously. Failures record a sentinel
// provider ref so reconciliation can retry them; the webhook still acks.
func (s *service) transferPayout(ctx context.Context, payoutID uuid.UUID, payee *models.User, amountCents int64, transferGroup string) {
	if amountCents <= 0 {
		return
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payout_id":    payoutID.String(),
		"amount_cents": amountCents,
	})

	if payee == nil || payee.StripeAccountID == nil || *payee.StripeAccountID == "" {
		s.recordTransferFailure(logCtx, payoutID, fmt.Errorf("payee has no connected account"))
		return
	}

	transferCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	providerRef, err := s.transfers.CreateTransfer(transferCtx, amountCents, *payee.StripeAccountID, transferGroup)
	if err != nil {
		s.recordTransferFailure(logCtx, payoutID, err)
		return
	}

	paidAt := s.now().UTC()
	if err := s.repo.SetPayoutProviderRef(ctx, payoutID, providerRef, &paidAt); err != nil {
		s.logg.Error(logCtx, "record transfer reference", err)
	}
}

func (s *service) recordTransferFailure(ctx context.Context, payoutID uuid.UUID, cause error) {
	s.logg.Error(ctx, "payout transfer failed", cause)
	sentinel := fmt.Sprintf("failed_%d", s.now().Unix())
	if err := s.repo.SetPayoutProviderRef(ctx, payoutID, sentinel, nil); err != nil {
		s.logg.Error(ctx, "record transfer failure sentinel", err)
	}
}

// activeFeeBps returns the seller's subscription fee override while the
// subscription period is still running.
func activeFeeBps(seller *models.User, now time.Time) *int64 {
	if seller.SubscriptionFeeBps == nil {
		return nil
	}
	if seller.SubscriptionPeriodEnd != nil && seller.SubscriptionPeriodEnd.Before(now) {
		return nil
	}
	return seller.SubscriptionFeeBps
}
