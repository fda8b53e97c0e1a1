package shippinglabels

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
	"github.com/angelmondragon/vendio-backend/pkg/shipping"
	"github.com/angelmondragon/vendio-backend/pkg/types"
)

// parcel heuristics. Real weights live on products eventually; until then the
// item count drives a conservative estimate the carriers accept.
const (
	baseWeightGrams    = 250
	perItemWeightGrams = 500

	smallParcelLengthCm = 30
	smallParcelWidthCm  = 20
	smallParcelHeightCm = 10
	largeParcelLengthCm = 50
	largeParcelWidthCm  = 35
	largeParcelHeightCm = 25
	largeParcelItems    = 4
)

type labelClient interface {
	CreateLabel(ctx context.Context, req shipping.LabelRequest) (*shipping.Label, error)
}

type trackingWriter interface {
	UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// IssueParams asks for one label covering the whole shipping order.
type IssueParams struct {
	Order *models.Order
}

// Service purchases carrier labels for shipping orders. Best-effort: a failed
// carrier call leaves the order label-less and is retried by support tooling,
// never by webhook redelivery.
type Service interface {
	Issue(ctx context.Context, params IssueParams)
}

type service struct {
	repo    Repository
	carrier labelClient
	orders  trackingWriter
	users   userReader
	logg    *logger.Logger
}

func NewService(repo Repository, carrier labelClient, orders trackingWriter, users userReader, logg *logger.Logger) (Service, error) {
	if repo == nil || carrier == nil || orders == nil || users == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping label dependencies required")
	}
	return &service{repo: repo, carrier: carrier, orders: orders, users: users, logg: logg}, nil
}

// Issue purchases one label per shipping order. An existing label row is the
// idempotency gate for replays.
func (s *service) Issue(ctx context.Context, params IssueParams) {
	order := params.Order
	if order == nil || order.DeliveryMode != enums.DeliveryModeShipping {
		return
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	existing, err := s.repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		s.logg.Error(logCtx, "check existing label", err)
		return
	}
	if existing != nil {
		return
	}

	from, err := s.senderAddress(ctx, order)
	if err != nil {
		s.logg.Error(logCtx, "resolve sender address", err)
		return
	}
	if !from.PostalComplete() || !order.ShippingAddress.PostalComplete() {
		s.logg.Warn(logCtx, "label skipped, incomplete postal addresses")
		return
	}

	itemCount := lo.SumBy(order.Items, func(item models.OrderItem) int { return item.Quantity })
	request := shipping.LabelRequest{
		OrderRef:    order.OrderNumber,
		FromAddress: from,
		ToAddress:   order.ShippingAddress,
		WeightGrams: baseWeightGrams + itemCount*perItemWeightGrams,
	}
	request.LengthCm, request.WidthCm, request.HeightCm = parcelDimensions(itemCount)

	label, err := s.carrier.CreateLabel(ctx, request)
	if err != nil {
		s.logg.Error(logCtx, "purchase carrier label", err)
		return
	}

	row := &models.ShippingLabel{
		OrderID:        order.ID,
		CarrierLabelID: label.LabelID,
		TrackingNumber: label.TrackingNumber,
		Carrier:        label.Carrier,
		PriceCents:     label.PriceCents,
		Status:         enums.ShippingLabelStatusCreated,
	}
	if label.PDFURL != "" {
		row.PDFURL = &label.PDFURL
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "idx_shipping_labels_order_id") {
			return
		}
		s.logg.Error(logCtx, "persist carrier label", err)
		return
	}

	if err := s.orders.UpdateTracking(ctx, order.ID, label.TrackingNumber, label.Carrier); err != nil {
		s.logg.Error(logCtx, "mirror tracking onto order", err)
	}
}

// senderAddress is the first seller's registered address. Multi-seller
// shipping orders ship from the primary seller until split shipments exist.
func (s *service) senderAddress(ctx context.Context, order *models.Order) (*types.Address, error) {
	for _, item := range order.Items {
		if item.SellerID == nil {
			continue
		}
		seller, err := s.users.FindByID(ctx, *item.SellerID)
		if err != nil {
			return nil, err
		}
		if seller != nil && seller.Address != nil {
			return seller.Address, nil
		}
	}
	return nil, nil
}

func parcelDimensions(itemCount int) (length, width, height int) {
	if itemCount >= largeParcelItems {
		return largeParcelLengthCm, largeParcelWidthCm, largeParcelHeightCm
	}
	return smallParcelLengthCm, smallParcelWidthCm, smallParcelHeightCm
}
