package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/internal/notifications"
	"github.com/angelmondragon/vendio-backend/pkg/config"
	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/geo"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
)

type deliveryWriter interface {
	CreateDeliveryOrder(ctx context.Context, delivery *models.DeliveryOrder) error
}

type courierFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindActiveCouriers(ctx context.Context) ([]models.User, error)
}

type notifier interface {
	Send(ctx context.Context, params notifications.SendParams) error
}

// DispatchParams describes one delivery order to broadcast.
type DispatchParams struct {
	Order    *models.Order
	BuyerLat *float64
	BuyerLng *float64
}

// Service creates delivery tasks for local delivery orders and broadcasts
// them to every courier in range of both endpoints. The whole flow is
// best-effort: dispatch failures are logged, never returned to the pipeline.
type Service interface {
	Dispatch(ctx context.Context, params DispatchParams)
}

type service struct {
	deliveries deliveryWriter
	couriers   courierFinder
	notify     notifier
	logg       *logger.Logger
	cfg        config.DispatchConfig
}

func NewService(deliveries deliveryWriter, couriers courierFinder, notify notifier, logg *logger.Logger, cfg config.DispatchConfig) (Service, error) {
	if deliveries == nil || couriers == nil || notify == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatch dependencies required")
	}
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = 10
	}
	return &service{deliveries: deliveries, couriers: couriers, notify: notify, logg: logg, cfg: cfg}, nil
}

func (s *service) Dispatch(ctx context.Context, params DispatchParams) {
	order := params.Order
	if order == nil || order.DeliveryMode != enums.DeliveryModeDelivery {
		return
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	if params.BuyerLat == nil || params.BuyerLng == nil {
		s.logg.Warn(logCtx, "dispatch skipped, buyer coordinates missing")
		return
	}
	buyerLat, buyerLng := *params.BuyerLat, *params.BuyerLng

	candidates, err := s.couriers.FindActiveCouriers(ctx)
	if err != nil {
		s.logg.Error(logCtx, "load courier candidates", err)
		return
	}

	for _, item := range order.Items {
		if item.SellerID == nil {
			continue
		}
		seller, err := s.couriers.FindByID(ctx, *item.SellerID)
		if err != nil {
			s.logg.Error(logCtx, "load seller for dispatch", err)
			continue
		}
		if !seller.HasCoordinates() {
			s.logg.Warn(s.logg.WithField(logCtx, "seller_id", item.SellerID.String()),
				"dispatch skipped for item, seller has no coordinates")
			continue
		}

		delivery := &models.DeliveryOrder{
			OrderID:          order.ID,
			ProductID:        item.ProductID,
			Status:           enums.DeliveryOrderStatusPending,
			DeliveryAddress:  order.ShippingAddress,
			DeliveryFeeCents: order.DeliveryFeeCents,
		}
		if err := s.deliveries.CreateDeliveryOrder(ctx, delivery); err != nil {
			s.logg.Error(logCtx, "create delivery order", err)
			continue
		}

		notified := 0
		for _, courier := range candidates {
			if !s.eligible(&courier, seller, buyerLat, buyerLng) {
				continue
			}
			distanceKm := geo.DistanceKm(*courier.Lat, *courier.Lng, buyerLat, buyerLng)
			err := s.notify.Send(ctx, notifications.SendParams{
				UserID: courier.ID,
				Title:  "New delivery nearby",
				Message: fmt.Sprintf("Delivery %.1f km away, %.2f EUR fee",
					distanceKm, float64(order.DeliveryFeeCents)/100),
				Channels:       []enums.NotificationChannel{enums.NotificationChannelPush},
				SaveToDatabase: true,
			})
			if err != nil {
				s.logg.Error(logCtx, "notify courier", err)
				continue
			}
			notified++
		}

		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"delivery_order_id": delivery.ID.String(),
			"notified":          notified,
		}), "delivery order broadcast")
	}
}

// eligible requires the courier to reach both the pickup and the drop-off
// inside their working radius.
func (s *service) eligible(courier, seller *models.User, buyerLat, buyerLng float64) bool {
	if !courier.HasCoordinates() {
		return false
	}
	radius := s.cfg.DefaultRadiusKm
	if courier.MaxRadiusKm != nil && *courier.MaxRadiusKm > 0 {
		radius = *courier.MaxRadiusKm
	}
	toSeller := geo.DistanceKm(*courier.Lat, *courier.Lng, *seller.Lat, *seller.Lng)
	toBuyer := geo.DistanceKm(*courier.Lat, *courier.Lng, buyerLat, buyerLng)
	return toSeller <= radius && toBuyer <= radius
}
