package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
)

// DecrementRequest asks for qty units of a product inside the caller's
// transaction.
type DecrementRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// Decrement applies an atomic conditional decrement for each request. The
// availability check and the write are a single UPDATE so two concurrent
// orders for the same product cannot both pass the check. A nil stock means
// the seller does not track quantity and the request is skipped.
//
// Any failed request aborts with a terminal out-of-stock error; the caller's
// transaction must roll back everything written so far.
func Decrement(ctx context.Context, tx *gorm.DB, requests []DecrementRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}

	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d", req.Qty))
		}

		var product models.Product
		if err := tx.WithContext(ctx).First(&product, "id = ?", req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s not found", req.ProductID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.Stock == nil {
			continue
		}
		if *product.Stock <= 0 || *product.Stock < req.Qty {
			return outOfStock(req)
		}

		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock >= ?", req.ProductID, req.Qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "decrement stock")
		}
		if result.RowsAffected == 0 {
			// a concurrent order won the race between the read and the write
			return outOfStock(req)
		}

		// defensive re-check: a negative balance after a guarded decrement is
		// an invariant violation and must abort the whole transaction
		var after models.Product
		if err := tx.WithContext(ctx).First(&after, "id = ?", req.ProductID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-read stock")
		}
		if after.Stock != nil && *after.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("stock for product %s went negative", req.ProductID))
		}
	}
	return nil
}

// ConfirmReservations transitions any pending reservations for the session's
// products to confirmed within the same transaction, so a replayed session is
// not counted twice.
func ConfirmReservations(ctx context.Context, tx *gorm.DB, sessionID string, productIDs []uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}
	if sessionID == "" || len(productIDs) == 0 {
		return nil
	}

	result := tx.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("session_id = ? AND product_id IN ? AND status = ?", sessionID, productIDs, enums.ReservationStatusPending).
		Update("status", enums.ReservationStatusConfirmed)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "confirm stock reservations")
	}
	return nil
}

func outOfStock(req DecrementRequest) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("insufficient stock for product %s", req.ProductID)).
		WithDetails(map[string]any{"product_id": req.ProductID.String(), "requested": req.Qty})
}
