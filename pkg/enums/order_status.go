package enums

import "fmt"

// OrderStatus tracks the forward-only lifecycle of an order.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusConfirmed: 0,
	OrderStatusPreparing: 1,
	OrderStatusReady:     2,
	OrderStatusInTransit: 3,
	OrderStatusDelivered: 4,
	OrderStatusCancelled: 4,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	_, ok := orderStatusRank[o]
	return ok
}

// CanTransitionTo enforces forward-only transitions; terminal states accept
// nothing.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, ok := orderStatusRank[o]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	if o == OrderStatusDelivered || o == OrderStatusCancelled {
		return false
	}
	return to > from || next == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	candidate := OrderStatus(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid order status %q", value)
	}
	return candidate, nil
}
