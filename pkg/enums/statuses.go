package enums

// ReservationStatus tracks a cart-time stock reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

func (r ReservationStatus) String() string {
	return string(r)
}

// TransactionStatus tracks a captured settlement transaction.
type TransactionStatus string

const (
	TransactionStatusCaptured TransactionStatus = "captured"
	TransactionStatusReversed TransactionStatus = "reversed"
)

func (t TransactionStatus) String() string {
	return string(t)
}

// EscrowStatus tracks a held seller payout.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusReversed EscrowStatus = "reversed"
)

func (e EscrowStatus) String() string {
	return string(e)
}

// PayoutTrigger names the order event that releases a held payout.
type PayoutTrigger string

const (
	PayoutTriggerDelivered PayoutTrigger = "delivered"
)

func (p PayoutTrigger) String() string {
	return string(p)
}

// DeliveryOrderStatus tracks a courier delivery task.
type DeliveryOrderStatus string

const (
	DeliveryOrderStatusPending   DeliveryOrderStatus = "pending"
	DeliveryOrderStatusAccepted  DeliveryOrderStatus = "accepted"
	DeliveryOrderStatusPickedUp  DeliveryOrderStatus = "picked_up"
	DeliveryOrderStatusDelivered DeliveryOrderStatus = "delivered"
	DeliveryOrderStatusCancelled DeliveryOrderStatus = "cancelled"
)

func (d DeliveryOrderStatus) String() string {
	return string(d)
}

// ShippingLabelStatus tracks a carrier label request.
type ShippingLabelStatus string

const (
	ShippingLabelStatusCreated ShippingLabelStatus = "created"
	ShippingLabelStatusVoided  ShippingLabelStatus = "voided"
)

func (s ShippingLabelStatus) String() string {
	return string(s)
}

// ReversalReason distinguishes why a commission was reversed.
type ReversalReason string

const (
	ReversalReasonRefund     ReversalReason = "REFUND"
	ReversalReasonChargeback ReversalReason = "CHARGEBACK"
)

func (r ReversalReason) String() string {
	return string(r)
}
