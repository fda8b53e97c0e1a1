package enums

import "strings"

// DeliveryMode describes how a confirmed order reaches the buyer.
type DeliveryMode string

const (
	DeliveryModePickup   DeliveryMode = "pickup"
	DeliveryModeDelivery DeliveryMode = "delivery"
	DeliveryModeShipping DeliveryMode = "shipping"
)

var validDeliveryModes = []DeliveryMode{
	DeliveryModePickup,
	DeliveryModeDelivery,
	DeliveryModeShipping,
}

// String implements fmt.Stringer.
func (d DeliveryMode) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMode.
func (d DeliveryMode) IsValid() bool {
	for _, candidate := range validDeliveryModes {
		if candidate == d {
			return true
		}
	}
	return false
}

// MapDeliveryMode folds the raw checkout metadata value into a stored mode.
// Unknown or absent values fall back to pickup.
func MapDeliveryMode(raw string) DeliveryMode {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SHIPPING":
		return DeliveryModeShipping
	case "LOCAL_DELIVERY", "TEEN_DELIVERY", "DELIVERY":
		return DeliveryModeDelivery
	default:
		return DeliveryModePickup
	}
}
