package enums

import "fmt"

// DeliveryMode distinguishes driver pickups from customer drop-offs.
type DeliveryMode string

const (
	DeliveryModeDriverPickup    DeliveryMode = "driver_pickup"
	DeliveryModeCustomerDropOff DeliveryMode = "customer_drop_off"
)

var validDeliveryModes = []DeliveryMode{
	DeliveryModeDriverPickup,
	DeliveryModeCustomerDropOff,
}

func (m DeliveryMode) String() string {
	return string(m)
}

func (m DeliveryMode) IsValid() bool {
	for _, candidate := range validDeliveryModes {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseDeliveryMode(value string) (DeliveryMode, error) {
	for _, candidate := range validDeliveryModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery mode %q", value)
}
