package enums

import "fmt"

// DeliveryStatus tracks the fulfillment lifecycle of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending           DeliveryStatus = "pending"
	DeliveryStatusAccepted          DeliveryStatus = "accepted"
	DeliveryStatusDriverEnroute     DeliveryStatus = "driver_enroute"
	DeliveryStatusPickedUp          DeliveryStatus = "picked_up"
	DeliveryStatusProcessingStarted DeliveryStatus = "processing_started"
	DeliveryStatusReady             DeliveryStatus = "ready"
	DeliveryStatusOutForDelivery    DeliveryStatus = "out_for_delivery"
	DeliveryStatusCompleted         DeliveryStatus = "completed"
	DeliveryStatusCancelled         DeliveryStatus = "cancelled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusAccepted,
	DeliveryStatusDriverEnroute,
	DeliveryStatusPickedUp,
	DeliveryStatusProcessingStarted,
	DeliveryStatusReady,
	DeliveryStatusOutForDelivery,
	DeliveryStatusCompleted,
	DeliveryStatusCancelled,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (d DeliveryStatus) IsTerminal() bool {
	return d == DeliveryStatusCompleted || d == DeliveryStatusCancelled
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

// DeliveryStatuses returns all known statuses in lifecycle order.
func DeliveryStatuses() []DeliveryStatus {
	out := make([]DeliveryStatus, len(validDeliveryStatuses))
	copy(out, validDeliveryStatuses)
	return out
}
