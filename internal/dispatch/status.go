package dispatch

import (
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// transitions is the full delivery status machine. Every non-terminal
// status may also be cancelled; completed and cancelled accept nothing.
var transitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusPending:           {enums.DeliveryStatusAccepted, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusAccepted:          {enums.DeliveryStatusDriverEnroute, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusDriverEnroute:     {enums.DeliveryStatusPickedUp, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusPickedUp:          {enums.DeliveryStatusProcessingStarted, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusProcessingStarted: {enums.DeliveryStatusReady, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusReady:             {enums.DeliveryStatusOutForDelivery, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusOutForDelivery:    {enums.DeliveryStatusCompleted, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusCompleted:         {},
	enums.DeliveryStatusCancelled:         {},
}

// CanTransition reports whether from -> to is a legal move in the status
// machine. Unknown statuses are never legal.
func CanTransition(from, to enums.DeliveryStatus) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal targets from the given status, in machine
// order. The slice is a copy.
func NextStatuses(from enums.DeliveryStatus) []enums.DeliveryStatus {
	allowed, ok := transitions[from]
	if !ok {
		return nil
	}
	out := make([]enums.DeliveryStatus, len(allowed))
	copy(out, allowed)
	return out
}

// requiresDriver reports whether entering the status is meaningless
// without a driver on the record.
func requiresDriver(to enums.DeliveryStatus) bool {
	switch to {
	case enums.DeliveryStatusDriverEnroute, enums.DeliveryStatusPickedUp, enums.DeliveryStatusOutForDelivery:
		return true
	}
	return false
}
