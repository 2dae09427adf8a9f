// Package lifecycle defines the payloads of the domain events the platform
// publishes to the analytics pipeline through the transactional outbox.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// DeliveryCreatedEvent is emitted when a new delivery request enters the queue.
type DeliveryCreatedEvent struct {
	DeliveryID  uuid.UUID            `json:"delivery_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	BranchID    uuid.UUID            `json:"branch_id"`
	CustomerID  uuid.UUID            `json:"customer_id"`
	Mode        enums.DeliveryMode   `json:"mode"`
	Status      enums.DeliveryStatus `json:"status"`
	RequestedAt time.Time            `json:"requested_at"`
}

// RequestAcceptedEvent is emitted when a branch takes ownership of a request.
type RequestAcceptedEvent struct {
	DeliveryID uuid.UUID  `json:"delivery_id"`
	OrderID    uuid.UUID  `json:"order_id"`
	BranchID   uuid.UUID  `json:"branch_id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	DriverID   *uuid.UUID `json:"driver_id,omitempty"`
	AcceptedAt time.Time  `json:"accepted_at"`
}

// DriverAssignedEvent is emitted when a driver is attached to a delivery.
type DriverAssignedEvent struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	OrderID    uuid.UUID `json:"order_id"`
	BranchID   uuid.UUID `json:"branch_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	DriverName string    `json:"driver_name"`
}

// StatusChangedEvent is emitted on every delivery status transition. It
// carries both the previous and the new status so consumers never have to
// reconstruct ordering themselves.
type StatusChangedEvent struct {
	DeliveryID     uuid.UUID            `json:"delivery_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	BranchID       uuid.UUID            `json:"branch_id"`
	CustomerID     uuid.UUID            `json:"customer_id"`
	DriverID       *uuid.UUID           `json:"driver_id,omitempty"`
	PreviousStatus enums.DeliveryStatus `json:"previous_status"`
	Status         enums.DeliveryStatus `json:"status"`
	Total          decimal.Decimal      `json:"total"`
	CancelReason   *string              `json:"cancel_reason,omitempty"`
}

// MessageSentEvent is emitted when a message lands on a delivery thread.
type MessageSentEvent struct {
	MessageID  uuid.UUID           `json:"message_id"`
	DeliveryID uuid.UUID           `json:"delivery_id"`
	BranchID   uuid.UUID           `json:"branch_id"`
	SenderType enums.MessageSender `json:"sender_type"`
}

// OrderCreatedEvent is emitted when a customer order is placed.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	BranchID    uuid.UUID       `json:"branch_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Number      string          `json:"number"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"item_count"`
	DeliveryID  *uuid.UUID      `json:"delivery_id,omitempty"`
}
