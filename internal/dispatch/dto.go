package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omarkhalifa/laundryops-backend/internal/assignment"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/geo"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
	"github.com/omarkhalifa/laundryops-backend/pkg/pagination"
)

// ListInput describes one branch-scoped delivery listing request.
type ListInput struct {
	BranchID   uuid.UUID
	Pagination pagination.Params
	Statuses   []enums.DeliveryStatus
	DriverID   *uuid.UUID
	// WithRecommendations asks the optimizer for suggested drivers on
	// pending deliveries. Listing still succeeds when scoring is down.
	WithRecommendations bool
}

// PersonSummary is the compact actor shape embedded in delivery views.
type PersonSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone *string   `json:"phone,omitempty"`
}

// OrderSummary is the compact order shape embedded in delivery views.
type OrderSummary struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
}

// DeliveryView is the enriched delivery returned by list and get.
type DeliveryView struct {
	ID                  uuid.UUID                  `json:"id"`
	BranchID            uuid.UUID                  `json:"branch_id"`
	Status              enums.DeliveryStatus       `json:"status"`
	Mode                enums.DeliveryMode         `json:"mode"`
	Order               OrderSummary               `json:"order"`
	Customer            PersonSummary              `json:"customer"`
	Driver              *PersonSummary             `json:"driver,omitempty"`
	Notes               *string                    `json:"notes,omitempty"`
	RequestedAt         time.Time                  `json:"requested_at"`
	ScheduledPickupAt   *time.Time                 `json:"scheduled_pickup_at,omitempty"`
	ScheduledDeliveryAt *time.Time                 `json:"scheduled_delivery_at,omitempty"`
	AcceptedAt          *time.Time                 `json:"accepted_at,omitempty"`
	ActualPickupAt      *time.Time                 `json:"actual_pickup_at,omitempty"`
	ActualDeliveryAt    *time.Time                 `json:"actual_delivery_at,omitempty"`
	CancelReason        *string                    `json:"cancel_reason,omitempty"`
	NextStatuses        []enums.DeliveryStatus     `json:"next_statuses"`
	Estimate            *geo.Estimate              `json:"estimate,omitempty"`
	Recommendation      *assignment.Recommendation `json:"recommendation,omitempty"`
}

// ListResult is one page of enriched deliveries.
type ListResult struct {
	Deliveries []DeliveryView `json:"deliveries"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// AcceptInput moves a pending delivery request into the branch's queue.
type AcceptInput struct {
	DeliveryID uuid.UUID
	BranchID   uuid.UUID
	DriverID   *uuid.UUID
	Actor      outbox.ActorRef
}

// UpdateStatusInput advances a delivery through the status machine.
type UpdateStatusInput struct {
	DeliveryID   uuid.UUID
	BranchID     uuid.UUID
	Next         enums.DeliveryStatus
	CancelReason *string
	Actor        outbox.ActorRef
}

// AssignDriverInput attaches a branch driver to a delivery.
type AssignDriverInput struct {
	DeliveryID uuid.UUID
	BranchID   uuid.UUID
	DriverID   uuid.UUID
	Actor      outbox.ActorRef
}
