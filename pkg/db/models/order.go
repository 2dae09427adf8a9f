package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// Order is the commercial record a delivery fulfils. Money columns are
// numeric in the database and decimal in Go; float64 never touches totals.
type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID    uuid.UUID       `gorm:"column:branch_id;type:uuid;not null;index"`
	CustomerID  uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;index"`
	Number      string          `gorm:"column:number;uniqueIndex;not null"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Notes       *string         `gorm:"column:notes"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem snapshots one catalog line at the price in force when the
// order was placed.
type OrderItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	CatalogItemID uuid.UUID       `gorm:"column:catalog_item_id;type:uuid;not null"`
	Name          string          `gorm:"column:name;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal     decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Delivery is the dispatch record: one delivery per order that needs
// transport, carrying the status machine state and timing milestones.
type Delivery struct {
	ID                  uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID            uuid.UUID            `gorm:"column:branch_id;type:uuid;not null;index:idx_deliveries_branch_status"`
	OrderID             uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CustomerID          uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	DriverID            *uuid.UUID           `gorm:"column:driver_id;type:uuid;index"`
	Status              enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;index:idx_deliveries_branch_status"`
	Mode                enums.DeliveryMode   `gorm:"column:mode;type:delivery_mode;not null"`
	AddressID           *uuid.UUID           `gorm:"column:address_id;type:uuid"`
	PickupLat           *float64             `gorm:"column:pickup_lat"`
	PickupLng           *float64             `gorm:"column:pickup_lng"`
	DropoffLat          *float64             `gorm:"column:dropoff_lat"`
	DropoffLng          *float64             `gorm:"column:dropoff_lng"`
	ContactPhone        *string              `gorm:"column:contact_phone"`
	ContactEmail        *string              `gorm:"column:contact_email"`
	Notes               *string              `gorm:"column:notes"`
	RequestedAt         time.Time            `gorm:"column:requested_at;not null"`
	ScheduledPickupAt   *time.Time           `gorm:"column:scheduled_pickup_at"`
	ScheduledDeliveryAt *time.Time           `gorm:"column:scheduled_delivery_at"`
	AcceptedAt          *time.Time           `gorm:"column:accepted_at"`
	ActualPickupAt      *time.Time           `gorm:"column:actual_pickup_at"`
	ActualDeliveryAt    *time.Time           `gorm:"column:actual_delivery_at"`
	CancelledAt         *time.Time           `gorm:"column:cancelled_at"`
	CancelReason        *string              `gorm:"column:cancel_reason"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Order    *Order   `gorm:"foreignKey:OrderID;references:ID"`
	Customer *User    `gorm:"foreignKey:CustomerID;references:ID"`
	Driver   *User    `gorm:"foreignKey:DriverID;references:ID"`
	Address  *Address `gorm:"foreignKey:AddressID;references:ID"`
}

// DropoffCoordinates resolves the delivery target, preferring explicit
// dropoff columns over the linked address.
func (d Delivery) DropoffCoordinates() (lat, lng float64, ok bool) {
	if d.DropoffLat != nil && d.DropoffLng != nil {
		return *d.DropoffLat, *d.DropoffLng, true
	}
	if d.Address != nil && d.Address.HasCoordinates() {
		return *d.Address.Lat, *d.Address.Lng, true
	}
	return 0, 0, false
}
