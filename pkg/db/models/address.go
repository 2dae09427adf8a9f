package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a customer-owned location; coordinates are optional because
// not every saved address has been geocoded.
type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	Label      string    `gorm:"column:label"`
	Line1      string    `gorm:"column:line1;not null"`
	Line2      *string   `gorm:"column:line2"`
	City       string    `gorm:"column:city"`
	Lat        *float64  `gorm:"column:lat"`
	Lng        *float64  `gorm:"column:lng"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCoordinates reports whether the address can feed distance estimation.
func (a Address) HasCoordinates() bool {
	return a.Lat != nil && a.Lng != nil
}
