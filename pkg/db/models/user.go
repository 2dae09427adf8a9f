package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// User covers staff, drivers, and customers; Role drives authorization and
// BranchID scopes staff and drivers to one branch (nil for customers and
// super admins).
type User struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Role         enums.MemberRole `gorm:"column:role;type:member_role;not null"`
	BranchID     *uuid.UUID       `gorm:"column:branch_id;type:uuid;index"`
	FirstName    string           `gorm:"column:first_name;not null"`
	LastName     string           `gorm:"column:last_name"`
	Phone        *string          `gorm:"column:phone;index"`
	Email        *string          `gorm:"column:email;index"`
	PasswordHash *string          `gorm:"column:password_hash"`
	Active       bool             `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins the name parts for display in events and messages.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
