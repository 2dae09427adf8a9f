package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a staff JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.MemberRole
	BranchID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to staff and drivers.
type AccessTokenClaims struct {
	UserID   uuid.UUID        `json:"user_id"`
	Role     enums.MemberRole `json:"role"`
	BranchID *uuid.UUID       `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// PortalClaims represents the short-lived session minted after a customer
// verifies a portal access code. It is scoped to exactly one delivery.
type PortalClaims struct {
	DeliveryID  uuid.UUID `json:"delivery_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Contact     string    `json:"contact"`
	DisplayName string    `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}
