package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/auth"
)

type contextKey string

const (
	ctxUserID       contextKey = "user_id"
	ctxRole         contextKey = "actor_role"
	ctxBranchID     contextKey = "branch_id"
	ctxPortalClaims contextKey = "portal_claims"
)

func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func BranchIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxBranchID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// PortalClaimsFromContext returns the portal session claims, or nil when
// the request was authenticated as staff.
func PortalClaimsFromContext(ctx context.Context) *auth.PortalClaims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxPortalClaims).(*auth.PortalClaims); ok {
		return v
	}
	return nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// WithBranchID injects the branch scope into the context.
func WithBranchID(ctx context.Context, branchID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBranchID, branchID)
}
