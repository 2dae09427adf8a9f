package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/api/responses"
	pkgAuth "github.com/omarkhalifa/laundryops-backend/pkg/auth"
	"github.com/omarkhalifa/laundryops-backend/pkg/config"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

// PortalSession validates a portal bearer token and pins it to the
// delivery named in the path. A portal token for one delivery can never
// read another; staff tokens are also accepted on these routes.
func PortalSession(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			deliveryID, err := uuid.Parse(chi.URLParam(r, "deliveryId"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "deliveryId must be a uuid"))
				return
			}

			claims, portalErr := pkgAuth.ParsePortalToken(cfg, token)
			if portalErr == nil {
				if claims.DeliveryID != deliveryID {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "session not valid for this delivery"))
					return
				}
				ctx := context.WithValue(r.Context(), ctxPortalClaims, claims)
				if logg != nil {
					ctx = logg.WithDeliveryID(ctx, deliveryID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Not a portal token; fall back to staff credentials. A session
			// that ran out tells the customer so; anything else is just
			// invalid.
			staff, staffErr := pkgAuth.ParseAccessToken(cfg, token)
			if staffErr != nil {
				msg := "invalid credentials"
				if errors.Is(portalErr, jwt.ErrTokenExpired) || errors.Is(staffErr, jwt.ErrTokenExpired) {
					msg = "portal session expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, msg))
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserID, staff.UserID)
			ctx = context.WithValue(ctx, ctxRole, string(staff.Role))
			if staff.BranchID != nil {
				ctx = context.WithValue(ctx, ctxBranchID, *staff.BranchID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
