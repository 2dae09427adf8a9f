package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

const branchOverrideHeader = "X-Branch-Id"

// BranchContext requires a branch scope on the request. Branch staff get
// it from their token; super admins select one with the X-Branch-Id header.
func BranchContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			branchID := BranchIDFromContext(ctx)

			if RoleFromContext(ctx) == string(enums.MemberRoleSuperAdmin) {
				if raw := r.Header.Get(branchOverrideHeader); raw != "" {
					id, err := uuid.Parse(raw)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-Branch-Id must be a uuid"))
						return
					}
					branchID = id
				}
			}

			if branchID == uuid.Nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "branch scope required"))
				return
			}

			ctx = WithBranchID(ctx, branchID)
			if logg != nil {
				ctx = logg.WithBranchID(ctx, branchID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
