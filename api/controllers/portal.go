package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/api/validators"
	"github.com/omarkhalifa/laundryops-backend/internal/portal"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

// remoteIP strips the port and honors the first forwarded address when the
// API sits behind a proxy.
func remoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type portalRequestCodeBody struct {
	DeliveryID uuid.UUID `json:"delivery_id" validate:"required"`
	Channel    string    `json:"channel" validate:"required,oneof=sms email"`
}

// PortalRequestCode sends a one-time access code to the delivery's
// registered contact. The destination itself is never client-supplied.
func PortalRequestCode(svc portal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body portalRequestCodeBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		channel, err := enums.ParsePortalChannel(body.Channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		result, err := svc.RequestCode(r.Context(), portal.RequestCodeInput{
			DeliveryID: body.DeliveryID,
			Channel:    channel,
			RemoteIP:   remoteIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type portalVerifyCodeBody struct {
	DeliveryID uuid.UUID `json:"delivery_id" validate:"required"`
	Channel    string    `json:"channel" validate:"required,oneof=sms email"`
	Code       string    `json:"code" validate:"required,min=4,max=12"`
}

// PortalVerifyCode exchanges a valid code for a delivery-scoped session.
func PortalVerifyCode(svc portal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body portalVerifyCodeBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		channel, err := enums.ParsePortalChannel(body.Channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		session, err := svc.VerifyCode(r.Context(), portal.VerifyCodeInput{
			DeliveryID: body.DeliveryID,
			Channel:    channel,
			Code:       body.Code,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// PortalDeliverySummary is the read surface of a portal session.
func PortalDeliverySummary(svc portal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), deliveryID, actorBranchScope(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
