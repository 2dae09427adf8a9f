package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/api/middleware"
	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/api/validators"
	"github.com/omarkhalifa/laundryops-backend/internal/dispatch"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
	"github.com/omarkhalifa/laundryops-backend/pkg/pagination"
)

func actorFromContext(r *http.Request) outbox.ActorRef {
	userID := middleware.UserIDFromContext(r.Context())
	actor := outbox.ActorRef{Type: middleware.RoleFromContext(r.Context())}
	if userID != uuid.Nil {
		actor.ID = &userID
	}
	return actor
}

func deliveryIDFromPath(r *http.Request) (uuid.UUID, error) {
	return validators.PathUUID(chi.URLParam(r, "deliveryId"), "deliveryId")
}

// DeliveriesList returns the branch's delivery queue, optionally enriched
// with driver recommendations for pending requests.
func DeliveriesList(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := validators.QueryStatuses(r, "status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverID, err := validators.QueryUUID(r, "driver_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// Drivers only ever see their own assignments, whatever the query says.
		if middleware.RoleFromContext(r.Context()) == string(enums.MemberRoleDriver) {
			self := middleware.UserIDFromContext(r.Context())
			driverID = &self
		}

		result, err := svc.ListDeliveries(r.Context(), dispatch.ListInput{
			BranchID: middleware.BranchIDFromContext(r.Context()),
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
			Statuses:            statuses,
			DriverID:            driverID,
			WithRecommendations: validators.QueryBool(r, "with_recommendations"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// DeliveryRequestsList returns the branch's pending requests, always
// enriched with driver recommendations when scoring is reachable.
func DeliveryRequestsList(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListDeliveries(r.Context(), dispatch.ListInput{
			BranchID: middleware.BranchIDFromContext(r.Context()),
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
			Statuses:            []enums.DeliveryStatus{enums.DeliveryStatusPending},
			WithRecommendations: true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func DeliveryDetail(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetDelivery(r.Context(), middleware.BranchIDFromContext(r.Context()), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type acceptRequestBody struct {
	DriverID *uuid.UUID `json:"driver_id"`
}

// DeliveryAccept moves a pending request into the branch's active queue.
func DeliveryAccept(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body acceptRequestBody
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := svc.AcceptRequest(r.Context(), dispatch.AcceptInput{
			DeliveryID: deliveryID,
			BranchID:   middleware.BranchIDFromContext(r.Context()),
			DriverID:   body.DriverID,
			Actor:      actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type updateStatusBody struct {
	Status       string  `json:"status" validate:"required"`
	CancelReason *string `json:"cancel_reason" validate:"omitempty,max=500"`
}

// DeliveryUpdateStatus advances the delivery through its status machine.
// Illegal transitions and lost races both come back as 409.
func DeliveryUpdateStatus(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateStatusBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseDeliveryStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		view, err := svc.UpdateStatus(r.Context(), dispatch.UpdateStatusInput{
			DeliveryID:   deliveryID,
			BranchID:     middleware.BranchIDFromContext(r.Context()),
			Next:         next,
			CancelReason: body.CancelReason,
			Actor:        actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type assignDriverBody struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

func DeliveryAssignDriver(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assignDriverBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AssignDriver(r.Context(), dispatch.AssignDriverInput{
			DeliveryID: deliveryID,
			BranchID:   middleware.BranchIDFromContext(r.Context()),
			DriverID:   body.DriverID,
			Actor:      actorFromContext(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
