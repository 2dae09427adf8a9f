package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/api/middleware"
	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/api/validators"
	"github.com/omarkhalifa/laundryops-backend/internal/messaging"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

type postMessageBody struct {
	Body        string   `json:"body" validate:"required,min=1,max=4000"`
	Attachments []string `json:"attachments" validate:"omitempty,max=10,dive,url"`
}

// messageSender derives the sender identity from whichever session
// authenticated the request: a portal session posts as the customer, a
// staff token as the agent behind it.
func messageSender(r *http.Request) (enums.MessageSender, *uuid.UUID, string) {
	if claims := middleware.PortalClaimsFromContext(r.Context()); claims != nil {
		name := claims.DisplayName
		if name == "" {
			name = "Customer"
		}
		return enums.MessageSenderCustomer, nil, name
	}
	userID := middleware.UserIDFromContext(r.Context())
	return enums.MessageSenderAgent, &userID, "Branch staff"
}

// actorBranchScope returns the branch scope delivery access must be
// checked against. Portal sessions are already pinned to the delivery by
// the middleware; staff without a branch scope are super admins.
func actorBranchScope(r *http.Request) *uuid.UUID {
	if middleware.PortalClaimsFromContext(r.Context()) != nil {
		return nil
	}
	if branchID := middleware.BranchIDFromContext(r.Context()); branchID != uuid.Nil {
		return &branchID
	}
	return nil
}

// MessagePost appends a message to the delivery thread.
func MessagePost(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body postMessageBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		senderType, senderID, senderName := messageSender(r)
		message, err := svc.Post(r.Context(), messaging.PostInput{
			DeliveryID:  deliveryID,
			ActorBranch: actorBranchScope(r),
			SenderType:  senderType,
			SenderID:    senderID,
			SenderName:  senderName,
			Body:        body.Body,
			Attachments: body.Attachments,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, message)
	}
}

// MessageList returns the whole thread in posting order.
func MessageList(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := deliveryIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		messages, err := svc.List(r.Context(), deliveryID, actorBranchScope(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, messages)
	}
}
