package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/api/middleware"
	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/api/validators"
	"github.com/omarkhalifa/laundryops-backend/internal/orders"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

type orderLineBody struct {
	CatalogItemID uuid.UUID `json:"catalog_item_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,min=1"`
}

type orderDeliveryBody struct {
	Mode                string     `json:"mode" validate:"required,oneof=driver_pickup customer_drop_off"`
	AddressID           *uuid.UUID `json:"address_id"`
	DropoffLat          *float64   `json:"dropoff_lat" validate:"omitempty,latitude"`
	DropoffLng          *float64   `json:"dropoff_lng" validate:"omitempty,longitude"`
	ContactPhone        *string    `json:"contact_phone" validate:"omitempty,max=32"`
	ContactEmail        *string    `json:"contact_email" validate:"omitempty,email"`
	Notes               *string    `json:"notes" validate:"omitempty,max=1000"`
	ScheduledPickupAt   *time.Time `json:"scheduled_pickup_at"`
	ScheduledDeliveryAt *time.Time `json:"scheduled_delivery_at"`
}

type createOrderBody struct {
	BranchCode string             `json:"branch_code" validate:"required,max=32"`
	Items      []orderLineBody    `json:"items" validate:"required,min=1,dive"`
	Delivery   *orderDeliveryBody `json:"delivery"`
	Notes      *string            `json:"notes" validate:"omitempty,max=1000"`
}

// OrderCreate places a customer order, optionally with a delivery request
// that lands on the branch's dispatch queue.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createOrderBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.CreateInput{
			BranchCode: body.BranchCode,
			CustomerID: middleware.UserIDFromContext(r.Context()),
			Notes:      body.Notes,
		}
		for _, line := range body.Items {
			input.Items = append(input.Items, orders.LineInput{
				CatalogItemID: line.CatalogItemID,
				Quantity:      line.Quantity,
			})
		}
		if body.Delivery != nil {
			mode, err := enums.ParseDeliveryMode(body.Delivery.Mode)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
				return
			}
			input.Delivery = &orders.DeliveryRequestInput{
				Mode:                mode,
				AddressID:           body.Delivery.AddressID,
				DropoffLat:          body.Delivery.DropoffLat,
				DropoffLng:          body.Delivery.DropoffLng,
				ContactPhone:        body.Delivery.ContactPhone,
				ContactEmail:        body.Delivery.ContactEmail,
				Notes:               body.Delivery.Notes,
				ScheduledPickupAt:   body.Delivery.ScheduledPickupAt,
				ScheduledDeliveryAt: body.Delivery.ScheduledDeliveryAt,
			}
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), middleware.BranchIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
