package controllers

import (
	"net/http"
	"time"

	"github.com/omarkhalifa/laundryops-backend/api/middleware"
	"github.com/omarkhalifa/laundryops-backend/api/responses"
	"github.com/omarkhalifa/laundryops-backend/api/validators"
	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

type driverLocationBody struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lng float64 `json:"lng" validate:"required,longitude"`
}

// DriverUpdateLocation records the calling driver's latest position.
// Updates are last-write-wins; the store keeps only the newest sample.
func DriverUpdateLocation(store drivers.LocationStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body driverLocationBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		location := drivers.Location{
			DriverID:   middleware.UserIDFromContext(r.Context()),
			Lat:        body.Lat,
			Lng:        body.Lng,
			RecordedAt: time.Now().UTC(),
		}
		if err := store.Record(r.Context(), location); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record location"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, location)
	}
}
