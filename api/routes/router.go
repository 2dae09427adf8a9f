package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omarkhalifa/laundryops-backend/api/controllers"
	"github.com/omarkhalifa/laundryops-backend/api/middleware"
	"github.com/omarkhalifa/laundryops-backend/internal/broadcast"
	"github.com/omarkhalifa/laundryops-backend/internal/dispatch"
	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/internal/messaging"
	"github.com/omarkhalifa/laundryops-backend/internal/orders"
	"github.com/omarkhalifa/laundryops-backend/internal/portal"
	"github.com/omarkhalifa/laundryops-backend/pkg/config"
	"github.com/omarkhalifa/laundryops-backend/pkg/db"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     db.Pinger
	Dispatch  dispatch.Service
	Orders    orders.Service
	Portal    portal.Service
	Messaging messaging.Service
	Locations drivers.LocationStore
	Hub       *broadcast.Hub
	Registry  *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	staffRoles := []string{
		string(enums.MemberRoleSuperAdmin),
		string(enums.MemberRoleManager),
		string(enums.MemberRoleAgent),
	}
	// Drivers may read the queue; DeliveriesList pins them to their own
	// assignments.
	queueRoles := append(append([]string{}, staffRoles...), string(enums.MemberRoleDriver))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Driver location ingest.
		r.With(middleware.RequireRole(logg, string(enums.MemberRoleDriver))).
			Patch("/drivers/me/location", controllers.DriverUpdateLocation(deps.Locations, logg))

		r.Route("/delivery-orders", func(r chi.Router) {
			// Customer order intake.
			r.With(middleware.RequireRole(logg, string(enums.MemberRoleCustomer))).
				Post("/", controllers.OrderCreate(deps.Orders, logg))

			r.With(middleware.RequireRole(logg, queueRoles...), middleware.BranchContext(logg)).
				Get("/", controllers.DeliveriesList(deps.Dispatch, logg))

			// Branch staff surface.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, staffRoles...))
				r.Use(middleware.BranchContext(logg))

				r.Get("/events", controllers.DeliveryEvents(deps.Hub, logg))
				r.Route("/{deliveryId}", func(r chi.Router) {
					r.Get("/", controllers.DeliveryDetail(deps.Dispatch, logg))
					r.Patch("/status", controllers.DeliveryUpdateStatus(deps.Dispatch, logg))
					r.Patch("/assign-driver", controllers.DeliveryAssignDriver(deps.Dispatch, logg))
					r.Get("/messages", controllers.MessageList(deps.Messaging, logg))
					r.Post("/messages", controllers.MessagePost(deps.Messaging, logg))
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, staffRoles...))
			r.Use(middleware.BranchContext(logg))

			r.Route("/delivery-order-requests", func(r chi.Router) {
				r.Get("/", controllers.DeliveryRequestsList(deps.Dispatch, logg))
				r.Patch("/{deliveryId}/accept", controllers.DeliveryAccept(deps.Dispatch, logg))
			})

			r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))
		})
	})

	r.Route("/api/portal", func(r chi.Router) {
		r.Post("/delivery-auth/request", controllers.PortalRequestCode(deps.Portal, logg))
		r.Post("/delivery-auth/verify", controllers.PortalVerifyCode(deps.Portal, logg))

		r.Route("/delivery/{deliveryId}", func(r chi.Router) {
			r.Use(middleware.PortalSession(cfg.JWT, logg))
			r.Get("/", controllers.PortalDeliverySummary(deps.Portal, logg))
			r.Get("/messages", controllers.MessageList(deps.Messaging, logg))
			r.Post("/messages", controllers.MessagePost(deps.Messaging, logg))
		})
	})

	return r
}
