package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/internal/assignment"
	"github.com/omarkhalifa/laundryops-backend/internal/broadcast"
	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/internal/lifecycle"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/geo"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/metrics"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type recommender interface {
	Recommend(ctx context.Context, branchID uuid.UUID, points []assignment.DeliveryPoint) map[uuid.UUID]assignment.Recommendation
}

type broadcaster interface {
	Publish(event broadcast.Event)
}

// Service defines delivery orchestration operations.
type Service interface {
	ListDeliveries(ctx context.Context, input ListInput) (*ListResult, error)
	GetDelivery(ctx context.Context, branchID, deliveryID uuid.UUID) (*DeliveryView, error)
	AcceptRequest(ctx context.Context, input AcceptInput) (*DeliveryView, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*DeliveryView, error)
	AssignDriver(ctx context.Context, input AssignDriverInput) (*DeliveryView, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	estimator *geo.Estimator
	locations drivers.LocationStore
	optimizer recommender
	hub       broadcaster
	metrics   *metrics.DispatchMetrics
	logg      *logger.Logger
}

// ServiceParams bundles the service dependencies.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Estimator *geo.Estimator
	Locations drivers.LocationStore
	Optimizer recommender
	Hub       broadcaster
	Metrics   *metrics.DispatchMetrics
	Logger    *logger.Logger
}

// NewService builds the dispatch service with its required dependencies.
// Optimizer, Hub, Metrics and Logger are optional enrichment concerns.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Estimator == nil {
		return nil, fmt.Errorf("geo estimator required")
	}
	if params.Locations == nil {
		return nil, fmt.Errorf("location store required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		estimator: params.Estimator,
		locations: params.Locations,
		optimizer: params.Optimizer,
		hub:       params.Hub,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) ListDeliveries(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}

	list, err := s.repo.ListByBranch(ctx, input.BranchID, input.Pagination, ListFilters{
		Statuses: input.Statuses,
		DriverID: input.DriverID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}

	views := make([]DeliveryView, len(list.Items))
	for i := range list.Items {
		views[i] = toView(&list.Items[i])
	}

	s.enrichEstimates(ctx, list.Items, views)
	if input.WithRecommendations {
		s.enrichRecommendations(ctx, input.BranchID, list.Items, views)
	}

	return &ListResult{Deliveries: views, NextCursor: list.NextCursor}, nil
}

func (s *service) GetDelivery(ctx context.Context, branchID, deliveryID uuid.UUID) (*DeliveryView, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}

	delivery, err := s.repo.FindByIDInBranch(ctx, deliveryID, branchID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}

	views := []DeliveryView{toView(delivery)}
	s.enrichEstimates(ctx, []models.Delivery{*delivery}, views)
	return &views[0], nil
}

func (s *service) AcceptRequest(ctx context.Context, input AcceptInput) (*DeliveryView, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}

	var accepted *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByIDInBranch(ctx, input.DeliveryID, input.BranchID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if delivery.Status != enums.DeliveryStatusPending {
			return transitionConflict(delivery.Status, enums.DeliveryStatusAccepted)
		}

		now := time.Now().UTC()
		extra := map[string]any{"accepted_at": now}
		if input.DriverID != nil {
			if _, err := repo.FindDriver(ctx, *input.DriverID, input.BranchID); err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found in branch")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
			}
			extra["driver_id"] = *input.DriverID
		}

		changed, err := repo.UpdateStatusIf(ctx, delivery.ID, enums.DeliveryStatusPending, enums.DeliveryStatusAccepted, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept delivery")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery was modified concurrently")
		}

		delivery.Status = enums.DeliveryStatusAccepted
		delivery.AcceptedAt = &now
		if input.DriverID != nil {
			delivery.DriverID = input.DriverID
		}
		accepted = delivery

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestAccepted,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			BranchID:      &delivery.BranchID,
			Actor:         &input.Actor,
			Data: lifecycle.RequestAcceptedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				BranchID:   delivery.BranchID,
				CustomerID: delivery.CustomerID,
				DriverID:   delivery.DriverID,
				AcceptedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, accepted, enums.DeliveryStatusPending)
	view := toView(accepted)
	return &view, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*DeliveryView, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}
	if !input.Next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Next))
	}

	var updated *models.Delivery
	var previous enums.DeliveryStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByIDInBranch(ctx, input.DeliveryID, input.BranchID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}

		if !CanTransition(delivery.Status, input.Next) {
			return transitionConflict(delivery.Status, input.Next)
		}
		if requiresDriver(input.Next) && delivery.DriverID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("a driver must be assigned before moving to %s", input.Next))
		}

		now := time.Now().UTC()
		extra := map[string]any{}
		switch input.Next {
		case enums.DeliveryStatusAccepted:
			extra["accepted_at"] = now
		case enums.DeliveryStatusPickedUp:
			extra["actual_pickup_at"] = now
		case enums.DeliveryStatusCompleted:
			extra["actual_delivery_at"] = now
		case enums.DeliveryStatusCancelled:
			extra["cancelled_at"] = now
			if input.CancelReason != nil {
				extra["cancel_reason"] = *input.CancelReason
			}
		}

		changed, err := repo.UpdateStatusIf(ctx, delivery.ID, delivery.Status, input.Next, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery was modified concurrently")
		}

		previous = delivery.Status
		delivery.Status = input.Next
		switch input.Next {
		case enums.DeliveryStatusAccepted:
			delivery.AcceptedAt = &now
		case enums.DeliveryStatusPickedUp:
			delivery.ActualPickupAt = &now
		case enums.DeliveryStatusCompleted:
			delivery.ActualDeliveryAt = &now
		case enums.DeliveryStatusCancelled:
			delivery.CancelledAt = &now
			delivery.CancelReason = input.CancelReason
		}
		updated = delivery

		event := lifecycle.StatusChangedEvent{
			DeliveryID:     delivery.ID,
			OrderID:        delivery.OrderID,
			BranchID:       delivery.BranchID,
			CustomerID:     delivery.CustomerID,
			DriverID:       delivery.DriverID,
			PreviousStatus: previous,
			Status:         delivery.Status,
			CancelReason:   input.CancelReason,
		}
		if delivery.Order != nil {
			event.Total = delivery.Order.Total
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStatusChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			BranchID:      &delivery.BranchID,
			Actor:         &input.Actor,
			Data:          event,
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, updated, previous)
	view := toView(updated)
	return &view, nil
}

func (s *service) AssignDriver(ctx context.Context, input AssignDriverInput) (*DeliveryView, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}

	var updated *models.Delivery
	var driver *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByIDInBranch(ctx, input.DeliveryID, input.BranchID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if delivery.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot assign a driver to a %s delivery", delivery.Status)).
				WithDetails(map[string]any{"status": delivery.Status})
		}

		driver, err = repo.FindDriver(ctx, input.DriverID, input.BranchID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found in branch")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
		}

		if err := repo.UpdateDriver(ctx, delivery.ID, driver.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
		}

		delivery.DriverID = &driver.ID
		delivery.Driver = driver
		updated = delivery

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDriverAssigned,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			BranchID:      &delivery.BranchID,
			Actor:         &input.Actor,
			Data: lifecycle.DriverAssignedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				BranchID:   delivery.BranchID,
				DriverID:   driver.ID,
				DriverName: driver.FullName(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(broadcast.Event{
			Kind:       broadcast.KindDriverAssigned,
			BranchID:   updated.BranchID,
			DeliveryID: updated.ID,
			Payload: map[string]any{
				"driver_id":   driver.ID,
				"driver_name": driver.FullName(),
			},
		})
	}

	view := toView(updated)
	return &view, nil
}

// afterTransition fans the committed transition out to live dashboards and
// metrics. It runs only after the transaction committed.
func (s *service) afterTransition(ctx context.Context, delivery *models.Delivery, previous enums.DeliveryStatus) {
	s.metrics.IncTransition(previous.String(), delivery.Status.String())
	if s.hub != nil {
		s.hub.Publish(broadcast.Event{
			Kind:       broadcast.KindStatusChanged,
			BranchID:   delivery.BranchID,
			DeliveryID: delivery.ID,
			Payload: map[string]any{
				"previous_status": previous,
				"status":          delivery.Status,
			},
		})
	}
	if s.logg != nil {
		logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"from": previous.String(),
			"to":   delivery.Status.String(),
		})
		s.logg.Info(logCtx, "delivery status changed")
	}
}

// enrichEstimates attaches distance/ETA for deliveries whose driver has a
// current location and whose dropoff is geocoded. Estimation problems are
// logged and skipped; the listing itself never fails on them.
func (s *service) enrichEstimates(ctx context.Context, items []models.Delivery, views []DeliveryView) {
	driverIDs := make([]uuid.UUID, 0, len(items))
	seen := map[uuid.UUID]struct{}{}
	for i := range items {
		if items[i].DriverID == nil {
			continue
		}
		if _, ok := seen[*items[i].DriverID]; ok {
			continue
		}
		seen[*items[i].DriverID] = struct{}{}
		driverIDs = append(driverIDs, *items[i].DriverID)
	}
	if len(driverIDs) == 0 {
		return
	}

	locations, err := s.locations.Latest(ctx, driverIDs)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "driver locations unavailable, skipping estimates")
		}
		return
	}

	for i := range items {
		delivery := &items[i]
		if delivery.DriverID == nil {
			continue
		}
		loc, ok := locations[*delivery.DriverID]
		if !ok {
			continue
		}
		lat, lng, ok := delivery.DropoffCoordinates()
		if !ok {
			continue
		}
		est, err := s.estimator.Estimate(loc.Lat, loc.Lng, lat, lng)
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
				s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "skipping estimate for delivery")
			}
			continue
		}
		views[i].Estimate = &est
	}
}

// enrichRecommendations asks the optimizer for driver suggestions on
// pending deliveries. Absence of a recommendation is normal, not an error.
func (s *service) enrichRecommendations(ctx context.Context, branchID uuid.UUID, items []models.Delivery, views []DeliveryView) {
	if s.optimizer == nil {
		return
	}

	points := make([]assignment.DeliveryPoint, 0, len(items))
	for i := range items {
		if items[i].Status != enums.DeliveryStatusPending || items[i].DriverID != nil {
			continue
		}
		point := assignment.DeliveryPoint{ID: items[i].ID}
		if lat, lng, ok := items[i].DropoffCoordinates(); ok {
			point.Lat = &lat
			point.Lng = &lng
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return
	}

	recommendations := s.optimizer.Recommend(ctx, branchID, points)
	for i := range items {
		if rec, ok := recommendations[items[i].ID]; ok {
			recCopy := rec
			views[i].Recommendation = &recCopy
		}
	}
}

func transitionConflict(from, to enums.DeliveryStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move delivery from %s to %s", from, to)).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": NextStatuses(from),
		})
}

func toView(delivery *models.Delivery) DeliveryView {
	view := DeliveryView{
		ID:                  delivery.ID,
		BranchID:            delivery.BranchID,
		Status:              delivery.Status,
		Mode:                delivery.Mode,
		Notes:               delivery.Notes,
		RequestedAt:         delivery.RequestedAt,
		ScheduledPickupAt:   delivery.ScheduledPickupAt,
		ScheduledDeliveryAt: delivery.ScheduledDeliveryAt,
		AcceptedAt:          delivery.AcceptedAt,
		ActualPickupAt:      delivery.ActualPickupAt,
		ActualDeliveryAt:    delivery.ActualDeliveryAt,
		CancelReason:        delivery.CancelReason,
		NextStatuses:        NextStatuses(delivery.Status),
	}
	view.Order.ID = delivery.OrderID
	if delivery.Order != nil {
		view.Order = OrderSummary{
			ID:          delivery.Order.ID,
			Number:      delivery.Order.Number,
			Subtotal:    delivery.Order.Subtotal,
			DeliveryFee: delivery.Order.DeliveryFee,
			Total:       delivery.Order.Total,
		}
	}
	view.Customer.ID = delivery.CustomerID
	if delivery.Customer != nil {
		view.Customer = PersonSummary{
			ID:    delivery.Customer.ID,
			Name:  delivery.Customer.FullName(),
			Phone: delivery.Customer.Phone,
		}
	}
	if delivery.Driver != nil {
		view.Driver = &PersonSummary{
			ID:    delivery.Driver.ID,
			Name:  delivery.Driver.FullName(),
			Phone: delivery.Driver.Phone,
		}
	}
	return view
}
