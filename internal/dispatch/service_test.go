package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/internal/broadcast"
	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/geo"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
	"github.com/omarkhalifa/laundryops-backend/pkg/pagination"
)

type stubRepo struct {
	delivery       *models.Delivery
	driver         *models.User
	list           *DeliveryList
	updateChanged  bool
	updateErr      error
	updatedExtra   map[string]any
	updatedNext    enums.DeliveryStatus
	assignedDriver *uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return s.FindByIDInBranch(ctx, id, uuid.Nil)
}

func (s *stubRepo) FindByIDInBranch(ctx context.Context, id, branchID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.delivery
	return &copied, nil
}

func (s *stubRepo) ListByBranch(ctx context.Context, branchID uuid.UUID, params pagination.Params, filters ListFilters) (*DeliveryList, error) {
	if s.list != nil {
		return s.list, nil
	}
	return &DeliveryList{}, nil
}

func (s *stubRepo) ListPendingByBranch(ctx context.Context, branchID uuid.UUID) ([]models.Delivery, error) {
	return nil, nil
}

func (s *stubRepo) FindPendingRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Delivery, error) {
	return nil, nil
}

func (s *stubRepo) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	return delivery, nil
}

func (s *stubRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next enums.DeliveryStatus, extra map[string]any) (bool, error) {
	s.updatedNext = next
	s.updatedExtra = extra
	return s.updateChanged, s.updateErr
}

func (s *stubRepo) UpdateDriver(ctx context.Context, id uuid.UUID, driverID uuid.UUID) error {
	s.assignedDriver = &driverID
	return nil
}

func (s *stubRepo) FindDriver(ctx context.Context, driverID, branchID uuid.UUID) (*models.User, error) {
	if s.driver == nil || s.driver.ID != driverID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.driver, nil
}

func (s *stubRepo) ListActiveDrivers(ctx context.Context, branchID uuid.UUID) ([]models.User, error) {
	if s.driver == nil {
		return nil, nil
	}
	return []models.User{*s.driver}, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, repo *stubRepo, ob *stubOutbox) Service {
	t.Helper()
	estimator, err := geo.NewEstimator(30)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        stubTx{},
		Outbox:    ob,
		Estimator: estimator,
		Locations: drivers.NewMemoryLocationStore(0),
	})
	require.NoError(t, err)
	return svc
}

func pendingDelivery(branchID uuid.UUID) *models.Delivery {
	return &models.Delivery{
		ID:         uuid.New(),
		BranchID:   branchID,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		Status:     enums.DeliveryStatusPending,
		Mode:       enums.DeliveryModeDriverPickup,
	}
}

func TestAcceptRequestMovesPendingToAccepted(t *testing.T) {
	branchID := uuid.New()
	repo := &stubRepo{delivery: pendingDelivery(branchID), updateChanged: true}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob)

	view, err := svc.AcceptRequest(context.Background(), AcceptInput{
		DeliveryID: repo.delivery.ID,
		BranchID:   branchID,
		Actor:      *outbox.SystemActor(),
	})
	require.NoError(t, err)

	assert.Equal(t, enums.DeliveryStatusAccepted, view.Status)
	assert.NotNil(t, view.AcceptedAt)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventRequestAccepted, ob.events[0].EventType)
	assert.Contains(t, repo.updatedExtra, "accepted_at")
}

func TestAcceptRequestWithDriverAttachesDriver(t *testing.T) {
	branchID := uuid.New()
	driver := &models.User{ID: uuid.New(), BranchID: &branchID, Role: enums.MemberRoleDriver, FirstName: "Huda"}
	repo := &stubRepo{delivery: pendingDelivery(branchID), driver: driver, updateChanged: true}
	svc := newTestService(t, repo, &stubOutbox{})

	view, err := svc.AcceptRequest(context.Background(), AcceptInput{
		DeliveryID: repo.delivery.ID,
		BranchID:   branchID,
		DriverID:   &driver.ID,
		Actor:      *outbox.SystemActor(),
	})
	require.NoError(t, err)

	assert.Contains(t, repo.updatedExtra, "driver_id")
	require.NotNil(t, view)
}

func TestAcceptRequestRejectsNonPending(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	delivery.Status = enums.DeliveryStatusAccepted
	repo := &stubRepo{delivery: delivery}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.AcceptRequest(context.Background(), AcceptInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, apiErr.Code())
}

func TestAcceptRequestLostRaceIsConflict(t *testing.T) {
	branchID := uuid.New()
	repo := &stubRepo{delivery: pendingDelivery(branchID), updateChanged: false}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.AcceptRequest(context.Background(), AcceptInput{
		DeliveryID: repo.delivery.ID,
		BranchID:   branchID,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeConflict, apiErr.Code())
}

func TestAcceptRequestUnknownDeliveryIsNotFound(t *testing.T) {
	branchID := uuid.New()
	svc := newTestService(t, &stubRepo{}, &stubOutbox{})

	_, err := svc.AcceptRequest(context.Background(), AcceptInput{
		DeliveryID: uuid.New(),
		BranchID:   branchID,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())
}

func TestUpdateStatusHappyPathEmitsEvent(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	delivery := pendingDelivery(branchID)
	delivery.Status = enums.DeliveryStatusAccepted
	delivery.DriverID = &driverID
	repo := &stubRepo{delivery: delivery, updateChanged: true}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob)

	view, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		Next:       enums.DeliveryStatusDriverEnroute,
		Actor:      *outbox.SystemActor(),
	})
	require.NoError(t, err)

	assert.Equal(t, enums.DeliveryStatusDriverEnroute, view.Status)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventStatusChanged, ob.events[0].EventType)
}

func TestUpdateStatusIllegalTransitionIsStateConflict(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	repo := &stubRepo{delivery: delivery, updateChanged: true}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		Next:       enums.DeliveryStatusCompleted,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, apiErr.Code())
}

func TestUpdateStatusRequiresDriverForRoadStatuses(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	delivery.Status = enums.DeliveryStatusAccepted
	repo := &stubRepo{delivery: delivery, updateChanged: true}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		Next:       enums.DeliveryStatusDriverEnroute,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestUpdateStatusLostRaceIsConflict(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	repo := &stubRepo{delivery: delivery, updateChanged: false}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		Next:       enums.DeliveryStatusCancelled,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeConflict, apiErr.Code())
}

func TestUpdateStatusStampsMilestones(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()

	cases := []struct {
		from   enums.DeliveryStatus
		to     enums.DeliveryStatus
		column string
	}{
		{enums.DeliveryStatusDriverEnroute, enums.DeliveryStatusPickedUp, "actual_pickup_at"},
		{enums.DeliveryStatusOutForDelivery, enums.DeliveryStatusCompleted, "actual_delivery_at"},
		{enums.DeliveryStatusPending, enums.DeliveryStatusCancelled, "cancelled_at"},
	}
	for _, tc := range cases {
		t.Run(string(tc.to), func(t *testing.T) {
			delivery := pendingDelivery(branchID)
			delivery.Status = tc.from
			delivery.DriverID = &driverID
			repo := &stubRepo{delivery: delivery, updateChanged: true}
			svc := newTestService(t, repo, &stubOutbox{})

			_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
				DeliveryID: delivery.ID,
				BranchID:   branchID,
				Next:       tc.to,
				Actor:      *outbox.SystemActor(),
			})
			require.NoError(t, err)
			assert.Contains(t, repo.updatedExtra, tc.column)
		})
	}
}

func TestUpdateStatusCancelCarriesReason(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	repo := &stubRepo{delivery: delivery, updateChanged: true}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob)

	reason := "customer unreachable"
	view, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID:   delivery.ID,
		BranchID:     branchID,
		Next:         enums.DeliveryStatusCancelled,
		CancelReason: &reason,
		Actor:        *outbox.SystemActor(),
	})
	require.NoError(t, err)

	require.NotNil(t, view.CancelReason)
	assert.Equal(t, reason, *view.CancelReason)
	assert.Equal(t, reason, repo.updatedExtra["cancel_reason"])
}

func TestUpdateStatusWrongBranchIsNotFound(t *testing.T) {
	delivery := pendingDelivery(uuid.New())
	repo := &stubRepo{delivery: delivery, updateChanged: true}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: uuid.New(),
		BranchID:   uuid.New(),
		Next:       enums.DeliveryStatusAccepted,
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())
}

func TestAssignDriverAttachesBranchDriver(t *testing.T) {
	branchID := uuid.New()
	driver := &models.User{ID: uuid.New(), BranchID: &branchID, Role: enums.MemberRoleDriver, FirstName: "Omar", LastName: "Saleh"}
	delivery := pendingDelivery(branchID)
	delivery.Status = enums.DeliveryStatusAccepted
	repo := &stubRepo{delivery: delivery, driver: driver}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob)

	view, err := svc.AssignDriver(context.Background(), AssignDriverInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		DriverID:   driver.ID,
		Actor:      *outbox.SystemActor(),
	})
	require.NoError(t, err)

	require.NotNil(t, repo.assignedDriver)
	assert.Equal(t, driver.ID, *repo.assignedDriver)
	require.NotNil(t, view.Driver)
	assert.Equal(t, "Omar Saleh", view.Driver.Name)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDriverAssigned, ob.events[0].EventType)
}

func TestAssignDriverUnknownDriverIsNotFound(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	repo := &stubRepo{delivery: delivery}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.AssignDriver(context.Background(), AssignDriverInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		DriverID:   uuid.New(),
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())
}

func TestAssignDriverTerminalDeliveryIsStateConflict(t *testing.T) {
	branchID := uuid.New()
	delivery := pendingDelivery(branchID)
	delivery.Status = enums.DeliveryStatusCompleted
	repo := &stubRepo{delivery: delivery}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.AssignDriver(context.Background(), AssignDriverInput{
		DeliveryID: delivery.ID,
		BranchID:   branchID,
		DriverID:   uuid.New(),
		Actor:      *outbox.SystemActor(),
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, apiErr.Code())
}

func TestListDeliveriesEnrichesEstimates(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	dropLat, dropLng := 30.0131, 31.2089

	delivery := *pendingDelivery(branchID)
	delivery.Status = enums.DeliveryStatusOutForDelivery
	delivery.DriverID = &driverID
	delivery.DropoffLat = &dropLat
	delivery.DropoffLng = &dropLng

	repo := &stubRepo{list: &DeliveryList{Items: []models.Delivery{delivery}}}

	estimator, err := geo.NewEstimator(30)
	require.NoError(t, err)
	store := drivers.NewMemoryLocationStore(0)
	require.NoError(t, store.Record(context.Background(), drivers.Location{
		DriverID: driverID,
		Lat:      30.0444,
		Lng:      31.2357,
	}))

	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        stubTx{},
		Outbox:    &stubOutbox{},
		Estimator: estimator,
		Locations: store,
	})
	require.NoError(t, err)

	result, err := svc.ListDeliveries(context.Background(), ListInput{
		BranchID:   branchID,
		Pagination: pagination.Params{Limit: 25},
	})
	require.NoError(t, err)

	require.Len(t, result.Deliveries, 1)
	require.NotNil(t, result.Deliveries[0].Estimate)
	assert.Greater(t, result.Deliveries[0].Estimate.DistanceKm, 0.0)
	assert.Greater(t, result.Deliveries[0].Estimate.ETAMinutes, 0.0)
	assert.Equal(t, []enums.DeliveryStatus{enums.DeliveryStatusCompleted, enums.DeliveryStatusCancelled}, result.Deliveries[0].NextStatuses)
}

func TestListDeliveriesNoLocationMeansNoEstimate(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	dropLat, dropLng := 30.0131, 31.2089

	delivery := *pendingDelivery(branchID)
	delivery.DriverID = &driverID
	delivery.DropoffLat = &dropLat
	delivery.DropoffLng = &dropLng

	repo := &stubRepo{list: &DeliveryList{Items: []models.Delivery{delivery}}}
	svc := newTestService(t, repo, &stubOutbox{})

	result, err := svc.ListDeliveries(context.Background(), ListInput{
		BranchID:   branchID,
		Pagination: pagination.Params{Limit: 25},
	})
	require.NoError(t, err)

	require.Len(t, result.Deliveries, 1)
	assert.Nil(t, result.Deliveries[0].Estimate, "stale or missing locations must not fail the listing")
}

func TestGetDeliveryNotFound(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubOutbox{})

	_, err := svc.GetDelivery(context.Background(), uuid.New(), uuid.New())

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())
}

// Hub wiring is optional; the service must work without one and publish
// when one is attached.
func TestAfterTransitionPublishesToHub(t *testing.T) {
	branchID := uuid.New()
	repo := &stubRepo{delivery: pendingDelivery(branchID), updateChanged: true}

	estimator, err := geo.NewEstimator(30)
	require.NoError(t, err)
	hub := broadcast.NewHub(0, nil)

	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        stubTx{},
		Outbox:    &stubOutbox{},
		Estimator: estimator,
		Locations: drivers.NewMemoryLocationStore(0),
		Hub:       hub,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := hub.Subscribe(ctx, branchID)

	_, err = svc.AcceptRequest(context.Background(), AcceptInput{
		DeliveryID: repo.delivery.ID,
		BranchID:   branchID,
		Actor:      *outbox.SystemActor(),
	})
	require.NoError(t, err)

	event := <-events
	assert.Equal(t, broadcast.KindStatusChanged, event.Kind)
	assert.Equal(t, repo.delivery.ID, event.DeliveryID)
}
