package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Order{},
		&models.Delivery{},
	))
	return conn
}

func seedDelivery(t *testing.T, db *gorm.DB, branchID uuid.UUID, status enums.DeliveryStatus) *models.Delivery {
	t.Helper()
	delivery := &models.Delivery{
		ID:          uuid.New(),
		BranchID:    branchID,
		OrderID:     uuid.New(),
		CustomerID:  uuid.New(),
		Status:      status,
		Mode:        enums.DeliveryModeDriverPickup,
		RequestedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func seedDriver(t *testing.T, db *gorm.DB, branchID uuid.UUID, active bool) *models.User {
	t.Helper()
	driver := &models.User{
		ID:        uuid.New(),
		Role:      enums.MemberRoleDriver,
		BranchID:  &branchID,
		FirstName: "Test",
		LastName:  "Driver",
		Active:    active,
	}
	require.NoError(t, db.Create(driver).Error)
	return driver
}

func TestUpdateStatusIfHonorsExpectedStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()
	delivery := seedDelivery(t, db, branchID, enums.DeliveryStatusPending)

	changed, err := repo.UpdateStatusIf(context.Background(), delivery.ID,
		enums.DeliveryStatusPending, enums.DeliveryStatusAccepted, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	// The row already moved on; a second caller racing on the old status
	// must lose without touching anything.
	changed, err = repo.UpdateStatusIf(context.Background(), delivery.ID,
		enums.DeliveryStatusPending, enums.DeliveryStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	reloaded, err := repo.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusAccepted, reloaded.Status)
}

func TestUpdateStatusIfAppliesExtraColumns(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	delivery := seedDelivery(t, db, uuid.New(), enums.DeliveryStatusPending)

	now := time.Now().UTC()
	changed, err := repo.UpdateStatusIf(context.Background(), delivery.ID,
		enums.DeliveryStatusPending, enums.DeliveryStatusAccepted,
		map[string]any{"accepted_at": now})
	require.NoError(t, err)
	require.True(t, changed)

	reloaded, err := repo.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.AcceptedAt)
	assert.WithinDuration(t, now, *reloaded.AcceptedAt, time.Second)
}

func TestFindByIDInBranchScopesToBranch(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()
	delivery := seedDelivery(t, db, branchID, enums.DeliveryStatusPending)

	found, err := repo.FindByIDInBranch(context.Background(), delivery.ID, branchID)
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, found.ID)

	_, err = repo.FindByIDInBranch(context.Background(), delivery.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListByBranchFiltersStatusAndDriver(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()
	otherBranch := uuid.New()

	pending := seedDelivery(t, db, branchID, enums.DeliveryStatusPending)
	seedDelivery(t, db, branchID, enums.DeliveryStatusCompleted)
	seedDelivery(t, db, otherBranch, enums.DeliveryStatusPending)

	list, err := repo.ListByBranch(context.Background(), branchID, pagination.Params{Limit: 25}, ListFilters{
		Statuses: []enums.DeliveryStatus{enums.DeliveryStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, pending.ID, list.Items[0].ID)
	assert.Empty(t, list.NextCursor)
}

func TestListByBranchPaginatesWithCursor(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()

	for i := 0; i < 3; i++ {
		delivery := seedDelivery(t, db, branchID, enums.DeliveryStatusPending)
		// Distinct created_at values keep the cursor ordering observable.
		createdAt := time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, db.Model(delivery).Update("created_at", createdAt).Error)
	}

	first, err := repo.ListByBranch(context.Background(), branchID, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.ListByBranch(context.Background(), branchID,
		pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, d := range append(first.Items, second.Items...) {
		assert.False(t, seen[d.ID], "pages must not overlap")
		seen[d.ID] = true
	}
}

func TestListPendingByBranchOrdersByRequestedAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()

	late := seedDelivery(t, db, branchID, enums.DeliveryStatusPending)
	require.NoError(t, db.Model(late).Update("requested_at", time.Now().UTC().Add(time.Hour)).Error)
	early := seedDelivery(t, db, branchID, enums.DeliveryStatusPending)
	require.NoError(t, db.Model(early).Update("requested_at", time.Now().UTC().Add(-time.Hour)).Error)

	rows, err := repo.ListPendingByBranch(context.Background(), branchID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, early.ID, rows[0].ID)
	assert.Equal(t, late.ID, rows[1].ID)
}

func TestFindDriverRequiresActiveBranchDriver(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()

	active := seedDriver(t, db, branchID, true)
	inactive := seedDriver(t, db, branchID, false)

	found, err := repo.FindDriver(context.Background(), active.ID, branchID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	_, err = repo.FindDriver(context.Background(), inactive.ID, branchID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindDriver(context.Background(), active.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateDriverSetsDriverID(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	branchID := uuid.New()
	delivery := seedDelivery(t, db, branchID, enums.DeliveryStatusAccepted)
	driver := seedDriver(t, db, branchID, true)

	require.NoError(t, repo.UpdateDriver(context.Background(), delivery.ID, driver.ID))

	reloaded, err := repo.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.DriverID)
	assert.Equal(t, driver.ID, *reloaded.DriverID)
}
