package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
)

type stubTx struct {
	db *gorm.DB
}

func (s stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(s.db)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Branch{},
		&models.CatalogItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Delivery{},
	))
	return conn
}

func seedBranch(t *testing.T, db *gorm.DB, code string) *models.Branch {
	t.Helper()
	branch := &models.Branch{ID: uuid.New(), Code: code, Name: "Main Branch"}
	require.NoError(t, db.Create(branch).Error)
	return branch
}

func seedCatalogItem(t *testing.T, db *gorm.DB, branchID uuid.UUID, name, price string) *models.CatalogItem {
	t.Helper()
	item := &models.CatalogItem{
		ID:        uuid.New(),
		BranchID:  branchID,
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Unit:      "item",
		Active:    true,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func newOrderService(t *testing.T, db *gorm.DB, ob *stubOutbox, fee string) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), stubTx{db: db}, ob, decimal.RequireFromString(fee), nil)
	require.NoError(t, err)
	return svc
}

func TestCreatePricesFromCatalogSnapshot(t *testing.T) {
	db := newTestDB(t)
	branch := seedBranch(t, db, "CAI-01")
	wash := seedCatalogItem(t, db, branch.ID, "Wash & Fold", "15.50")
	iron := seedCatalogItem(t, db, branch.ID, "Ironing", "8.25")
	ob := &stubOutbox{}
	svc := newOrderService(t, db, ob, "20.00")

	result, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items: []LineInput{
			{CatalogItemID: wash.ID, Quantity: 2},
			{CatalogItemID: iron.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	// 2*15.50 + 3*8.25 = 55.75, no delivery requested so no fee.
	assert.True(t, result.Order.Subtotal.Equal(decimal.RequireFromString("55.75")),
		"subtotal was %s", result.Order.Subtotal)
	assert.True(t, result.Order.DeliveryFee.IsZero())
	assert.True(t, result.Order.Total.Equal(decimal.RequireFromString("55.75")))
	assert.Nil(t, result.Delivery)
	require.Len(t, result.Order.Items, 2)
	assert.True(t, result.Order.Items[0].UnitPrice.Equal(wash.UnitPrice), "unit price must be snapshotted")

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventOrderCreated, ob.events[0].EventType)
}

func TestCreateWithDeliveryAddsFeeAndPendingRequest(t *testing.T) {
	db := newTestDB(t)
	branch := seedBranch(t, db, "CAI-01")
	wash := seedCatalogItem(t, db, branch.ID, "Wash & Fold", "15.50")
	ob := &stubOutbox{}
	svc := newOrderService(t, db, ob, "20.00")

	phone := "+201001234567"
	lat, lng := 30.0444, 31.2357
	result, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: wash.ID, Quantity: 1}},
		Delivery: &DeliveryRequestInput{
			Mode:         enums.DeliveryModeDriverPickup,
			DropoffLat:   &lat,
			DropoffLng:   &lng,
			ContactPhone: &phone,
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Order.Total.Equal(decimal.RequireFromString("35.50")),
		"total was %s", result.Order.Total)
	require.NotNil(t, result.Delivery)
	assert.Equal(t, enums.DeliveryStatusPending, result.Delivery.Status)
	assert.Equal(t, result.Order.ID, result.Delivery.OrderID)
	assert.False(t, result.Delivery.RequestedAt.IsZero())

	require.Len(t, ob.events, 2)
	assert.Equal(t, enums.EventOrderCreated, ob.events[0].EventType)
	assert.Equal(t, enums.EventDeliveryCreated, ob.events[1].EventType)
}

func TestCreateKeepsScheduledWindow(t *testing.T) {
	db := newTestDB(t)
	branch := seedBranch(t, db, "CAI-01")
	wash := seedCatalogItem(t, db, branch.ID, "Wash & Fold", "15.50")
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	pickup := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	dropoff := pickup.Add(4 * time.Hour)
	result, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: wash.ID, Quantity: 1}},
		Delivery: &DeliveryRequestInput{
			Mode:                enums.DeliveryModeDriverPickup,
			ScheduledPickupAt:   &pickup,
			ScheduledDeliveryAt: &dropoff,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Delivery)
	require.NotNil(t, result.Delivery.ScheduledPickupAt)
	assert.True(t, pickup.Equal(*result.Delivery.ScheduledPickupAt))
	require.NotNil(t, result.Delivery.ScheduledDeliveryAt)
	assert.True(t, dropoff.Equal(*result.Delivery.ScheduledDeliveryAt))

	// Delivery before pickup makes no sense.
	_, err = svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: wash.ID, Quantity: 1}},
		Delivery: &DeliveryRequestInput{
			Mode:                enums.DeliveryModeDriverPickup,
			ScheduledPickupAt:   &dropoff,
			ScheduledDeliveryAt: &pickup,
		},
	})
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestCreateUnknownBranchIsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	_, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "NOPE-99",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: uuid.New(), Quantity: 1}},
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())
}

func TestCreateRejectsForeignCatalogItems(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, "CAI-01")
	otherBranch := seedBranch(t, db, "ALX-01")
	foreign := seedCatalogItem(t, db, otherBranch.ID, "Dry Clean", "30.00")
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	_, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: foreign.ID, Quantity: 1}},
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestCreateRejectsInactiveCatalogItems(t *testing.T) {
	db := newTestDB(t)
	branch := seedBranch(t, db, "CAI-01")
	retired := seedCatalogItem(t, db, branch.ID, "Old Service", "5.00")
	require.NoError(t, db.Model(retired).Update("active", false).Error)
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	_, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: retired.ID, Quantity: 1}},
	})

	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestCreateValidatesInput(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, "CAI-01")
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{"missing customer", CreateInput{BranchCode: "CAI-01", Items: []LineInput{{CatalogItemID: uuid.New(), Quantity: 1}}}, pkgerrors.CodeUnauthorized},
		{"missing branch code", CreateInput{CustomerID: uuid.New(), Items: []LineInput{{CatalogItemID: uuid.New(), Quantity: 1}}}, pkgerrors.CodeValidation},
		{"no items", CreateInput{BranchCode: "CAI-01", CustomerID: uuid.New()}, pkgerrors.CodeValidation},
		{"zero quantity", CreateInput{BranchCode: "CAI-01", CustomerID: uuid.New(), Items: []LineInput{{CatalogItemID: uuid.New(), Quantity: 0}}}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			apiErr := pkgerrors.As(err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tc.code, apiErr.Code())
		})
	}
}

func TestGetReturnsOrderWithItems(t *testing.T) {
	db := newTestDB(t)
	branch := seedBranch(t, db, "CAI-01")
	wash := seedCatalogItem(t, db, branch.ID, "Wash & Fold", "15.50")
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	created, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: wash.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	order, err := svc.Get(context.Background(), branch.ID, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Order.Number, order.Number)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	_, err = svc.Get(context.Background(), branch.ID, uuid.New())
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())
}

func TestGetIsBranchScoped(t *testing.T) {
	db := newTestDB(t)
	branch := seedBranch(t, db, "CAI-01")
	otherBranch := seedBranch(t, db, "ALX-01")
	wash := seedCatalogItem(t, db, branch.ID, "Wash & Fold", "15.50")
	svc := newOrderService(t, db, &stubOutbox{}, "20.00")

	created, err := svc.Create(context.Background(), CreateInput{
		BranchCode: "CAI-01",
		CustomerID: uuid.New(),
		Items:      []LineInput{{CatalogItemID: wash.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// Another branch's scope must not see the order at all.
	_, err = svc.Get(context.Background(), otherBranch.ID, created.Order.ID)
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeNotFound, apiErr.Code())

	// Missing branch scope is rejected outright.
	_, err = svc.Get(context.Background(), uuid.Nil, created.Order.ID)
	apiErr = pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeForbidden, apiErr.Code())
}
