package cron

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/internal/dispatch"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type captureEmitter struct {
	events []outbox.DomainEvent
}

func (e *captureEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

func newExpiryTestDB(t *testing.T) *gorm.DB {
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

func seedRequest(t *testing.T, db *gorm.DB, status enums.DeliveryStatus, requestedAt time.Time) *models.Delivery {
	t.Helper()
	order := &models.Order{
		ID:         uuid.New(),
		BranchID:   uuid.New(),
		CustomerID: uuid.New(),
		Number:     "LO-TEST",
		Total:      decimal.NewFromInt(42),
	}
	require.NoError(t, db.Create(order).Error)
	delivery := &models.Delivery{
		ID:          uuid.New(),
		BranchID:    order.BranchID,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Status:      status,
		Mode:        enums.DeliveryModeDriverPickup,
		RequestedAt: requestedAt,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func newExpiryJob(t *testing.T, db *gorm.DB, emitter *captureEmitter, ttl time.Duration) Job {
	t.Helper()
	job, err := NewRequestExpiryJob(RequestExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		DB:         gormTxRunner{db: db},
		Repository: dispatch.NewRepository(db),
		Outbox:     emitter,
		RequestTTL: ttl,
	})
	require.NoError(t, err)
	return job
}

func TestRequestExpiryCancelsStalePending(t *testing.T) {
	db := newExpiryTestDB(t)
	stale := seedRequest(t, db, enums.DeliveryStatusPending, time.Now().Add(-48*time.Hour))
	emitter := &captureEmitter{}
	job := newExpiryJob(t, db, emitter, 24*time.Hour)

	require.NoError(t, job.Run(context.Background()))

	var row models.Delivery
	require.NoError(t, db.First(&row, "id = ?", stale.ID).Error)
	require.Equal(t, enums.DeliveryStatusCancelled, row.Status)
	require.NotNil(t, row.CancelledAt)
	require.NotNil(t, row.CancelReason)
	require.Equal(t, expiredRequestMessage, *row.CancelReason)

	require.Len(t, emitter.events, 1)
	event := emitter.events[0]
	require.Equal(t, enums.EventStatusChanged, event.EventType)
	require.Equal(t, stale.ID, event.AggregateID)
	require.Equal(t, "system", event.Actor.Type)
}

func TestRequestExpiryLeavesFreshAndAcceptedAlone(t *testing.T) {
	db := newExpiryTestDB(t)
	fresh := seedRequest(t, db, enums.DeliveryStatusPending, time.Now().Add(-time.Hour))
	accepted := seedRequest(t, db, enums.DeliveryStatusAccepted, time.Now().Add(-48*time.Hour))
	emitter := &captureEmitter{}
	job := newExpiryJob(t, db, emitter, 24*time.Hour)

	require.NoError(t, job.Run(context.Background()))

	var rows []models.Delivery
	require.NoError(t, db.Find(&rows).Error)
	for _, row := range rows {
		switch row.ID {
		case fresh.ID:
			require.Equal(t, enums.DeliveryStatusPending, row.Status)
		case accepted.ID:
			require.Equal(t, enums.DeliveryStatusAccepted, row.Status)
		}
	}
	require.Empty(t, emitter.events)
}

func TestRequestExpirySkipsRowAcceptedMidCycle(t *testing.T) {
	db := newExpiryTestDB(t)
	delivery := seedRequest(t, db, enums.DeliveryStatusPending, time.Now().Add(-48*time.Hour))
	emitter := &captureEmitter{}
	job := newExpiryJob(t, db, emitter, 24*time.Hour).(*requestExpiryJob)

	// A branch accepts the request after the stale scan already picked it up.
	require.NoError(t, db.Model(&models.Delivery{}).
		Where("id = ?", delivery.ID).
		Update("status", enums.DeliveryStatusAccepted).Error)

	stale := *delivery
	changed, err := job.expire(context.Background(), stale)
	require.NoError(t, err)
	require.False(t, changed)
	require.Empty(t, emitter.events)

	var row models.Delivery
	require.NoError(t, db.First(&row, "id = ?", delivery.ID).Error)
	require.Equal(t, enums.DeliveryStatusAccepted, row.Status)
}
