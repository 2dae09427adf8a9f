package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/internal/dispatch"
	"github.com/omarkhalifa/laundryops-backend/internal/lifecycle"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
)

const (
	defaultRequestTTL     = 24 * time.Hour
	expiryBatchLimit      = 200
	expiredRequestMessage = "request expired before a branch accepted it"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type RequestExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository dispatch.Repository
	Outbox     outboxEmitter
	RequestTTL time.Duration
}

// NewRequestExpiryJob builds the job that cancels pending delivery requests
// no branch accepted within the TTL. Each cancellation goes through the same
// conditional update as staff transitions, so a request accepted mid-cycle
// is left alone.
func NewRequestExpiryJob(params RequestExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.RequestTTL
	if ttl <= 0 {
		ttl = defaultRequestTTL
	}
	return &requestExpiryJob{
		logg: params.Logger,
		db:   params.DB,
		repo: params.Repository,
		ob:   params.Outbox,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

type requestExpiryJob struct {
	logg *logger.Logger
	db   txRunner
	repo dispatch.Repository
	ob   outboxEmitter
	ttl  time.Duration
	now  func() time.Time
}

func (j *requestExpiryJob) Name() string { return "request-expiry" }

func (j *requestExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.repo.FindPendingRequestedBefore(ctx, cutoff, expiryBatchLimit)
	if err != nil {
		return fmt.Errorf("query stale requests: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	expired := 0
	for _, delivery := range stale {
		changed, err := j.expire(ctx, delivery)
		if err != nil {
			return err
		}
		if changed {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"ttl":         j.ttl.String(),
		"stale_count": len(stale),
		"expired":     expired,
	})
	j.logg.Info(logCtx, "stale request expiry complete")
	return nil
}

func (j *requestExpiryJob) expire(ctx context.Context, delivery models.Delivery) (bool, error) {
	reason := expiredRequestMessage
	now := j.now().UTC()
	changed := false

	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := j.repo.WithTx(tx).UpdateStatusIf(ctx, delivery.ID,
			enums.DeliveryStatusPending, enums.DeliveryStatusCancelled,
			map[string]any{
				"cancelled_at":  now,
				"cancel_reason": reason,
			})
		if err != nil {
			return fmt.Errorf("cancel delivery %s: %w", delivery.ID, err)
		}
		if !ok {
			return nil
		}
		changed = true

		total := decimal.Zero
		if delivery.Order != nil {
			total = delivery.Order.Total
		}
		return j.ob.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStatusChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			BranchID:      &delivery.BranchID,
			Actor:         outbox.SystemActor(),
			Data: lifecycle.StatusChangedEvent{
				DeliveryID:     delivery.ID,
				OrderID:        delivery.OrderID,
				BranchID:       delivery.BranchID,
				CustomerID:     delivery.CustomerID,
				PreviousStatus: enums.DeliveryStatusPending,
				Status:         enums.DeliveryStatusCancelled,
				Total:          total,
				CancelReason:   &reason,
			},
		})
	})
	return changed, err
}
