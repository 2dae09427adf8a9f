package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// OutboxEvent is a lifecycle event staged in the same transaction as the
// write it describes. The relay publishes pending rows to Pub/Sub and marks
// them published; failed rows keep an attempt count for retry backoff.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index"`
	BranchID      *uuid.UUID                `gorm:"column:branch_id;type:uuid"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.OutboxStatus        `gorm:"column:status;not null;default:'pending';index"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime;index"`
}
