package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
)

// Message is one entry in a delivery's append-only thread. Rows are never
// updated or deleted; ordering is created_at with id as tiebreaker.
type Message struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID  uuid.UUID           `gorm:"column:delivery_id;type:uuid;not null;index:idx_messages_delivery_created"`
	SenderType  enums.MessageSender `gorm:"column:sender_type;type:message_sender;not null"`
	SenderID    *uuid.UUID          `gorm:"column:sender_id;type:uuid"`
	SenderName  string              `gorm:"column:sender_name;not null"`
	Body        string              `gorm:"column:body;not null"`
	Attachments pq.StringArray      `gorm:"column:attachments;type:text[]"`
	Metadata    json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_messages_delivery_created"`
}
