package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event: a staff member, a driver, a
// customer, or the system itself.
type ActorRef struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Type string     `json:"type"`
	Name string     `json:"name,omitempty"`
}

// SystemActor is the ActorRef used for transitions the platform performs
// on its own.
func SystemActor() *ActorRef {
	return &ActorRef{Type: "system"}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
