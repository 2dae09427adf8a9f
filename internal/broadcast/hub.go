package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/metrics"
)

const defaultBuffer = 16

// Event is one live update pushed to connected dashboards.
type Event struct {
	Kind       string    `json:"kind"`
	BranchID   uuid.UUID `json:"branch_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event kinds published by the orchestration services.
const (
	KindStatusChanged  = "status_changed"
	KindDriverAssigned = "driver_assigned"
	KindMessagePosted  = "message_posted"
)

// Hub fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event and a drop is counted.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	buffer  int
	metrics *metrics.DispatchMetrics
}

type subscriber struct {
	branchID uuid.UUID
	ch       chan Event
}

// NewHub builds a hub; metrics may be nil.
func NewHub(buffer int, m *metrics.DispatchMetrics) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:    make(map[uint64]*subscriber),
		buffer:  buffer,
		metrics: m,
	}
}

// Subscribe registers a listener scoped to one branch. The channel closes
// when ctx is done; callers just range over it.
func (h *Hub) Subscribe(ctx context.Context, branchID uuid.UUID) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{branchID: branchID, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers the event to every subscriber of the event's branch.
// Slow subscribers are skipped rather than blocking the publisher.
func (h *Hub) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.branchID != uuid.Nil && sub.branchID != event.BranchID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.metrics.IncBroadcastDrop()
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
