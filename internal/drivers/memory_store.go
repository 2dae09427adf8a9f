package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocationStore is an in-process LocationStore used in tests and
// single-node development. Last write wins, same as the Redis store.
type MemoryLocationStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	samples map[uuid.UUID]Location
}

// NewMemoryLocationStore builds an empty store; a non-positive ttl disables
// expiry.
func NewMemoryLocationStore(ttl time.Duration) *MemoryLocationStore {
	return &MemoryLocationStore{
		ttl:     ttl,
		samples: make(map[uuid.UUID]Location),
	}
}

func (s *MemoryLocationStore) Record(_ context.Context, loc Location) error {
	if loc.RecordedAt.IsZero() {
		loc.RecordedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[loc.DriverID] = loc
	return nil
}

func (s *MemoryLocationStore) Latest(_ context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]Location, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]Location, len(driverIDs))
	for _, id := range driverIDs {
		loc, ok := s.samples[id]
		if !ok {
			continue
		}
		if s.ttl > 0 && now.Sub(loc.RecordedAt) > s.ttl {
			continue
		}
		out[id] = loc
	}
	return out, nil
}
