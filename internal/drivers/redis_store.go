package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/redis"
)

// RedisLocationStore keeps driver positions in Redis with a TTL so stale
// drivers drop out of scoring on their own.
type RedisLocationStore struct {
	client *redis.Client
	ttl    time.Duration
	logg   *logger.Logger
}

// NewRedisLocationStore builds the store; ttl bounds how long a sample
// counts as "current".
func NewRedisLocationStore(client *redis.Client, ttl time.Duration, logg *logger.Logger) (*RedisLocationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("location ttl must be positive")
	}
	return &RedisLocationStore{client: client, ttl: ttl, logg: logg}, nil
}

// Record stores the sample under the driver's key, overwriting whatever was
// there. Concurrent writers race benignly: the last SET wins.
func (s *RedisLocationStore) Record(ctx context.Context, loc Location) error {
	if loc.DriverID == uuid.Nil {
		return fmt.Errorf("driver id required")
	}
	if loc.RecordedAt.IsZero() {
		loc.RecordedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}

	key := s.client.DriverLocationKey(loc.DriverID.String())
	return s.client.Set(ctx, key, string(payload), s.ttl)
}

// Latest fetches all requested drivers in one MGET. Missing or unparsable
// entries are skipped, not errors.
func (s *RedisLocationStore) Latest(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]Location, error) {
	if len(driverIDs) == 0 {
		return map[uuid.UUID]Location{}, nil
	}

	keys := make([]string, len(driverIDs))
	for i, id := range driverIDs {
		keys[i] = s.client.DriverLocationKey(id.String())
	}

	values, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("mget driver locations: %w", err)
	}

	out := make(map[uuid.UUID]Location, len(driverIDs))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		text, ok := raw.(string)
		if !ok {
			continue
		}
		var loc Location
		if err := json.Unmarshal([]byte(text), &loc); err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "driver_id", driverIDs[i].String()), "dropping unparsable location sample")
			}
			continue
		}
		out[loc.DriverID] = loc
	}
	return out, nil
}
