package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Location is one driver position sample. Samples are ephemeral: only the
// most recent one per driver is retained, last write wins.
type Location struct {
	DriverID   uuid.UUID `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LocationStore persists the latest known position per driver.
type LocationStore interface {
	// Record stores the sample, replacing any previous one for the driver.
	Record(ctx context.Context, loc Location) error
	// Latest returns the most recent sample per requested driver. Drivers
	// with no sample (or an expired one) are simply absent from the map.
	Latest(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]Location, error)
}
