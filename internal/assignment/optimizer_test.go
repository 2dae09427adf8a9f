package assignment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/scoring"
)

type stubScorer struct {
	mu       sync.Mutex
	calls    int32
	requests []scoring.PlanRequest
	plan     *scoring.Plan
	err      error
}

func (s *stubScorer) AssignmentPlan(ctx context.Context, req scoring.PlanRequest) (*scoring.Plan, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.plan != nil {
		return s.plan, nil
	}
	return &scoring.Plan{}, nil
}

type stubDriverSource struct {
	drivers []models.User
	err     error
}

func (s *stubDriverSource) ListActiveDrivers(ctx context.Context, branchID uuid.UUID) ([]models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.drivers, nil
}

func seedLocations(t *testing.T, store drivers.LocationStore, ids ...uuid.UUID) {
	t.Helper()
	for i, id := range ids {
		err := store.Record(context.Background(), drivers.Location{
			DriverID: id,
			Lat:      30.0 + float64(i)*0.01,
			Lng:      31.0,
		})
		require.NoError(t, err)
	}
}

func TestRecommendBatchesConcurrentCallers(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	deliveryA := uuid.New()
	deliveryB := uuid.New()

	scorer := &stubScorer{plan: &scoring.Plan{Assignments: []scoring.Assignment{
		{DeliveryID: deliveryA.String(), DriverID: driverID.String(), Confidence: 0.9, EtaMinutes: 7.5, DistanceKm: 3.2, Reasons: []string{"closest driver"}},
		{DeliveryID: deliveryB.String(), DriverID: driverID.String(), Confidence: 0.7, EtaMinutes: 12, DistanceKm: 6.1},
	}}}
	source := &stubDriverSource{drivers: []models.User{{ID: driverID, FirstName: "Sami"}}}
	store := drivers.NewMemoryLocationStore(0)
	seedLocations(t, store, driverID)

	opt := NewOptimizer(scorer, source, store, 50*time.Millisecond, nil, nil)

	var wg sync.WaitGroup
	results := make([]map[uuid.UUID]Recommendation, 2)
	for i, id := range []uuid.UUID{deliveryA, deliveryB} {
		wg.Add(1)
		go func(slot int, deliveryID uuid.UUID) {
			defer wg.Done()
			results[slot] = opt.Recommend(context.Background(), branchID, []DeliveryPoint{{ID: deliveryID}})
		}(i, id)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&scorer.calls), "concurrent callers must share one scoring call")
	require.Len(t, scorer.requests[0].Deliveries, 2, "both deliveries should ride the same batch")

	assert.Equal(t, driverID, results[0][deliveryA].DriverID)
	assert.Equal(t, "Sami", results[0][deliveryA].DriverName)
	assert.Equal(t, driverID, results[1][deliveryB].DriverID)

	// The plan's estimates survive the batch unchanged.
	recA := results[0][deliveryA]
	assert.Equal(t, 0.9, recA.Confidence)
	assert.Equal(t, 7.5, recA.EtaMinutes)
	assert.Equal(t, 3.2, recA.DistanceKm)
	assert.Equal(t, []string{"closest driver"}, recA.Reasons)
}

func TestRecommendMissingBranchReturnsEmpty(t *testing.T) {
	scorer := &stubScorer{}
	opt := NewOptimizer(scorer, &stubDriverSource{}, drivers.NewMemoryLocationStore(0), time.Millisecond, nil, nil)

	got := opt.Recommend(context.Background(), uuid.Nil, []DeliveryPoint{{ID: uuid.New()}})

	assert.Empty(t, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&scorer.calls), "no scoring call without a branch")
}

func TestRecommendAbsentWhenPlanOmitsDelivery(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	placed := uuid.New()
	unplaced := uuid.New()

	scorer := &stubScorer{plan: &scoring.Plan{Assignments: []scoring.Assignment{
		{DeliveryID: placed.String(), DriverID: driverID.String(), Confidence: 0.8},
	}}}
	source := &stubDriverSource{drivers: []models.User{{ID: driverID, FirstName: "Nour"}}}
	store := drivers.NewMemoryLocationStore(0)
	seedLocations(t, store, driverID)

	opt := NewOptimizer(scorer, source, store, time.Millisecond, nil, nil)

	got := opt.Recommend(context.Background(), branchID, []DeliveryPoint{{ID: placed}, {ID: unplaced}})

	assert.Contains(t, got, placed)
	assert.NotContains(t, got, unplaced)
}

func TestRecommendScorerFailureYieldsAbsent(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()

	scorer := &stubScorer{err: errors.New("scoring down")}
	source := &stubDriverSource{drivers: []models.User{{ID: driverID}}}
	store := drivers.NewMemoryLocationStore(0)
	seedLocations(t, store, driverID)

	opt := NewOptimizer(scorer, source, store, time.Millisecond, nil, nil)

	got := opt.Recommend(context.Background(), branchID, []DeliveryPoint{{ID: uuid.New()}})

	assert.Empty(t, got)
}

func TestRecommendNoLocatedDriversSkipsScoring(t *testing.T) {
	branchID := uuid.New()

	scorer := &stubScorer{}
	source := &stubDriverSource{drivers: []models.User{{ID: uuid.New()}}}
	store := drivers.NewMemoryLocationStore(0) // no samples recorded

	opt := NewOptimizer(scorer, source, store, time.Millisecond, nil, nil)

	got := opt.Recommend(context.Background(), branchID, []DeliveryPoint{{ID: uuid.New()}})

	assert.Empty(t, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&scorer.calls))
}
