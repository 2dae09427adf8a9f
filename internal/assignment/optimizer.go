package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/metrics"
	"github.com/omarkhalifa/laundryops-backend/pkg/scoring"
)

const defaultBatchWindow = 25 * time.Millisecond

// Recommendation is the suggested driver for one delivery, carrying the
// scoring service's confidence and approach estimates unchanged.
type Recommendation struct {
	DriverID   uuid.UUID `json:"driver_id"`
	DriverName string    `json:"driver_name,omitempty"`
	EtaMinutes float64   `json:"eta_minutes"`
	DistanceKm float64   `json:"distance_km"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons,omitempty"`
}

// DeliveryPoint is one delivery asking for a recommendation.
type DeliveryPoint struct {
	ID  uuid.UUID
	Lat *float64
	Lng *float64
}

// Scorer is the external service ranking drivers against deliveries.
type Scorer interface {
	AssignmentPlan(ctx context.Context, req scoring.PlanRequest) (*scoring.Plan, error)
}

// DriverSource lists the drivers eligible for a branch's deliveries.
type DriverSource interface {
	ListActiveDrivers(ctx context.Context, branchID uuid.UUID) ([]models.User, error)
}

// Optimizer coalesces recommendation requests per branch into one scoring
// call per batch window. Recommendations are best effort: any failure along
// the way yields absent entries, never an error surfaced to the caller.
type Optimizer struct {
	scorer    Scorer
	drivers   DriverSource
	locations drivers.LocationStore
	window    time.Duration
	logg      *logger.Logger
	metrics   *metrics.DispatchMetrics

	mu      chan struct{} // acts as a mutex usable with select
	pending map[uuid.UUID]*branchBatch
	roster  singleflight.Group
}

type branchBatch struct {
	points map[uuid.UUID]DeliveryPoint
	done   chan struct{}
	result map[uuid.UUID]Recommendation
}

// NewOptimizer builds the optimizer; window <= 0 falls back to the default.
func NewOptimizer(scorer Scorer, driverSource DriverSource, locations drivers.LocationStore, window time.Duration, logg *logger.Logger, m *metrics.DispatchMetrics) *Optimizer {
	if window <= 0 {
		window = defaultBatchWindow
	}
	o := &Optimizer{
		scorer:    scorer,
		drivers:   driverSource,
		locations: locations,
		window:    window,
		logg:      logg,
		metrics:   m,
		mu:        make(chan struct{}, 1),
		pending:   make(map[uuid.UUID]*branchBatch),
	}
	o.mu <- struct{}{}
	return o
}

// Recommend returns driver recommendations for the given deliveries.
// Deliveries the scoring service cannot place, unknown branches, and
// collaborator failures all surface the same way: the delivery is simply
// absent from the result.
func (o *Optimizer) Recommend(ctx context.Context, branchID uuid.UUID, points []DeliveryPoint) map[uuid.UUID]Recommendation {
	if branchID == uuid.Nil || len(points) == 0 {
		return map[uuid.UUID]Recommendation{}
	}

	batch, isLeader := o.join(branchID, points)

	if isLeader {
		timer := time.NewTimer(o.window)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		o.execute(ctx, branchID, batch)
	}

	select {
	case <-batch.done:
	case <-ctx.Done():
		return map[uuid.UUID]Recommendation{}
	}

	out := make(map[uuid.UUID]Recommendation, len(points))
	for _, p := range points {
		if rec, ok := batch.result[p.ID]; ok {
			out[p.ID] = rec
		}
	}
	return out
}

// join adds the caller's points to the branch's open batch, creating one
// when none exists. The creator becomes the leader that executes the batch.
func (o *Optimizer) join(branchID uuid.UUID, points []DeliveryPoint) (*branchBatch, bool) {
	<-o.mu
	defer func() { o.mu <- struct{}{} }()

	batch, ok := o.pending[branchID]
	isLeader := false
	if !ok {
		batch = &branchBatch{
			points: make(map[uuid.UUID]DeliveryPoint),
			done:   make(chan struct{}),
		}
		o.pending[branchID] = batch
		isLeader = true
	}
	for _, p := range points {
		batch.points[p.ID] = p
	}
	return batch, isLeader
}

func (o *Optimizer) execute(ctx context.Context, branchID uuid.UUID, batch *branchBatch) {
	<-o.mu
	delete(o.pending, branchID)
	o.mu <- struct{}{}

	defer close(batch.done)
	batch.result = map[uuid.UUID]Recommendation{}

	roster, locations, err := o.loadDrivers(ctx, branchID)
	if err != nil {
		o.warn(ctx, branchID, "driver roster unavailable, skipping recommendations", err)
		return
	}
	if len(roster) == 0 {
		return
	}

	req := scoring.PlanRequest{BranchID: branchID.String()}
	for _, p := range batch.points {
		req.Deliveries = append(req.Deliveries, scoring.DeliveryPoint{
			DeliveryID: p.ID.String(),
			Lat:        p.Lat,
			Lng:        p.Lng,
		})
	}
	names := make(map[string]string, len(roster))
	for _, d := range roster {
		names[d.ID.String()] = d.FullName()
		loc, ok := locations[d.ID]
		if !ok {
			continue
		}
		req.Drivers = append(req.Drivers, scoring.DriverPoint{
			DriverID: d.ID.String(),
			Lat:      loc.Lat,
			Lng:      loc.Lng,
		})
	}
	if len(req.Drivers) == 0 {
		return
	}

	started := time.Now()
	plan, err := o.scorer.AssignmentPlan(ctx, req)
	o.metrics.ObserveScoringDuration(time.Since(started))
	if err != nil {
		o.warn(ctx, branchID, "scoring call failed, skipping recommendations", err)
		return
	}

	for _, a := range plan.Assignments {
		deliveryID, err := uuid.Parse(a.DeliveryID)
		if err != nil {
			continue
		}
		driverID, err := uuid.Parse(a.DriverID)
		if err != nil {
			continue
		}
		name := a.DriverName
		if name == "" {
			name = names[a.DriverID]
		}
		batch.result[deliveryID] = Recommendation{
			DriverID:   driverID,
			DriverName: name,
			EtaMinutes: a.EtaMinutes,
			DistanceKm: a.DistanceKm,
			Confidence: a.Confidence,
			Reasons:    a.Reasons,
		}
	}
}

// loadDrivers fetches the branch roster and the latest driver locations;
// concurrent batches for the same branch share one roster load.
func (o *Optimizer) loadDrivers(ctx context.Context, branchID uuid.UUID) ([]models.User, map[uuid.UUID]drivers.Location, error) {
	rosterAny, err, _ := o.roster.Do(branchID.String(), func() (any, error) {
		return o.drivers.ListActiveDrivers(ctx, branchID)
	})
	if err != nil {
		return nil, nil, err
	}
	roster := rosterAny.([]models.User)

	ids := make([]uuid.UUID, len(roster))
	for i, d := range roster {
		ids[i] = d.ID
	}

	locations, err := o.locations.Latest(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return roster, locations, nil
}

func (o *Optimizer) warn(ctx context.Context, branchID uuid.UUID, msg string, err error) {
	if o.logg == nil {
		return
	}
	logCtx := o.logg.WithBranchID(ctx, branchID.String())
	logCtx = o.logg.WithField(logCtx, "error", err.Error())
	o.logg.Warn(logCtx, msg)
}
