package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records delivery orchestration activity.
type DispatchMetrics struct {
	transitions     *prometheus.CounterVec
	scoringDuration prometheus.Histogram
	broadcastDrops  prometheus.Counter
	portalCodes     *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_status_transitions_total",
		Help: "Delivery status transitions by from/to status.",
	}, []string{"from", "to"})
	scoringDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scoring_request_duration_seconds",
		Help:    "Duration of driver-scoring batch requests in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	broadcastDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_dropped_total",
		Help: "Events dropped because a subscriber was too slow.",
	})
	portalCodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_code_requests_total",
		Help: "Portal access code requests by channel and outcome.",
	}, []string{"channel", "outcome"})
	reg.MustRegister(transitions, scoringDuration, broadcastDrops, portalCodes)
	return &DispatchMetrics{
		transitions:     transitions,
		scoringDuration: scoringDuration,
		broadcastDrops:  broadcastDrops,
		portalCodes:     portalCodes,
	}
}

// IncTransition counts one completed status transition.
func (m *DispatchMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveScoringDuration records the latency of one scoring batch call.
func (m *DispatchMetrics) ObserveScoringDuration(duration time.Duration) {
	if m == nil || m.scoringDuration == nil {
		return
	}
	m.scoringDuration.Observe(duration.Seconds())
}

// IncBroadcastDrop counts an event dropped on a saturated subscriber.
func (m *DispatchMetrics) IncBroadcastDrop() {
	if m == nil || m.broadcastDrops == nil {
		return
	}
	m.broadcastDrops.Inc()
}

// IncPortalCode counts a portal code request by channel and outcome.
func (m *DispatchMetrics) IncPortalCode(channel, outcome string) {
	if m == nil || m.portalCodes == nil {
		return
	}
	m.portalCodes.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
