package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDispatchMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.IncTransition("pending", "accepted")
	m.IncTransition("pending", "accepted")
	m.IncBroadcastDrop()
	m.IncPortalCode("sms", "sent")
	m.ObserveScoringDuration(120 * time.Millisecond)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("pending", "accepted")); got != 2 {
		t.Fatalf("expected 2 transitions, got %f", got)
	}
	if got := testutil.ToFloat64(m.broadcastDrops); got != 1 {
		t.Fatalf("expected 1 drop, got %f", got)
	}
	if got := testutil.ToFloat64(m.portalCodes.WithLabelValues("sms", "sent")); got != 1 {
		t.Fatalf("expected 1 portal code, got %f", got)
	}

	count := testutil.CollectAndCount(m.scoringDuration, "scoring_request_duration_seconds")
	if count != 1 {
		t.Fatalf("expected histogram registered, got %d series", count)
	}
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.IncTransition("a", "b")
	m.IncBroadcastDrop()
	m.IncPortalCode("", "")
	m.ObserveScoringDuration(time.Second)

	empty := NewDispatchMetrics(nil)
	empty.IncTransition("a", "b")
}
