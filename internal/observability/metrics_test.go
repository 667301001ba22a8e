package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TouchAppended()
	m.TouchAppended()
	m.SeedOutcome(3, 58)
	m.ObserveQuery(5 * time.Millisecond)

	if got := testutil.ToFloat64(m.touchesAppended); got != 2 {
		t.Fatalf("touches_appended_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.seedRowsCreated); got != 3 {
		t.Fatalf("seed_rows_created_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.seedRowsSkipped); got != 58 {
		t.Fatalf("seed_rows_skipped_total = %v, want 58", got)
	}
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	m.TouchAppended()
	m.SeedOutcome(1, 1)
	m.ObserveQuery(time.Second)
}
