// Package observability exposes Prometheus collectors for the ledger and
// store. Metrics are optional everywhere they are accepted; a nil *Metrics
// records nothing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "provisioncore"

// Metrics bundles the collectors shared by the store and ledger.
type Metrics struct {
	touchesAppended prometheus.Counter
	seedRowsCreated prometheus.Counter
	seedRowsSkipped prometheus.Counter
	querySeconds    prometheus.Histogram
}

// New registers the collectors with reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		touchesAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "touches_appended_total",
			Help:      "Touches committed to the append-only ledger.",
		}),
		seedRowsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "seed_rows_created_total",
			Help:      "State rows newly created by seeding passes.",
		}),
		seedRowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "seed_rows_skipped_total",
			Help:      "State rows already present when seeding ran.",
		}),
		querySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "query_seconds",
			Help:      "Latency of ledger read queries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// TouchAppended counts one committed touch.
func (m *Metrics) TouchAppended() {
	if m == nil {
		return
	}
	m.touchesAppended.Inc()
}

// SeedOutcome records how many rows a seeding pass created and skipped.
func (m *Metrics) SeedOutcome(created, skipped int) {
	if m == nil {
		return
	}
	m.seedRowsCreated.Add(float64(created))
	m.seedRowsSkipped.Add(float64(skipped))
}

// ObserveQuery records the duration of one read query.
func (m *Metrics) ObserveQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.querySeconds.Observe(d.Seconds())
}
