package iconcache

import "github.com/prometheus/client_golang/prometheus"

// Lookup sources reported by iconcache_lookups_total.
const (
	sourceMemory   = "memory"
	sourceStore    = "store"
	sourceProvider = "provider"
	sourceFallback = "fallback"
)

// Reconciliation work kinds reported by iconcache_reconcile_items_total.
const (
	kindUpdate = "update"
	kindInsert = "insert"
	kindDelete = "delete"
)

type metrics struct {
	lookups      *prometheus.CounterVec
	storeWrites  prometheus.Counter
	storeDeletes prometheus.Counter
	reconcile    *prometheus.CounterVec
}

// newMetrics builds the cache's collectors and registers them on reg when
// it is non-nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iconcache",
			Name:      "lookups_total",
			Help:      "Icon lookups by the layer that answered them.",
		}, []string{"source"}),
		storeWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iconcache",
			Name:      "store_writes_total",
			Help:      "Rows inserted or replaced in the icon store.",
		}),
		storeDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iconcache",
			Name:      "store_deletes_total",
			Help:      "Rows deleted from the icon store.",
		}),
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iconcache",
			Name:      "reconcile_items_total",
			Help:      "Items scheduled by reconciliation, by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.lookups, m.storeWrites, m.storeDeletes, m.reconcile} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *metrics) lookup(source string) {
	m.lookups.WithLabelValues(source).Inc()
}
