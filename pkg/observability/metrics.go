package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the collaboration hub and
// its persistence path.
type Metrics struct {
	ConnectionsActive   prometheus.Gauge
	RoomsActive         prometheus.Gauge
	OperationsRelayed   *prometheus.CounterVec
	SnapshotsSent       prometheus.Counter
	CursorsRelayed      prometheus.Counter
	PersistenceFailures prometheus.Counter
}

// NewMetrics registers and returns the hub metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mindlink",
			Subsystem: "hub",
			Name:      "connections_active",
			Help:      "Number of currently open WebSocket connections.",
		}),
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mindlink",
			Subsystem: "hub",
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one participant.",
		}),
		OperationsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindlink",
			Subsystem: "hub",
			Name:      "operations_relayed_total",
			Help:      "Operations relayed to room members, by operation type.",
		}, []string{"type"}),
		SnapshotsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mindlink",
			Subsystem: "hub",
			Name:      "snapshots_sent_total",
			Help:      "Full document snapshots sent to joining connections.",
		}),
		CursorsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mindlink",
			Subsystem: "hub",
			Name:      "cursors_relayed_total",
			Help:      "Cursor updates relayed to room members.",
		}),
		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mindlink",
			Subsystem: "persistence",
			Name:      "failures_total",
			Help:      "Operation persistence cycles that failed after broadcast.",
		}),
	}
}
