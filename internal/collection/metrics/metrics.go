package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the collection ledger.
type Metrics struct {
	Initializations prometheus.Counter
	Distributions   prometheus.Counter
	Transfers       prometheus.Counter
	UnitsMoved      *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
}

// New creates the collection metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Initializations: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitledger_collection_initializations_total",
			Help: "Number of times the collection was initialized",
		}),
		Distributions: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitledger_collection_distributions_total",
			Help: "Owner batch distributions committed",
		}),
		Transfers: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitledger_collection_transfers_total",
			Help: "Holder transfers committed, single and batch",
		}),
		UnitsMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visitledger_collection_units_moved_total",
			Help: "Units moved between holders, by class",
		}, []string{"class_id"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visitledger_collection_rejections_total",
			Help: "Collection operations refused, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

func (m *Metrics) IncInitialized() {
	if m == nil {
		return
	}
	m.Initializations.Inc()
}

func (m *Metrics) IncDistributed() {
	if m == nil {
		return
	}
	m.Distributions.Inc()
}

func (m *Metrics) IncTransferred() {
	if m == nil {
		return
	}
	m.Transfers.Inc()
}

// AddUnitsMoved records amount units of class changing hands.
func (m *Metrics) AddUnitsMoved(class string, amount uint64) {
	if m == nil {
		return
	}
	m.UnitsMoved.WithLabelValues(class).Add(float64(amount))
}

// IncRejected records a refused operation.
func (m *Metrics) IncRejected(operation, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, code).Inc()
}
