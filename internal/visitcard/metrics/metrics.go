package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the visit card registry.
type Metrics struct {
	CredentialsIssued prometheus.Counter
	Rejections        *prometheus.CounterVec
	CacheErrors       prometheus.Counter
}

// New creates the visit card metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitledger_visit_cards_issued_total",
			Help: "Total number of visit cards issued",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visitledger_visit_card_rejections_total",
			Help: "Visit card operations refused, by operation and error code",
		}, []string{"operation", "code"}),
		CacheErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitledger_visit_card_cache_errors_total",
			Help: "Visit card cache reads or writes that failed and fell back to the store",
		}),
	}
}

// IncIssued increments the issued counter by 1.
func (m *Metrics) IncIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

// IncRejected records a refused operation.
func (m *Metrics) IncRejected(operation, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, code).Inc()
}

// IncCacheErrors records a cache failure.
func (m *Metrics) IncCacheErrors() {
	if m == nil {
		return
	}
	m.CacheErrors.Inc()
}
