package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// Metrics groups the collectors exported by the storefront catalog service.
type Metrics struct {
	MembershipFailures *prometheus.CounterVec
	PagesFetched       prometheus.Counter
	Scans              *prometheus.CounterVec
	Superseded         prometheus.Counter
	BreakerState       *prometheus.GaugeVec
}

// New registers the collectors on reg. Pass a fresh prometheus.Registry in
// tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		MembershipFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_membership_failures_total",
			Help: "Membership lookups that degraded to an empty set, by reason",
		}, []string{"reason"}),
		PagesFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_catalog_pages_fetched_total",
			Help: "Catalog pages fetched while reconciling categories",
		}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_category_scans_total",
			Help: "Category reconciliation cycles by outcome",
		}, []string{"outcome"}),
		Superseded: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_selections_superseded_total",
			Help: "Selections whose results were dropped because a newer selection started",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}
}

// Noop returns collectors registered nowhere.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

// SetBreakerState records a gobreaker state transition.
func (m *Metrics) SetBreakerState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	default:
		v = -1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}
