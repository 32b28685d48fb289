// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "edumart"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	allocations    *prometheus.CounterVec
	checkoutWrites *prometheus.CounterVec
	signIns        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_allocations_total",
			Help:      "Account identifiers issued, by mode (sequential or degraded).",
		}, []string{"mode"}),
		checkoutWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_writes_total",
			Help:      "Purchase record writes, by facet (ledger or report) and result.",
		}, []string{"facet", "result"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Successful sign-ins, by resolved state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.allocations, m.checkoutWrites, m.signIns)
	return m
}

func (m *Metrics) Allocated(degraded bool) {
	if m == nil {
		return
	}
	mode := "sequential"
	if degraded {
		mode = "degraded"
	}
	m.allocations.WithLabelValues(mode).Inc()
}

func (m *Metrics) CheckoutWrite(facet string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.checkoutWrites.WithLabelValues(facet, result).Inc()
}

func (m *Metrics) SignedIn(state string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(state).Inc()
}
