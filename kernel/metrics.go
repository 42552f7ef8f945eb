package kernel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
)

// Metrics instruments a kernel. A nil *Metrics records nothing.
type Metrics struct {
	// applies counts Apply calls by outcome: applied, invalid, conflicted, failed.
	applies *prometheus.CounterVec
	// operations counts operations by disposition: applied, dropped.
	operations *prometheus.CounterVec
	// rollbacks counts Rollback calls by outcome: restored, missing.
	rollbacks *prometheus.CounterVec
	// persistFailures counts store errors after a committed mutation.
	persistFailures prometheus.Counter

	nodes       prometheus.Gauge
	edges       prometheus.Gauge
	checkpoints prometheus.Gauge
}

// NewMetrics registers kernel metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		applies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "causal",
			Subsystem: "kernel",
			Name:      "applies_total",
			Help:      "Patch applications by outcome",
		}, []string{"outcome"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "causal",
			Subsystem: "kernel",
			Name:      "operations_total",
			Help:      "Patch operations by disposition",
		}, []string{"disposition"}),
		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "causal",
			Subsystem: "kernel",
			Name:      "rollbacks_total",
			Help:      "Rollback requests by outcome",
		}, []string{"outcome"}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "causal",
			Subsystem: "kernel",
			Name:      "persist_failures_total",
			Help:      "Store failures after a committed mutation",
		}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "causal",
			Subsystem: "diagram",
			Name:      "nodes",
			Help:      "Nodes in the live diagram",
		}),
		edges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "causal",
			Subsystem: "diagram",
			Name:      "edges",
			Help:      "Edges in the live diagram",
		}),
		checkpoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "causal",
			Subsystem: "diagram",
			Name:      "checkpoints",
			Help:      "Checkpoints in history",
		}),
	}
}

func (m *Metrics) apply(outcome string, applied, dropped int) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(outcome).Inc()
	if applied > 0 {
		m.operations.WithLabelValues("applied").Add(float64(applied))
	}
	if dropped > 0 {
		m.operations.WithLabelValues("dropped").Add(float64(dropped))
	}
}

func (m *Metrics) rollback(found bool) {
	if m == nil {
		return
	}
	outcome := "restored"
	if !found {
		outcome = "missing"
	}
	m.rollbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) observe(d graph.Diagram, checkpoints int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(len(d.Nodes)))
	m.edges.Set(float64(len(d.Edges)))
	m.checkpoints.Set(float64(checkpoints))
}
