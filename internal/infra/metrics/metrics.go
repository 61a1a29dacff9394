// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/reconcile"
)

type Metrics struct {
	LedgerOps      *prometheus.CounterVec
	ReconcileWrite *prometheus.CounterVec
	StaleProducts  prometheus.Gauge
	Drift          prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LedgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homestock",
			Name:      "ledger_operations_total",
			Help:      "Stock ledger operations by outcome.",
		}, []string{"op", "result"}),
		ReconcileWrite: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homestock",
			Name:      "reconcile_writes_total",
			Help:      "Writes applied by batch reconciliation, by kind.",
		}, []string{"kind"}),
		StaleProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "homestock",
			Name:      "stale_products",
			Help:      "Products not rechecked within the horizon at the last scan.",
		}),
		Drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homestock",
			Name:      "snapshot_drift_total",
			Help:      "Snapshots found out of sync with their ledger and repaired.",
		}),
	}
	reg.MustRegister(m.LedgerOps, m.ReconcileWrite, m.StaleProducts, m.Drift)
	return m
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errs.IsValidation(err):
		return "validation"
	case errs.IsNotFound(err):
		return "not_found"
	case errs.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveLedgerOp(op string, err error) {
	m.LedgerOps.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) ObserveDrift(int64) { m.Drift.Inc() }

func (m *Metrics) ObserveReconcile(p *reconcile.Plan, err error) {
	if err != nil {
		m.LedgerOps.WithLabelValues("reconcile", result(err)).Inc()
		return
	}
	m.LedgerOps.WithLabelValues("reconcile", "ok").Inc()
	for kind, n := range p.Counts() {
		m.ReconcileWrite.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) SetStale(n int) { m.StaleProducts.Set(float64(n)) }
