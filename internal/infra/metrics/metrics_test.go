package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/stock"
)

func TestObserveLedgerOp(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveLedgerOp("record_adjustment", nil)
	m.ObserveLedgerOp("record_adjustment", nil)
	m.ObserveLedgerOp("record_adjustment", errs.NotFound("product", 1))
	m.ObserveLedgerOp("set_quantity", errs.Storage("x", errors.New("down")))

	if got := testutil.ToFloat64(m.LedgerOps.WithLabelValues("record_adjustment", "ok")); got != 2 {
		t.Fatalf("ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LedgerOps.WithLabelValues("record_adjustment", "not_found")); got != 1 {
		t.Fatalf("not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LedgerOps.WithLabelValues("set_quantity", "error")); got != 1 {
		t.Fatalf("error = %v, want 1", got)
	}
}

func TestObserveReconcile(t *testing.T) {
	m := New(prometheus.NewRegistry())
	plan := &reconcile.Plan{
		Writes:      []reconcile.Write{{ProductID: 1, CategoryChanged: true}, {ProductID: 2}},
		Skipped:     []int64{3, 4, 5},
		Adjustments: []stock.Adjustment{{ProductID: 1}},
	}
	m.ObserveReconcile(plan, nil)
	m.ObserveReconcile(plan, &errs.ConflictError{ProductIDs: []int64{1}})

	cases := map[string]float64{"snapshot": 2, "category": 1, "skipped": 3, "adjustment": 1}
	for kind, want := range cases {
		if got := testutil.ToFloat64(m.ReconcileWrite.WithLabelValues(kind)); got != want {
			t.Fatalf("%s = %v, want %v", kind, got, want)
		}
	}
	if got := testutil.ToFloat64(m.LedgerOps.WithLabelValues("reconcile", "conflict")); got != 1 {
		t.Fatalf("conflicts = %v, want 1", got)
	}
}

func TestStaleAndDrift(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetStale(7)
	m.ObserveDrift(3)
	if got := testutil.ToFloat64(m.StaleProducts); got != 7 {
		t.Fatalf("stale = %v", got)
	}
	if got := testutil.ToFloat64(m.Drift); got != 1 {
		t.Fatalf("drift = %v", got)
	}
}
