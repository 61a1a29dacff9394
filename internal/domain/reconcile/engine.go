package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/stock"
)

// Observer is told about every applied or failed plan.
type Observer interface {
	ObserveReconcile(p *Plan, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveReconcile(*Plan, error) {}

type Engine struct {
	store stock.Store
	log   *slog.Logger
	obs   Observer
	now   func() time.Time
}

type Option func(*Engine)

func WithObserver(o Observer) Option { return func(e *Engine) { e.obs = o } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(store stock.Store, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Engine{store: store, log: log, obs: nopObserver{}, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Plan computes the writes for an edit session without applying them.
func (e *Engine) Plan(pre, post []Item) (*Plan, error) {
	return Diff(pre, post, e.now())
}

// Reconcile is Plan followed by Apply.
func (e *Engine) Reconcile(ctx context.Context, pre, post []Item) (*Plan, error) {
	plan, err := e.Plan(pre, post)
	if err != nil {
		return nil, err
	}
	if err := e.Apply(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Apply runs a plan in one transaction: the adjustment events in one bulk
// insert, every snapshot under its version check, then category changes.
// When any snapshot changed since the session read it, nothing is written
// and a ConflictError lists every such product.
func (e *Engine) Apply(ctx context.Context, plan *Plan) error {
	_, err := e.ApplyAndTouch(ctx, plan, nil)
	return err
}

// ApplyAndTouch is Apply plus marking the touch products as just rechecked,
// in the same transaction. It returns how many snapshots were touched.
func (e *Engine) ApplyAndTouch(ctx context.Context, plan *Plan, touch []int64) (int64, error) {
	if plan == nil {
		plan = &Plan{At: e.now()}
	}
	if plan.Empty() && len(touch) == 0 {
		e.obs.ObserveReconcile(plan, nil)
		return 0, nil
	}
	var touched int64
	err := e.store.InTx(ctx, func(tx stock.Tx) error {
		if !plan.Empty() {
			if err := applyWrites(ctx, tx, plan); err != nil {
				return err
			}
		}
		if len(touch) == 0 {
			return nil
		}
		var err error
		touched, err = tx.TouchSnapshots(ctx, touch, plan.At)
		return err
	})

	e.obs.ObserveReconcile(plan, err)
	batch := plan.BatchID.String()
	switch {
	case err == nil:
		e.log.Info("batch reconciled", "batch_id", batch,
			"writes", len(plan.Writes), "adjustments", len(plan.Adjustments), "touched", touched)
	case errs.IsConflict(err):
		e.log.Warn("batch rejected", "batch_id", batch, "err", err)
	case errs.IsStorage(err):
		e.log.Error("batch failed", "batch_id", batch, "err", err)
	default:
		e.log.Debug("batch rejected", "batch_id", batch, "err", err)
	}
	if err != nil {
		return 0, err
	}
	return touched, nil
}

func applyWrites(ctx context.Context, tx stock.Tx, plan *Plan) error {
	var (
		updates   []stock.Snapshot
		conflicts []int64
	)
	for _, w := range plan.Writes {
		p, err := tx.Product(ctx, w.ProductID)
		if err != nil {
			return err
		}
		if p == nil {
			return errs.NotFound("product", w.ProductID)
		}
		cur, err := tx.Snapshot(ctx, w.ProductID)
		if err != nil {
			return err
		}
		if !w.current(cur) {
			conflicts = append(conflicts, w.ProductID)
			continue
		}
		if !w.Insert {
			updates = append(updates, w.Snapshot)
		}
	}
	if len(conflicts) == 0 {
		if err := tx.InsertAdjustments(ctx, plan.Adjustments); err != nil {
			return err
		}
		failed, err := tx.UpdateSnapshots(ctx, updates)
		if err != nil {
			return err
		}
		conflicts = failed
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i] < conflicts[j] })
		return &errs.ConflictError{ProductIDs: conflicts}
	}

	for _, w := range plan.Writes {
		if w.Insert {
			if err := tx.InsertSnapshot(ctx, w.Snapshot); err != nil {
				return err
			}
		}
		if w.CategoryChanged {
			n, err := tx.UpdateProductCategory(ctx, w.ProductID, w.CategoryID)
			if err != nil {
				return err
			}
			if n == 0 {
				return errs.NotFound("product", w.ProductID)
			}
		}
	}
	return nil
}
