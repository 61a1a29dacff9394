package stock

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/units"
)

// Observer receives operation outcomes; the metrics package implements it.
type Observer interface {
	ObserveLedgerOp(op string, err error)
	ObserveDrift(productID int64)
}

type nopObserver struct{}

func (nopObserver) ObserveLedgerOp(string, error) {}
func (nopObserver) ObserveDrift(int64)            {}

// Ledger applies stock operations: each one writes its ledger event(s) and
// the snapshot in a single transaction.
type Ledger struct {
	store Store
	log   *slog.Logger
	obs   Observer
	now   func() time.Time
}

type Option func(*Ledger)

func WithObserver(o Observer) Option { return func(l *Ledger) { l.obs = o } }

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func NewLedger(store Store, log *slog.Logger, opts ...Option) *Ledger {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	l := &Ledger{store: store, log: log, obs: nopObserver{}, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// PurchaseInput is one line of a purchase submission.
type PurchaseInput struct {
	ProductID  int64
	UnitID     *int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	Annotation string
}

func (in PurchaseInput) validate() error {
	if in.ProductID <= 0 {
		return errs.Validation("product_id", "required")
	}
	if !in.Quantity.IsPositive() {
		return errs.Validation("quantity", "must be positive, got %s", in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return errs.Validation("unit_price", "must not be negative, got %s", in.UnitPrice)
	}
	if err := checkScale("quantity", in.Quantity, QuantityScale); err != nil {
		return err
	}
	return checkScale("unit_price", in.UnitPrice, PriceScale)
}

// Decimal places the stock columns keep.
const (
	QuantityScale = 3
	PriceScale    = 2
)

// checkScale rejects values the database would silently round.
func checkScale(field string, v decimal.Decimal, places int32) error {
	if !v.Equal(v.Truncate(places)) {
		return errs.Validation(field, "at most %d decimal places, got %s", places, v)
	}
	return nil
}

func (l *Ledger) run(ctx context.Context, op string, fn func(tx Tx) error) error {
	err := l.store.InTx(ctx, fn)
	l.obs.ObserveLedgerOp(op, err)
	if err != nil {
		if errs.IsStorage(err) {
			l.log.Error("ledger operation failed", "op", op, "err", err)
		} else {
			l.log.Debug("ledger operation rejected", "op", op, "err", err)
		}
	}
	return err
}

func requireProduct(ctx context.Context, tx Tx, productID int64) (*ProductRef, error) {
	p, err := tx.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("product", productID)
	}
	return p, nil
}

func table(ctx context.Context, tx Tx, productID int64) (*units.Table, error) {
	convs, err := tx.Conversions(ctx, productID)
	if err != nil {
		return nil, err
	}
	return units.NewTable(convs...), nil
}

// saveSnapshot inserts s when it is new, otherwise writes it under its
// version and moves s to the next one.
func saveSnapshot(ctx context.Context, tx Tx, s *Snapshot, isNew bool) error {
	if isNew {
		s.Version = 1
		return tx.InsertSnapshot(ctx, *s)
	}
	conflicts, err := tx.UpdateSnapshots(ctx, []Snapshot{*s})
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &errs.ConflictError{ProductIDs: conflicts}
	}
	s.Version++
	return nil
}

// loadSnapshot returns the locked snapshot, or a fresh one when the product
// has none yet.
func loadSnapshot(ctx context.Context, tx Tx, productID int64, now time.Time) (Snapshot, bool, error) {
	s, err := tx.Snapshot(ctx, productID)
	if err != nil {
		return Snapshot{}, false, err
	}
	if s == nil {
		return NewSnapshot(productID, now), true, nil
	}
	return *s, false, nil
}

func (l *Ledger) recordLine(ctx context.Context, tx Tx, purchaseID *int64, in PurchaseInput, now time.Time) (PurchaseLine, error) {
	if _, err := requireProduct(ctx, tx, in.ProductID); err != nil {
		return PurchaseLine{}, err
	}
	tbl, err := table(ctx, tx, in.ProductID)
	if err != nil {
		return PurchaseLine{}, err
	}

	line := PurchaseLine{
		PurchaseID: purchaseID,
		ProductID:  in.ProductID,
		UnitID:     in.UnitID,
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		LineCost:   in.Quantity.Mul(in.UnitPrice).Round(PriceScale),
		Annotation: in.Annotation,
		RecordedAt: now,
	}
	id, err := tx.InsertPurchaseLine(ctx, line)
	if err != nil {
		return PurchaseLine{}, err
	}
	line.ID = id

	snap, isNew, err := loadSnapshot(ctx, tx, in.ProductID, now)
	if err != nil {
		return PurchaseLine{}, err
	}
	snap.Add(lineBase(tbl, line), now)
	if err := saveSnapshot(ctx, tx, &snap, isNew); err != nil {
		return PurchaseLine{}, err
	}
	return line, nil
}

// RecordPurchase appends one purchase line and adds its base quantity to the
// snapshot.
func (l *Ledger) RecordPurchase(ctx context.Context, in PurchaseInput) (PurchaseLine, error) {
	if err := in.validate(); err != nil {
		return PurchaseLine{}, err
	}
	var line PurchaseLine
	err := l.run(ctx, "record_purchase", func(tx Tx) error {
		var err error
		line, err = l.recordLine(ctx, tx, nil, in, l.now())
		return err
	})
	return line, err
}

// SubmitPurchase records a purchase header with all its lines atomically.
func (l *Ledger) SubmitPurchase(ctx context.Context, storeID *int64, purchasedAt time.Time, lines []PurchaseInput) (*Purchase, error) {
	if len(lines) == 0 {
		return nil, errs.Validation("lines", "at least one line required")
	}
	total := decimal.Zero
	for i, in := range lines {
		if err := in.validate(); err != nil {
			return nil, errs.Validation("lines", "line %d: %v", i+1, err)
		}
		total = total.Add(in.Quantity.Mul(in.UnitPrice).Round(PriceScale))
	}
	now := l.now()
	if purchasedAt.IsZero() {
		purchasedAt = now
	}

	p := &Purchase{StoreID: storeID, PurchasedAt: purchasedAt, TotalCost: total}
	err := l.run(ctx, "submit_purchase", func(tx Tx) error {
		id, err := tx.InsertPurchase(ctx, *p)
		if err != nil {
			return err
		}
		p.ID = id
		p.Lines = p.Lines[:0]
		for _, in := range lines {
			line, err := l.recordLine(ctx, tx, &p.ID, in, now)
			if err != nil {
				return err
			}
			p.Lines = append(p.Lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePurchaseLine removes a price-history entry without changing the
// believed stock. The line's contribution is kept in the ledger as an audit
// adjustment dated at the line's recording time, so a replay still matches
// the snapshot.
func (l *Ledger) DeletePurchaseLine(ctx context.Context, lineID int64) error {
	return l.run(ctx, "delete_purchase_line", func(tx Tx) error {
		line, err := tx.PurchaseLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line == nil {
			return errs.NotFound("purchase line", lineID)
		}
		tbl, err := table(ctx, tx, line.ProductID)
		if err != nil {
			return err
		}
		if _, err := tx.DeletePurchaseLine(ctx, lineID); err != nil {
			return err
		}
		return tx.InsertAdjustments(ctx, []Adjustment{{
			ProductID:  line.ProductID,
			Change:     lineBase(tbl, *line),
			Reason:     ReasonAudit,
			AdjustedAt: line.RecordedAt,
		}})
	})
}

// UpdateLineAnnotation edits the free-text size/variant note of a line, the
// only mutable field of a purchase line.
func (l *Ledger) UpdateLineAnnotation(ctx context.Context, lineID int64, annotation string) error {
	return l.run(ctx, "annotate_purchase_line", func(tx Tx) error {
		n, err := tx.UpdatePurchaseLineAnnotation(ctx, lineID, annotation)
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("purchase line", lineID)
		}
		return nil
	})
}

// RecordAdjustment appends a signed adjustment and applies it to the
// snapshot with a zero floor. The event keeps the requested delta.
func (l *Ledger) RecordAdjustment(ctx context.Context, productID int64, delta decimal.Decimal, reason Reason) (Adjustment, error) {
	if !reason.Valid() {
		return Adjustment{}, errs.Validation("reason", "unknown reason %q", reason)
	}
	if delta.IsZero() {
		return Adjustment{}, errs.Validation("change_amount", "must not be zero")
	}
	if err := checkScale("change_amount", delta, QuantityScale); err != nil {
		return Adjustment{}, err
	}
	now := l.now()
	adj := Adjustment{ProductID: productID, Change: delta, Reason: reason, AdjustedAt: now}
	err := l.run(ctx, "record_adjustment", func(tx Tx) error {
		if _, err := requireProduct(ctx, tx, productID); err != nil {
			return err
		}
		if err := tx.InsertAdjustments(ctx, []Adjustment{adj}); err != nil {
			return err
		}
		snap, isNew, err := loadSnapshot(ctx, tx, productID, now)
		if err != nil {
			return err
		}
		snap.Add(delta, now)
		return saveSnapshot(ctx, tx, &snap, isNew)
	})
	return adj, err
}

// SetQuantity sets an absolute quantity. A non-zero difference is recorded as
// a manual_update adjustment and the snapshot takes the new value as is; a
// mode or bucket change alone writes no ledger event. A product without a
// snapshot gets one, with an initial_setup event for a non-zero start.
func (l *Ledger) SetQuantity(ctx context.Context, productID int64, qty decimal.Decimal, mode Mode, bucket Bucket) (Snapshot, error) {
	if qty.IsNegative() {
		return Snapshot{}, errs.Validation("quantity", "must not be negative, got %s", qty)
	}
	if err := checkScale("quantity", qty, QuantityScale); err != nil {
		return Snapshot{}, err
	}
	mode, bucket, err := NormalizeMode(mode, bucket)
	if err != nil {
		return Snapshot{}, err
	}
	now := l.now()
	var out Snapshot
	err = l.run(ctx, "set_quantity", func(tx Tx) error {
		if _, err := requireProduct(ctx, tx, productID); err != nil {
			return err
		}
		snap, isNew, err := loadSnapshot(ctx, tx, productID, now)
		if err != nil {
			return err
		}

		var adj *Adjustment
		switch delta := qty.Sub(snap.Quantity); {
		case isNew && !qty.IsZero():
			adj = &Adjustment{ProductID: productID, Change: qty, Reason: ReasonInitialSetup, AdjustedAt: now}
		case !isNew && !delta.IsZero():
			adj = &Adjustment{ProductID: productID, Change: delta, Reason: ReasonManualUpdate, AdjustedAt: now}
		}
		if adj != nil {
			if err := tx.InsertAdjustments(ctx, []Adjustment{*adj}); err != nil {
				return err
			}
		}

		snap.SetQuantity(qty, now)
		snap.Mode, snap.Bucket = mode, bucket
		if err := saveSnapshot(ctx, tx, &snap, isNew); err != nil {
			return err
		}
		out = snap
		return nil
	})
	return out, err
}

// SetMode switches between exact and approximate representation. The stored
// quantity and the status are left as they are.
func (l *Ledger) SetMode(ctx context.Context, productID int64, mode Mode, bucket Bucket) (Snapshot, error) {
	mode, bucket, err := NormalizeMode(mode, bucket)
	if err != nil {
		return Snapshot{}, err
	}
	return l.mutate(ctx, "set_mode", productID, func(s *Snapshot) {
		s.Mode, s.Bucket = mode, bucket
	})
}

// AdvanceStatus moves the status one step along its cycle.
func (l *Ledger) AdvanceStatus(ctx context.Context, productID int64) (Snapshot, error) {
	return l.mutate(ctx, "advance_status", productID, func(s *Snapshot) {
		s.Status = NextStatus(s.Status)
	})
}

func (l *Ledger) mutate(ctx context.Context, op string, productID int64, fn func(s *Snapshot)) (Snapshot, error) {
	now := l.now()
	var out Snapshot
	err := l.run(ctx, op, func(tx Tx) error {
		if _, err := requireProduct(ctx, tx, productID); err != nil {
			return err
		}
		snap, isNew, err := loadSnapshot(ctx, tx, productID, now)
		if err != nil {
			return err
		}
		fn(&snap)
		snap.LastUpdated = &now
		if err := saveSnapshot(ctx, tx, &snap, isNew); err != nil {
			return err
		}
		out = snap
		return nil
	})
	return out, err
}

// Touch marks snapshots as rechecked without changing anything else.
func (l *Ledger) Touch(ctx context.Context, productIDs []int64) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := l.run(ctx, "touch", func(tx Tx) error {
		var err error
		n, err = tx.TouchSnapshots(ctx, productIDs, l.now())
		return err
	})
	return n, err
}

// List returns products joined with their current snapshots.
func (l *Ledger) List(ctx context.Context, includeArchived bool) ([]Entry, error) {
	return l.store.Entries(ctx, includeArchived)
}

// Stale lists active products not rechecked within horizonDays.
func (l *Ledger) Stale(ctx context.Context, horizonDays int) ([]Entry, error) {
	entries, err := l.store.Entries(ctx, false)
	if err != nil {
		return nil, err
	}
	return FindStale(entries, ClampHorizon(horizonDays), l.now()), nil
}

// PriceHistory lists a product's purchase lines with per-base-unit prices.
func (l *Ledger) PriceHistory(ctx context.Context, productID int64) ([]PricePoint, error) {
	points, err := l.store.PriceHistory(ctx, productID)
	if err != nil {
		return nil, err
	}
	var tbl *units.Table
	err = l.store.InTx(ctx, func(tx Tx) error {
		if _, err := requireProduct(ctx, tx, productID); err != nil {
			return err
		}
		tbl, err = table(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range points {
		points[i].PricePerBase = tbl.NormalizePrice(points[i].UnitPrice, productID, points[i].UnitID)
	}
	return points, nil
}

func reproject(ctx context.Context, tx Tx, productID int64) (Drift, *Snapshot, error) {
	if _, err := requireProduct(ctx, tx, productID); err != nil {
		return Drift{}, nil, err
	}
	tbl, err := table(ctx, tx, productID)
	if err != nil {
		return Drift{}, nil, err
	}
	lines, err := tx.PurchaseLines(ctx, productID)
	if err != nil {
		return Drift{}, nil, err
	}
	adjs, err := tx.Adjustments(ctx, productID)
	if err != nil {
		return Drift{}, nil, err
	}
	snap, err := tx.Snapshot(ctx, productID)
	if err != nil {
		return Drift{}, nil, err
	}
	d := Drift{ProductID: productID, Ledger: Reproject(productID, lines, adjs, tbl)}
	if snap != nil {
		d.Snapshot = snap.Quantity
	}
	return d, snap, nil
}

// Verify compares the snapshot with a replay of the ledger.
func (l *Ledger) Verify(ctx context.Context, productID int64) (Drift, error) {
	var d Drift
	err := l.run(ctx, "verify", func(tx Tx) error {
		var err error
		d, _, err = reproject(ctx, tx, productID)
		return err
	})
	return d, err
}

// Repair overwrites a drifted snapshot quantity with the ledger replay. No
// ledger event is written and the status is kept.
func (l *Ledger) Repair(ctx context.Context, productID int64) (Drift, error) {
	now := l.now()
	var d Drift
	err := l.run(ctx, "repair", func(tx Tx) error {
		var (
			snap *Snapshot
			err  error
		)
		d, snap, err = reproject(ctx, tx, productID)
		if err != nil || d.InSync() && snap != nil {
			return err
		}
		if snap == nil {
			s := NewSnapshot(productID, now)
			s.Quantity = d.Ledger
			return tx.InsertSnapshot(ctx, s)
		}
		snap.Quantity = d.Ledger
		snap.LastUpdated = &now
		return saveSnapshot(ctx, tx, snap, false)
	})
	if err == nil && !d.InSync() {
		l.obs.ObserveDrift(productID)
		l.log.Warn("snapshot drift repaired", "product_id", productID,
			"snapshot", d.Snapshot.String(), "ledger", d.Ledger.String())
	}
	return d, err
}
