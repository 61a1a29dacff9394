package stock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/domain/stock/stocktest"
	"github.com/Spok95/homestock/internal/domain/units"
)

const (
	milk     = int64(1)
	soap     = int64(2)
	itemUnit = int64(10)
	packUnit = int64(11)
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v int64) *int64 { return &v }

func setup(t *testing.T) (*stock.Ledger, *stocktest.Store, *clock) {
	t.Helper()
	st := stocktest.NewStore()
	st.AddProduct(stock.ProductRef{ID: milk, Name: "Milk"})
	st.AddProduct(stock.ProductRef{ID: soap, Name: "Soap"})
	st.AddConversion(units.Conversion{ProductID: soap, UnitID: itemUnit, FactorToBase: dec("1"), IsDefault: true})
	st.AddConversion(units.Conversion{ProductID: soap, UnitID: packUnit, FactorToBase: dec("6")})
	c := &clock{t: t0}
	return stock.NewLedger(st, nil, stock.WithClock(c.now)), st, c
}

func quantity(t *testing.T, st *stocktest.Store, id int64) decimal.Decimal {
	t.Helper()
	snap, ok := st.GetSnapshot(id)
	if !ok {
		t.Fatalf("product %d has no snapshot", id)
	}
	return snap.Quantity
}

func assertInSync(t *testing.T, l *stock.Ledger, id int64) {
	t.Helper()
	d, err := l.Verify(context.Background(), id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !d.InSync() {
		t.Fatalf("product %d drifted: snapshot %s, ledger %s", id, d.Snapshot, d.Ledger)
	}
}

func TestRecordPurchase_CreatesSnapshot(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()

	line, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("2"), UnitPrice: dec("1.20")})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if !line.LineCost.Equal(dec("2.40")) {
		t.Fatalf("line cost = %s, want 2.40", line.LineCost)
	}
	snap, _ := st.GetSnapshot(milk)
	if !snap.Quantity.Equal(dec("2")) || snap.Status != stock.StatusUnchecked || snap.Mode != stock.ModeExact {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	assertInSync(t, l, milk)
}

func TestRecordPurchase_ConvertsUnits(t *testing.T) {
	l, st, _ := setup(t)
	if _, err := l.RecordPurchase(context.Background(), stock.PurchaseInput{
		ProductID: soap, UnitID: ptr(packUnit), Quantity: dec("2"), UnitPrice: dec("600"),
	}); err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if got := quantity(t, st, soap); !got.Equal(dec("12")) {
		t.Fatalf("2 packs of 6: quantity %s, want 12", got)
	}
	assertInSync(t, l, soap)
}

func TestRecordPurchase_ResetsStatus(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	st.PutSnapshot(stock.Snapshot{ProductID: milk, Quantity: dec("1"), Mode: stock.ModeExact, Status: stock.StatusSufficient})

	if _, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("1"), UnitPrice: dec("1")}); err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	snap, _ := st.GetSnapshot(milk)
	if snap.Status != stock.StatusUnchecked {
		t.Fatalf("status = %s, want unchecked", snap.Status)
	}
	if snap.Version != 2 {
		t.Fatalf("version = %d, want 2", snap.Version)
	}
}

func TestRecordPurchase_Validation(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   stock.PurchaseInput
	}{
		{"zero quantity", stock.PurchaseInput{ProductID: milk, Quantity: decimal.Zero, UnitPrice: dec("1")}},
		{"negative quantity", stock.PurchaseInput{ProductID: milk, Quantity: dec("-1"), UnitPrice: dec("1")}},
		{"negative price", stock.PurchaseInput{ProductID: milk, Quantity: dec("1"), UnitPrice: dec("-1")}},
		{"no product", stock.PurchaseInput{Quantity: dec("1"), UnitPrice: dec("1")}},
	}
	for _, tc := range cases {
		if _, err := l.RecordPurchase(ctx, tc.in); !errs.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestRecordPurchase_UnknownProduct(t *testing.T) {
	l, _, _ := setup(t)
	_, err := l.RecordPurchase(context.Background(), stock.PurchaseInput{ProductID: 99, Quantity: dec("1"), UnitPrice: dec("1")})
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePurchaseLine_KeepsSnapshot(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()

	line, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("5"), UnitPrice: dec("100")})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if got := quantity(t, st, milk); !got.Equal(dec("5")) {
		t.Fatalf("after purchase: %s, want 5", got)
	}
	c.advance(time.Hour)

	if err := l.DeletePurchaseLine(ctx, line.ID); err != nil {
		t.Fatalf("delete line: %v", err)
	}
	if got := quantity(t, st, milk); !got.Equal(dec("5")) {
		t.Fatalf("after delete: %s, want 5", got)
	}
	if lines := st.AllLines(milk); len(lines) != 0 {
		t.Fatalf("line still present: %+v", lines)
	}
	adjs := st.AllAdjustments(milk)
	if len(adjs) != 1 || adjs[0].Reason != stock.ReasonAudit || !adjs[0].Change.Equal(dec("5")) {
		t.Fatalf("unexpected compensating adjustment %+v", adjs)
	}
	assertInSync(t, l, milk)

	if err := l.DeletePurchaseLine(ctx, line.ID); !errs.IsNotFound(err) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func TestRecordAdjustment_ClampsAtZero(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()

	if _, err := l.SetQuantity(ctx, milk, dec("3"), stock.ModeExact, ""); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	c.advance(time.Minute)
	adj, err := l.RecordAdjustment(ctx, milk, dec("-10"), stock.ReasonConsumed)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if !adj.Change.Equal(dec("-10")) {
		t.Fatalf("event change = %s, want -10", adj.Change)
	}
	if got := quantity(t, st, milk); !got.IsZero() {
		t.Fatalf("quantity %s, want 0", got)
	}
	assertInSync(t, l, milk)
}

func TestRecordAdjustment_Validation(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()
	if _, err := l.RecordAdjustment(ctx, milk, dec("1"), "stolen"); !errs.IsValidation(err) {
		t.Fatalf("bad reason: expected validation error, got %v", err)
	}
	if _, err := l.RecordAdjustment(ctx, milk, decimal.Zero, stock.ReasonAudit); !errs.IsValidation(err) {
		t.Fatalf("zero delta: expected validation error, got %v", err)
	}
	if _, err := l.RecordAdjustment(ctx, 99, dec("1"), stock.ReasonAudit); !errs.IsNotFound(err) {
		t.Fatalf("unknown product: expected not found, got %v", err)
	}
}

func TestSetQuantity_RecordsDelta(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()

	if _, err := l.SetQuantity(ctx, milk, dec("12"), stock.ModeExact, ""); err != nil {
		t.Fatalf("initial: %v", err)
	}
	c.advance(time.Minute)
	snap, err := l.SetQuantity(ctx, milk, dec("20"), stock.ModeExact, "")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !snap.Quantity.Equal(dec("20")) {
		t.Fatalf("snapshot %s, want 20", snap.Quantity)
	}

	adjs := st.AllAdjustments(milk)
	if len(adjs) != 2 {
		t.Fatalf("expected initial_setup and manual_update, got %+v", adjs)
	}
	if adjs[0].Reason != stock.ReasonInitialSetup || !adjs[0].Change.Equal(dec("12")) {
		t.Fatalf("first event %+v", adjs[0])
	}
	if adjs[1].Reason != stock.ReasonManualUpdate || !adjs[1].Change.Equal(dec("8")) {
		t.Fatalf("second event %+v", adjs[1])
	}
	assertInSync(t, l, milk)
}

func TestSetQuantity_SameValueWritesNoEvent(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()
	st.PutSnapshot(stock.Snapshot{ProductID: milk, Quantity: dec("4"), Mode: stock.ModeExact, Status: stock.StatusSufficient})

	c.advance(time.Hour)
	snap, err := l.SetQuantity(ctx, milk, dec("4"), stock.ModeApproximate, stock.BucketMany)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if n := len(st.AllAdjustments(milk)); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
	if snap.Status != stock.StatusSufficient {
		t.Fatalf("pure mode change reset status to %s", snap.Status)
	}
	if snap.Mode != stock.ModeApproximate || snap.Bucket != stock.BucketMany {
		t.Fatalf("mode not applied: %+v", snap)
	}
	if snap.LastUpdated == nil || !snap.LastUpdated.Equal(c.now()) {
		t.Fatalf("last_updated not refreshed: %v", snap.LastUpdated)
	}
}

func TestSetQuantity_RejectsNegative(t *testing.T) {
	l, _, _ := setup(t)
	if _, err := l.SetQuantity(context.Background(), milk, dec("-1"), stock.ModeExact, ""); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetMode_KeepsQuantityAndStatus(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	st.PutSnapshot(stock.Snapshot{ProductID: milk, Quantity: dec("7"), Mode: stock.ModeExact, Status: stock.StatusNeeded})

	snap, err := l.SetMode(ctx, milk, stock.ModeApproximate, "")
	if err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if !snap.Quantity.Equal(dec("7")) || snap.Status != stock.StatusNeeded || snap.Bucket != stock.BucketFew {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	snap, err = l.SetMode(ctx, milk, stock.ModeExact, stock.BucketMany)
	if err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if snap.Bucket != stock.BucketNone {
		t.Fatalf("exact mode kept bucket %q", snap.Bucket)
	}
}

func TestAdvanceStatus_Cycles(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()
	want := []stock.Status{stock.StatusSufficient, stock.StatusNeeded, stock.StatusUnchecked, stock.StatusSufficient}
	for i, w := range want {
		snap, err := l.AdvanceStatus(ctx, milk)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if snap.Status != w {
			t.Fatalf("advance %d: status %s, want %s", i, snap.Status, w)
		}
	}
}

func TestRecordPurchase_RoundsBaseQuantityToColumnScale(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	third := int64(12)
	st.AddConversion(units.Conversion{ProductID: soap, UnitID: third, FactorToBase: dec("0.3333")})

	line, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: soap, UnitID: ptr(third), Quantity: dec("2.5"), UnitPrice: dec("0.99")})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if !line.LineCost.Equal(dec("2.48")) {
		t.Fatalf("line cost = %s, want 2.48", line.LineCost)
	}
	// 2.5 x 0.3333 = 0.83325
	if got := quantity(t, st, soap); !got.Equal(dec("0.833")) {
		t.Fatalf("soap %s, want 0.833", got)
	}
	assertInSync(t, l, soap)

	if err := l.DeletePurchaseLine(ctx, line.ID); err != nil {
		t.Fatalf("delete line: %v", err)
	}
	if got := quantity(t, st, soap); !got.Equal(dec("0.833")) {
		t.Fatalf("soap %s after delete, want 0.833", got)
	}
	assertInSync(t, l, soap)
}

func TestScaleValidation(t *testing.T) {
	l, _, _ := setup(t)
	ctx := context.Background()

	if _, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("1.2345"), UnitPrice: dec("1")}); !errs.IsValidation(err) {
		t.Fatalf("quantity 1.2345: expected validation error, got %v", err)
	}
	if _, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("1"), UnitPrice: dec("0.999")}); !errs.IsValidation(err) {
		t.Fatalf("price 0.999: expected validation error, got %v", err)
	}
	if _, err := l.RecordAdjustment(ctx, milk, dec("-0.0001"), stock.ReasonConsumed); !errs.IsValidation(err) {
		t.Fatalf("adjustment -0.0001: expected validation error, got %v", err)
	}
	if _, err := l.SetQuantity(ctx, milk, dec("2.0005"), stock.ModeExact, ""); !errs.IsValidation(err) {
		t.Fatalf("set 2.0005: expected validation error, got %v", err)
	}
	if _, err := l.SetQuantity(ctx, milk, dec("2.500"), stock.ModeExact, ""); err != nil {
		t.Fatalf("set 2.500: %v", err)
	}
}

func TestTouch_OnlyRefreshesTimestamp(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()
	st.PutSnapshot(stock.Snapshot{ProductID: milk, Quantity: dec("3"), Mode: stock.ModeApproximate, Bucket: stock.BucketFew, Status: stock.StatusNeeded})
	before, _ := st.GetSnapshot(milk)

	for i := 0; i < 2; i++ {
		c.advance(time.Hour)
		n, err := l.Touch(ctx, []int64{milk})
		if err != nil {
			t.Fatalf("touch: %v", err)
		}
		if n != 1 {
			t.Fatalf("touched %d rows, want 1", n)
		}
	}
	after, _ := st.GetSnapshot(milk)
	if !after.Quantity.Equal(before.Quantity) || after.Mode != before.Mode || after.Bucket != before.Bucket ||
		after.Status != before.Status || after.Version != before.Version {
		t.Fatalf("touch changed more than last_updated: %+v -> %+v", before, after)
	}
	if after.LastUpdated == nil || !after.LastUpdated.Equal(c.now()) {
		t.Fatalf("last_updated = %v, want %v", after.LastUpdated, c.now())
	}
	if len(st.AllAdjustments(milk)) != 0 {
		t.Fatal("touch wrote a ledger event")
	}
}

func TestTouch_CreatesMissingSnapshot(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()

	n, err := l.Touch(ctx, []int64{soap, 999})
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if n != 1 {
		t.Fatalf("touched %d rows, want 1", n)
	}
	snap, ok := st.GetSnapshot(soap)
	if !ok {
		t.Fatal("touch left soap without a snapshot")
	}
	if !snap.Quantity.IsZero() || snap.Status != stock.StatusUnchecked || !snap.LastUpdated.Equal(c.now()) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, ok := st.GetSnapshot(999); ok {
		t.Fatal("snapshot created for an unknown product")
	}

	stale, err := l.Stale(ctx, 30)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	for _, e := range stale {
		if e.Product.ID == soap {
			t.Fatal("touched product still stale")
		}
	}
	assertInSync(t, l, soap)
}

func TestTouch_Empty(t *testing.T) {
	l, st, _ := setup(t)
	n, err := l.Touch(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("touch(nil) = %d, %v", n, err)
	}
	if st.Calls("TouchSnapshots") != 0 {
		t.Fatal("empty touch reached the store")
	}
}

func TestSubmitPurchase_Atomic(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	st.AddStore(5, "Corner shop")

	p, err := l.SubmitPurchase(ctx, ptr(5), time.Time{}, []stock.PurchaseInput{
		{ProductID: milk, Quantity: dec("2"), UnitPrice: dec("1.5")},
		{ProductID: soap, UnitID: ptr(packUnit), Quantity: dec("1"), UnitPrice: dec("6")},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !p.TotalCost.Equal(dec("9")) || len(p.Lines) != 2 {
		t.Fatalf("unexpected purchase %+v", p)
	}
	if got := quantity(t, st, soap); !got.Equal(dec("6")) {
		t.Fatalf("soap %s, want 6", got)
	}

	_, err = l.SubmitPurchase(ctx, nil, t0, []stock.PurchaseInput{
		{ProductID: milk, Quantity: dec("1"), UnitPrice: dec("1")},
		{ProductID: 99, Quantity: dec("1"), UnitPrice: dec("1")},
	})
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := quantity(t, st, milk); !got.Equal(dec("2")) {
		t.Fatalf("failed submit leaked a write: milk %s, want 2", got)
	}
}

func TestStorageFailureRollsBack(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	st.PutSnapshot(stock.Snapshot{ProductID: milk, Quantity: dec("3"), Mode: stock.ModeExact, Status: stock.StatusUnchecked})
	boom := errs.Storage("update snapshots", errors.New("connection reset"))
	st.FailOn("UpdateSnapshots", boom)

	_, err := l.RecordAdjustment(ctx, milk, dec("1"), stock.ReasonAudit)
	if !errs.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if n := len(st.AllAdjustments(milk)); n != 0 {
		t.Fatalf("adjustment committed without its snapshot: %d events", n)
	}
}

func TestUpdateSnapshot_VersionConflict(t *testing.T) {
	_, st, _ := setup(t)
	ctx := context.Background()
	st.PutSnapshot(stock.Snapshot{ProductID: milk, Quantity: dec("3"), Mode: stock.ModeExact, Status: stock.StatusUnchecked, Version: 4})

	err := st.InTx(ctx, func(tx stock.Tx) error {
		conflicts, err := tx.UpdateSnapshots(ctx, []stock.Snapshot{{ProductID: milk, Quantity: dec("1"), Version: 3}})
		if err != nil {
			return err
		}
		if len(conflicts) != 1 || conflicts[0] != milk {
			t.Fatalf("conflicts = %v, want [%d]", conflicts, milk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestPriceHistory_Normalized(t *testing.T) {
	l, st, c := setup(t)
	ctx := context.Background()
	st.AddStore(5, "Market")

	if _, err := l.SubmitPurchase(ctx, ptr(5), t0, []stock.PurchaseInput{
		{ProductID: soap, UnitID: ptr(packUnit), Quantity: dec("1"), UnitPrice: dec("600"), Annotation: "lavender"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.advance(24 * time.Hour)
	if _, err := l.SubmitPurchase(ctx, nil, c.now(), []stock.PurchaseInput{
		{ProductID: soap, UnitID: ptr(itemUnit), Quantity: dec("2"), UnitPrice: dec("90")},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	points, err := l.PriceHistory(ctx, soap)
	if err != nil {
		t.Fatalf("price history: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if !points[0].PricePerBase.Equal(dec("90")) {
		t.Fatalf("newest first: per-base %s, want 90", points[0].PricePerBase)
	}
	if !points[1].PricePerBase.Equal(dec("100")) || points[1].StoreName != "Market" || points[1].Annotation != "lavender" {
		t.Fatalf("unexpected older point %+v", points[1])
	}
}

func TestUpdateLineAnnotation(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	line, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("1"), UnitPrice: dec("1")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.UpdateLineAnnotation(ctx, line.ID, "1L carton"); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if got := st.AllLines(milk)[0].Annotation; got != "1L carton" {
		t.Fatalf("annotation = %q", got)
	}
	if err := l.UpdateLineAnnotation(ctx, 12345, "x"); !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyAndRepair(t *testing.T) {
	l, st, _ := setup(t)
	ctx := context.Background()
	if _, err := l.RecordPurchase(ctx, stock.PurchaseInput{ProductID: milk, Quantity: dec("4"), UnitPrice: dec("1")}); err != nil {
		t.Fatalf("record: %v", err)
	}
	snap, _ := st.GetSnapshot(milk)
	snap.Quantity = dec("9")
	snap.Status = stock.StatusSufficient
	st.PutSnapshot(snap)

	d, err := l.Verify(ctx, milk)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if d.InSync() {
		t.Fatal("expected drift")
	}

	d, err = l.Repair(ctx, milk)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !d.Ledger.Equal(dec("4")) {
		t.Fatalf("ledger %s, want 4", d.Ledger)
	}
	after, _ := st.GetSnapshot(milk)
	if !after.Quantity.Equal(dec("4")) || after.Status != stock.StatusSufficient {
		t.Fatalf("unexpected repaired snapshot %+v", after)
	}
	assertInSync(t, l, milk)
}

type recordingObserver struct {
	ops    map[string]int
	drifts []int64
}

func (o *recordingObserver) ObserveLedgerOp(op string, err error) {
	if o.ops == nil {
		o.ops = map[string]int{}
	}
	o.ops[op]++
}

func (o *recordingObserver) ObserveDrift(id int64) { o.drifts = append(o.drifts, id) }

func TestObserver(t *testing.T) {
	st := stocktest.NewStore()
	st.AddProduct(stock.ProductRef{ID: milk, Name: "Milk"})
	obs := &recordingObserver{}
	l := stock.NewLedger(st, nil, stock.WithObserver(obs))

	ctx := context.Background()
	if _, err := l.RecordAdjustment(ctx, milk, dec("2"), stock.ReasonAudit); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	_, _ = l.RecordAdjustment(ctx, 42, dec("2"), stock.ReasonAudit)
	if obs.ops["record_adjustment"] != 2 {
		t.Fatalf("ops = %v", obs.ops)
	}
}
