// Package stocktest provides an in-memory stock.Store for tests.
package stocktest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/domain/units"
)

type state struct {
	products    map[int64]stock.ProductRef
	convs       []units.Conversion
	snapshots   map[int64]stock.Snapshot
	purchases   map[int64]stock.Purchase
	lines       map[int64]stock.PurchaseLine
	adjustments []stock.Adjustment
	storeNames  map[int64]string
	nextID      int64
}

func (s *state) clone() *state {
	c := &state{
		products:    make(map[int64]stock.ProductRef, len(s.products)),
		convs:       append([]units.Conversion(nil), s.convs...),
		snapshots:   make(map[int64]stock.Snapshot, len(s.snapshots)),
		purchases:   make(map[int64]stock.Purchase, len(s.purchases)),
		lines:       make(map[int64]stock.PurchaseLine, len(s.lines)),
		adjustments: append([]stock.Adjustment(nil), s.adjustments...),
		storeNames:  make(map[int64]string, len(s.storeNames)),
		nextID:      s.nextID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.storeNames {
		c.storeNames[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store keeps everything in maps. A transaction works on a copy that replaces
// the committed state only when the callback succeeds.
type Store struct {
	mu    sync.Mutex
	st    *state
	fail  map[string]error
	calls map[string]int
}

func NewStore() *Store {
	return &Store{
		st: &state{
			products:   map[int64]stock.ProductRef{},
			snapshots:  map[int64]stock.Snapshot{},
			purchases:  map[int64]stock.Purchase{},
			lines:      map[int64]stock.PurchaseLine{},
			storeNames: map[int64]string{},
			nextID:     1000,
		},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

// FailOn makes the named Tx method return err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

// Calls reports how many times a Tx method ran.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) AddProduct(p stock.ProductRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) AddConversion(c units.Conversion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.convs = append(s.st.convs, c)
}

func (s *Store) AddStore(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.storeNames[id] = name
}

func (s *Store) PutSnapshot(snap stock.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Version == 0 {
		snap.Version = 1
	}
	s.st.snapshots[snap.ProductID] = snap
}

func (s *Store) GetSnapshot(productID int64) (stock.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.st.snapshots[productID]
	return snap, ok
}

func (s *Store) GetProduct(productID int64) stock.ProductRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[productID]
}

func (s *Store) AllAdjustments(productID int64) []stock.Adjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.Adjustment
	for _, a := range s.st.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) AllLines(productID int64) []stock.PurchaseLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.productLines(productID)
}

func (s *state) productLines(productID int64) []stock.PurchaseLine {
	var out []stock.PurchaseLine
	for _, l := range s.lines {
		if l.ProductID == productID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) InTx(ctx context.Context, fn func(tx stock.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &tx{s: s, st: s.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) Entries(_ context.Context, includeArchived bool) ([]stock.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.Entry
	for _, p := range s.st.products {
		if p.Archived && !includeArchived {
			continue
		}
		e := stock.Entry{Product: p}
		if snap, ok := s.st.snapshots[p.ID]; ok {
			e.Snapshot = &snap
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out, nil
}

func (s *Store) PriceHistory(_ context.Context, productID int64) ([]stock.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.PricePoint
	for _, l := range s.st.productLines(productID) {
		pp := stock.PricePoint{
			LineID:      l.ID,
			PurchasedAt: l.RecordedAt,
			UnitID:      l.UnitID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Annotation:  l.Annotation,
		}
		if l.PurchaseID != nil {
			p := s.st.purchases[*l.PurchaseID]
			pp.PurchasedAt = p.PurchasedAt
			if p.StoreID != nil {
				pp.StoreName = s.st.storeNames[*p.StoreID]
			}
		}
		out = append(out, pp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

type tx struct {
	s  *Store
	st *state
}

func (t *tx) call(method string) error {
	t.s.calls[method]++
	return t.s.fail[method]
}

func (t *tx) Product(_ context.Context, productID int64) (*stock.ProductRef, error) {
	if err := t.call("Product"); err != nil {
		return nil, err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) Conversions(_ context.Context, productIDs ...int64) ([]units.Conversion, error) {
	if err := t.call("Conversions"); err != nil {
		return nil, err
	}
	want := map[int64]bool{}
	for _, id := range productIDs {
		want[id] = true
	}
	var out []units.Conversion
	for _, c := range t.st.convs {
		if len(want) == 0 || want[c.ProductID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *tx) Snapshot(_ context.Context, productID int64) (*stock.Snapshot, error) {
	if err := t.call("Snapshot"); err != nil {
		return nil, err
	}
	snap, ok := t.st.snapshots[productID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (t *tx) InsertSnapshot(_ context.Context, snap stock.Snapshot) error {
	if err := t.call("InsertSnapshot"); err != nil {
		return err
	}
	if _, ok := t.st.snapshots[snap.ProductID]; ok {
		return errors.New("stocktest: duplicate snapshot")
	}
	snap.Version = 1
	t.st.snapshots[snap.ProductID] = snap
	return nil
}

func (t *tx) UpdateSnapshots(_ context.Context, snaps []stock.Snapshot) ([]int64, error) {
	if err := t.call("UpdateSnapshots"); err != nil {
		return nil, err
	}
	var conflicts []int64
	for _, snap := range snaps {
		cur, ok := t.st.snapshots[snap.ProductID]
		if !ok || cur.Version != snap.Version {
			conflicts = append(conflicts, snap.ProductID)
			continue
		}
		snap.Version = cur.Version + 1
		t.st.snapshots[snap.ProductID] = snap
	}
	return conflicts, nil
}

func (t *tx) TouchSnapshots(_ context.Context, productIDs []int64, at time.Time) (int64, error) {
	if err := t.call("TouchSnapshots"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range productIDs {
		if _, ok := t.st.products[id]; !ok {
			continue
		}
		snap, ok := t.st.snapshots[id]
		if !ok {
			snap = stock.NewSnapshot(id, at)
		}
		snap.LastUpdated = &at
		t.st.snapshots[id] = snap
		n++
	}
	return n, nil
}

func (t *tx) InsertPurchase(_ context.Context, p stock.Purchase) (int64, error) {
	if err := t.call("InsertPurchase"); err != nil {
		return 0, err
	}
	p.ID = t.st.id()
	p.Lines = nil
	t.st.purchases[p.ID] = p
	return p.ID, nil
}

func (t *tx) InsertPurchaseLine(_ context.Context, l stock.PurchaseLine) (int64, error) {
	if err := t.call("InsertPurchaseLine"); err != nil {
		return 0, err
	}
	l.ID = t.st.id()
	t.st.lines[l.ID] = l
	return l.ID, nil
}

func (t *tx) PurchaseLine(_ context.Context, lineID int64) (*stock.PurchaseLine, error) {
	if err := t.call("PurchaseLine"); err != nil {
		return nil, err
	}
	l, ok := t.st.lines[lineID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (t *tx) UpdatePurchaseLineAnnotation(_ context.Context, lineID int64, annotation string) (int64, error) {
	if err := t.call("UpdatePurchaseLineAnnotation"); err != nil {
		return 0, err
	}
	l, ok := t.st.lines[lineID]
	if !ok {
		return 0, nil
	}
	l.Annotation = annotation
	t.st.lines[lineID] = l
	return 1, nil
}

func (t *tx) DeletePurchaseLine(_ context.Context, lineID int64) (int64, error) {
	if err := t.call("DeletePurchaseLine"); err != nil {
		return 0, err
	}
	if _, ok := t.st.lines[lineID]; !ok {
		return 0, nil
	}
	delete(t.st.lines, lineID)
	return 1, nil
}

func (t *tx) PurchaseLines(_ context.Context, productID int64) ([]stock.PurchaseLine, error) {
	if err := t.call("PurchaseLines"); err != nil {
		return nil, err
	}
	return t.st.productLines(productID), nil
}

func (t *tx) InsertAdjustments(_ context.Context, adjs []stock.Adjustment) error {
	if err := t.call("InsertAdjustments"); err != nil {
		return err
	}
	for _, a := range adjs {
		a.ID = t.st.id()
		t.st.adjustments = append(t.st.adjustments, a)
	}
	return nil
}

func (t *tx) Adjustments(_ context.Context, productID int64) ([]stock.Adjustment, error) {
	if err := t.call("Adjustments"); err != nil {
		return nil, err
	}
	var out []stock.Adjustment
	for _, a := range t.st.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *tx) UpdateProductCategory(_ context.Context, productID int64, categoryID *int64) (int64, error) {
	if err := t.call("UpdateProductCategory"); err != nil {
		return 0, err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return 0, nil
	}
	p.CategoryID = categoryID
	t.st.products[productID] = p
	return 1, nil
}
