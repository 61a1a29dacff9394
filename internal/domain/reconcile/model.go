// Package reconcile turns a batch of locally edited stock rows into the
// minimal set of ledger and snapshot writes, and applies them atomically.
package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/stock"
)

// Item is one product row of a working set as the editor sees it.
type Item struct {
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Mode       stock.Mode      `json:"mode"`
	Bucket     stock.Bucket    `json:"approx_bucket,omitempty"`
	Status     stock.Status    `json:"status"`
	CategoryID *int64          `json:"category_id,omitempty"`
	// Version is the snapshot version the row was read at; 0 when the
	// product had no snapshot yet.
	Version int64 `json:"version"`
}

// FromEntries captures the pre-edit working set of the given entries.
func FromEntries(entries []stock.Entry) []Item {
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		it := Item{
			ProductID:  e.Product.ID,
			Quantity:   decimal.Zero,
			Mode:       stock.ModeExact,
			Status:     stock.StatusUnchecked,
			CategoryID: e.Product.CategoryID,
		}
		if s := e.Snapshot; s != nil {
			it.Quantity, it.Mode, it.Bucket, it.Status, it.Version = s.Quantity, s.Mode, s.Bucket, s.Status, s.Version
		}
		out = append(out, it)
	}
	return out
}

// Write is the planned change of one product.
type Write struct {
	ProductID int64
	// Snapshot holds the new snapshot fields. Its Version is the one the
	// pre-edit row was read at and must still be current when applied.
	Snapshot stock.Snapshot
	// Insert is set when the product has no snapshot row yet.
	Insert bool
	// Pre is the quantity the session read; the stored row must still hold it.
	Pre   decimal.Decimal
	Delta decimal.Decimal
	// CategoryChanged is set when CategoryID must be written to the product.
	CategoryChanged bool
	CategoryID      *int64
}

// Plan is the output of Diff. It is a plain value: nothing has been written
// until Engine.Apply runs it.
type Plan struct {
	BatchID     uuid.UUID
	At          time.Time
	Adjustments []stock.Adjustment
	Writes      []Write
	Skipped     []int64
}

// current reports whether cur is still the row the session started from.
func (w Write) current(cur *stock.Snapshot) bool {
	if w.Insert {
		return cur == nil && w.Pre.IsZero()
	}
	return cur != nil && cur.Version == w.Snapshot.Version && cur.Quantity.Equal(w.Pre)
}

func (p *Plan) Empty() bool { return p == nil || len(p.Writes) == 0 }

// ProductIDs lists the products the plan writes to.
func (p *Plan) ProductIDs() []int64 {
	if p == nil {
		return nil
	}
	ids := make([]int64, 0, len(p.Writes))
	for _, w := range p.Writes {
		ids = append(ids, w.ProductID)
	}
	return ids
}

// Counts reports the number of planned writes by kind.
func (p *Plan) Counts() map[string]int {
	c := map[string]int{"adjustment": 0, "snapshot": 0, "category": 0, "skipped": 0}
	if p == nil {
		return c
	}
	c["adjustment"] = len(p.Adjustments)
	c["snapshot"] = len(p.Writes)
	c["skipped"] = len(p.Skipped)
	for _, w := range p.Writes {
		if w.CategoryChanged {
			c["category"]++
		}
	}
	return c
}
