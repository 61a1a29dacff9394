package stock

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/units"
)

type event struct {
	at       time.Time
	purchase bool
	id       int64
	delta    decimal.Decimal
}

// Reproject rebuilds the quantity of productID by replaying its ledger in
// recording order. The zero floor is applied after every event, the same way
// the snapshot is maintained incrementally, so a replay of a consistent ledger
// matches the snapshot even when an adjustment was clamped.
func Reproject(productID int64, lines []PurchaseLine, adjs []Adjustment, tbl *units.Table) decimal.Decimal {
	events := make([]event, 0, len(lines)+len(adjs))
	for _, l := range lines {
		if l.ProductID != productID {
			continue
		}
		events = append(events, event{
			at:       l.RecordedAt,
			purchase: true,
			id:       l.ID,
			delta:    lineBase(tbl, l),
		})
	}
	for _, a := range adjs {
		if a.ProductID != productID {
			continue
		}
		events = append(events, event{at: a.AdjustedAt, id: a.ID, delta: a.Change})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		if events[i].purchase != events[j].purchase {
			return events[i].purchase
		}
		return events[i].id < events[j].id
	})

	q := decimal.Zero
	for _, e := range events {
		q = q.Add(e.delta)
		if q.IsNegative() {
			q = decimal.Zero
		}
	}
	return q
}

// LedgerSum is the unordered sum Σ(lines × factor) + Σ(adjustments), clamped
// once at the end. It only differs from Reproject when a clamp happened.
func LedgerSum(productID int64, lines []PurchaseLine, adjs []Adjustment, tbl *units.Table) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.ProductID == productID {
			sum = sum.Add(lineBase(tbl, l))
		}
	}
	for _, a := range adjs {
		if a.ProductID == productID {
			sum = sum.Add(a.Change)
		}
	}
	if sum.IsNegative() {
		return decimal.Zero
	}
	return sum
}
