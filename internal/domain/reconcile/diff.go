package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/stock"
)

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func index(items []Item, field string) (map[int64]Item, error) {
	m := make(map[int64]Item, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, errs.Validation(field, "product_id required")
		}
		if _, dup := m[it.ProductID]; dup {
			return nil, errs.Validation(field, "product %d listed twice", it.ProductID)
		}
		m[it.ProductID] = it
	}
	return m, nil
}

func normalize(it Item) (Item, error) {
	if it.Quantity.IsNegative() {
		return it, errs.Validation("quantity", "product %d: must not be negative, got %s", it.ProductID, it.Quantity)
	}
	if !it.Quantity.Equal(it.Quantity.Truncate(stock.QuantityScale)) {
		return it, errs.Validation("quantity", "product %d: at most %d decimal places, got %s", it.ProductID, stock.QuantityScale, it.Quantity)
	}
	m, b, err := stock.NormalizeMode(it.Mode, it.Bucket)
	if err != nil {
		return it, err
	}
	it.Mode, it.Bucket = m, b
	if it.Status == "" {
		it.Status = stock.StatusUnchecked
	}
	if !it.Status.Valid() {
		return it, errs.Validation("status", "product %d: unknown status %q", it.ProductID, it.Status)
	}
	return it, nil
}

// Diff compares the pre-edit working set with the post-edit one and returns
// the writes needed to move the store from pre to post. Only products whose
// quantity, mode, bucket, status or category differ get a write; a quantity
// difference also gets one batch_edit adjustment carrying the delta.
//
// A changed quantity resets the status to unchecked unless the editor changed
// the status explicitly in the same session. Products present in pre but not
// in post are left alone.
func Diff(pre, post []Item, now time.Time) (*Plan, error) {
	before, err := index(pre, "pre")
	if err != nil {
		return nil, err
	}
	if _, err := index(post, "post"); err != nil {
		return nil, err
	}

	plan := &Plan{BatchID: uuid.New(), At: now}
	seen := make(map[int64]bool, len(post))
	for _, raw := range post {
		old, ok := before[raw.ProductID]
		if !ok {
			return nil, errs.Validation("post", "product %d was not part of the edit session", raw.ProductID)
		}
		seen[raw.ProductID] = true
		old, err := normalize(old)
		if err != nil {
			return nil, err
		}
		cur, err := normalize(raw)
		if err != nil {
			return nil, err
		}

		delta := cur.Quantity.Sub(old.Quantity)
		qtyChanged := !delta.IsZero()
		statusChanged := cur.Status != old.Status
		catChanged := !sameCategory(cur.CategoryID, old.CategoryID)
		if !qtyChanged && !statusChanged && !catChanged && cur.Mode == old.Mode && cur.Bucket == old.Bucket {
			plan.Skipped = append(plan.Skipped, cur.ProductID)
			continue
		}

		status := cur.Status
		if qtyChanged && !statusChanged {
			status = stock.StatusUnchecked
		}
		at := now
		w := Write{
			ProductID: cur.ProductID,
			Snapshot: stock.Snapshot{
				ProductID:   cur.ProductID,
				Quantity:    cur.Quantity,
				Mode:        cur.Mode,
				Bucket:      cur.Bucket,
				Status:      status,
				LastUpdated: &at,
				Version:     old.Version,
			},
			Insert:          old.Version == 0,
			Pre:             old.Quantity,
			Delta:           delta,
			CategoryChanged: catChanged,
			CategoryID:      cur.CategoryID,
		}
		plan.Writes = append(plan.Writes, w)

		if qtyChanged {
			batch := plan.BatchID
			plan.Adjustments = append(plan.Adjustments, stock.Adjustment{
				ProductID:  cur.ProductID,
				Change:     delta,
				Reason:     stock.ReasonBatchEdit,
				BatchID:    &batch,
				AdjustedAt: now,
			})
		}
	}
	for _, it := range pre {
		if !seen[it.ProductID] {
			plan.Skipped = append(plan.Skipped, it.ProductID)
		}
	}
	return plan, nil
}
