package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
)

var statusCycle = [...]Status{StatusUnchecked, StatusSufficient, StatusNeeded}

// NextStatus advances the fixed cycle unchecked -> sufficient -> needed -> unchecked.
// Unknown values restart the cycle at sufficient, as if they were unchecked.
func NextStatus(s Status) Status {
	for i, st := range statusCycle {
		if st == s {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return StatusSufficient
}

func (s Status) Valid() bool {
	switch s {
	case StatusUnchecked, StatusSufficient, StatusNeeded:
		return true
	}
	return false
}

func (m Mode) Valid() bool { return m == ModeExact || m == ModeApproximate }

func (b Bucket) Valid() bool { return b == BucketNone || b == BucketFew || b == BucketMany }

// NormalizeMode returns the (mode, bucket) pair actually stored: approximate
// mode always carries a bucket (few when none given), exact mode none.
// The quantity is never touched by a mode change.
func NormalizeMode(m Mode, b Bucket) (Mode, Bucket, error) {
	if m == "" {
		m = ModeExact
	}
	if !m.Valid() {
		return "", "", errs.Validation("mode", "unknown mode %q", m)
	}
	if !b.Valid() {
		return "", "", errs.Validation("approx_bucket", "unknown bucket %q", b)
	}
	if m == ModeExact {
		return ModeExact, BucketNone, nil
	}
	if b == BucketNone {
		b = BucketFew
	}
	return ModeApproximate, b, nil
}

// SetQuantity stores a new absolute quantity, clamped at zero. When the value
// actually changes the status drops back to unchecked: a changed count is not
// yet re-judged. It reports whether the quantity changed.
func (s *Snapshot) SetQuantity(q decimal.Decimal, at time.Time) bool {
	if q.IsNegative() {
		q = decimal.Zero
	}
	s.LastUpdated = &at
	if q.Equal(s.Quantity) {
		return false
	}
	s.Quantity = q
	s.Status = StatusUnchecked
	return true
}

// Add applies a signed delta with the zero floor.
func (s *Snapshot) Add(delta decimal.Decimal, at time.Time) bool {
	return s.SetQuantity(s.Quantity.Add(delta), at)
}
