package stock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/units"
)

func TestReproject_ClampsPerEvent(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := decimal.NewFromInt
	adjs := []Adjustment{
		{ID: 1, ProductID: 1, Change: d(3), Reason: ReasonInitialSetup, AdjustedAt: at},
		{ID: 2, ProductID: 1, Change: d(-10), Reason: ReasonConsumed, AdjustedAt: at.Add(time.Minute)},
		{ID: 3, ProductID: 1, Change: d(4), Reason: ReasonAudit, AdjustedAt: at.Add(2 * time.Minute)},
		{ID: 4, ProductID: 2, Change: d(100), Reason: ReasonAudit, AdjustedAt: at},
	}
	if got := Reproject(1, nil, adjs, nil); !got.Equal(d(4)) {
		t.Fatalf("Reproject = %s, want 4", got)
	}
	// the plain sum loses the clamp: 3 - 10 + 4 = -3 -> 0
	if got := LedgerSum(1, nil, adjs, nil); !got.IsZero() {
		t.Fatalf("LedgerSum = %s, want 0", got)
	}
}

func TestReproject_UsesConversions(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pack := int64(11)
	tbl := units.NewTable(units.Conversion{ProductID: 1, UnitID: pack, FactorToBase: decimal.NewFromInt(6)})
	lines := []PurchaseLine{
		{ID: 1, ProductID: 1, UnitID: &pack, Quantity: decimal.NewFromInt(2), RecordedAt: at},
		{ID: 2, ProductID: 1, Quantity: decimal.NewFromInt(1), RecordedAt: at},
	}
	adjs := []Adjustment{{ID: 3, ProductID: 1, Change: decimal.NewFromInt(-5), AdjustedAt: at}}
	if got := Reproject(1, lines, adjs, tbl); !got.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("Reproject = %s, want 8", got)
	}
}
