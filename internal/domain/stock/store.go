package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/units"
)

// Store is the transactional relational store behind the ledger. Every
// ledger operation runs inside one InTx call: either all of its statements
// commit or none do.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Entries lists products with their snapshots.
	Entries(ctx context.Context, includeArchived bool) ([]Entry, error)
	// PriceHistory lists purchase lines of a product, newest first.
	PriceHistory(ctx context.Context, productID int64) ([]PricePoint, error)
}

// Tx is the set of statements available inside a transaction.
type Tx interface {
	Product(ctx context.Context, productID int64) (*ProductRef, error)
	Conversions(ctx context.Context, productIDs ...int64) ([]units.Conversion, error)

	// Snapshot locks and returns the snapshot row, nil when it does not exist.
	Snapshot(ctx context.Context, productID int64) (*Snapshot, error)
	InsertSnapshot(ctx context.Context, s Snapshot) error
	// UpdateSnapshots writes quantity, mode, bucket, status and last_updated
	// of every row whose stored version still equals s.Version, bumping the
	// version. It returns the product ids whose version did not match.
	UpdateSnapshots(ctx context.Context, snaps []Snapshot) (conflicts []int64, err error)
	// TouchSnapshots sets last_updated only, creating a fresh snapshot for
	// products that have none. Unknown product ids are ignored.
	TouchSnapshots(ctx context.Context, productIDs []int64, at time.Time) (int64, error)

	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertPurchaseLine(ctx context.Context, l PurchaseLine) (int64, error)
	PurchaseLine(ctx context.Context, lineID int64) (*PurchaseLine, error)
	UpdatePurchaseLineAnnotation(ctx context.Context, lineID int64, annotation string) (int64, error)
	DeletePurchaseLine(ctx context.Context, lineID int64) (int64, error)
	PurchaseLines(ctx context.Context, productID int64) ([]PurchaseLine, error)

	// InsertAdjustments appends all events in one statement.
	InsertAdjustments(ctx context.Context, adjs []Adjustment) error
	Adjustments(ctx context.Context, productID int64) ([]Adjustment, error)

	UpdateProductCategory(ctx context.Context, productID int64, categoryID *int64) (int64, error)
}

// lineBase is the base-unit quantity a purchase line contributed, at the
// scale the snapshot column stores.
func lineBase(tbl *units.Table, l PurchaseLine) decimal.Decimal {
	return tbl.ToBase(l.Quantity, l.ProductID, l.UnitID).Round(QuantityScale)
}
