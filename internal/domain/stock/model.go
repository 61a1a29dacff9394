package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeExact       Mode = "exact"
	ModeApproximate Mode = "approximate"
)

// Bucket is the coarse quantity used in approximate mode. Empty means null.
type Bucket string

const (
	BucketNone Bucket = ""
	BucketFew  Bucket = "few"
	BucketMany Bucket = "many"
)

type Status string

const (
	StatusUnchecked  Status = "unchecked"
	StatusSufficient Status = "sufficient"
	StatusNeeded     Status = "needed"
)

type Reason string

const (
	ReasonConsumed     Reason = "consumed"
	ReasonAudit        Reason = "audit"
	ReasonManualUpdate Reason = "manual_update"
	ReasonBatchEdit    Reason = "batch_edit"
	ReasonInitialSetup Reason = "initial_setup"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonConsumed, ReasonAudit, ReasonManualUpdate, ReasonBatchEdit, ReasonInitialSetup:
		return true
	}
	return false
}

// Snapshot is the cached current state of one product, derived from its ledger.
type Snapshot struct {
	ProductID   int64           `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"` // base units, never negative
	Mode        Mode            `json:"mode"`
	Bucket      Bucket          `json:"approx_bucket,omitempty"`
	Status      Status          `json:"status"`
	LastUpdated *time.Time      `json:"last_updated"`
	Version     int64           `json:"version"`
}

// NewSnapshot is the state a product starts with.
func NewSnapshot(productID int64, at time.Time) Snapshot {
	return Snapshot{
		ProductID:   productID,
		Quantity:    decimal.Zero,
		Mode:        ModeExact,
		Status:      StatusUnchecked,
		LastUpdated: &at,
		Version:     1,
	}
}

// Purchase is the header of one shopping trip.
type Purchase struct {
	ID          int64           `json:"id"`
	StoreID     *int64          `json:"store_id"`
	PurchasedAt time.Time       `json:"purchased_at"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Lines       []PurchaseLine  `json:"lines"`
}

// PurchaseLine is an additive ledger event. Quantity is in UnitID, not in base units.
type PurchaseLine struct {
	ID         int64           `json:"id"`
	PurchaseID *int64          `json:"purchase_id"`
	ProductID  int64           `json:"product_id"`
	UnitID     *int64          `json:"unit_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineCost   decimal.Decimal `json:"line_cost"`
	Annotation string          `json:"annotation"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Adjustment is a signed ledger event in base units. Change is the requested
// delta, not the clamped effect on the snapshot.
type Adjustment struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	Change     decimal.Decimal `json:"change_amount"`
	Reason     Reason          `json:"reason"`
	BatchID    *uuid.UUID      `json:"batch_id,omitempty"`
	AdjustedAt time.Time       `json:"adjusted_at"`
}

// ProductRef is what the ledger needs to know about a product.
type ProductRef struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID *int64 `json:"category_id"`
	Archived   bool   `json:"archived"`
}

// Entry joins a product with its snapshot for listings and scans.
type Entry struct {
	Product  ProductRef `json:"product"`
	Snapshot *Snapshot  `json:"stock"` // nil when the product never got a snapshot
}

// PricePoint is one row of a product's price history.
type PricePoint struct {
	LineID       int64           `json:"line_id"`
	PurchasedAt  time.Time       `json:"purchased_at"`
	StoreName    string          `json:"store"`
	UnitID       *int64          `json:"unit_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	PricePerBase decimal.Decimal `json:"price_per_base"`
	Annotation   string          `json:"annotation"`
}

// Drift compares a snapshot with its reprojection from the ledger.
type Drift struct {
	ProductID int64           `json:"product_id"`
	Snapshot  decimal.Decimal `json:"snapshot"`
	Ledger    decimal.Decimal `json:"ledger"`
}

func (d Drift) InSync() bool { return d.Snapshot.Equal(d.Ledger) }
