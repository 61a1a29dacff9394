package units

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit is a named purchasable unit ("item", "pack", "case").
type Unit struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversion maps one unit of a product to its base unit.
// FactorToBase of the base unit itself is 1.
type Conversion struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	UnitID       int64           `json:"unit_id"`
	UnitName     string          `json:"unit_name"`
	FactorToBase decimal.Decimal `json:"factor_to_base"`
	IsDefault    bool            `json:"is_default"`
}
