package units

import (
	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
)

var one = decimal.NewFromInt(1)

// Table is the lookup of conversion factors: product -> unit -> factor to base.
type Table struct {
	rules map[int64]map[int64]decimal.Decimal
}

func NewTable(convs ...Conversion) *Table {
	t := &Table{rules: make(map[int64]map[int64]decimal.Decimal)}
	for _, c := range convs {
		t.Add(c)
	}
	return t
}

func (t *Table) Add(c Conversion) {
	if t.rules[c.ProductID] == nil {
		t.rules[c.ProductID] = make(map[int64]decimal.Decimal)
	}
	t.rules[c.ProductID][c.UnitID] = c.FactorToBase
}

// FactorToBase returns the factor for unit of product. An unspecified or
// unknown unit yields 1 so a purchase never fails on a missing mapping.
func (t *Table) FactorToBase(productID int64, unitID *int64) decimal.Decimal {
	if t == nil || unitID == nil {
		return one
	}
	if byUnit, ok := t.rules[productID]; ok {
		if f, ok := byUnit[*unitID]; ok {
			return f
		}
	}
	return one
}

// ToBase converts qty expressed in unit into base units.
func (t *Table) ToBase(qty decimal.Decimal, productID int64, unitID *int64) decimal.Decimal {
	return qty.Mul(t.FactorToBase(productID, unitID))
}

// NormalizePrice converts a price for one unit into a price per base unit.
// A zero factor is invalid data and yields 0 instead of dividing by zero.
func (t *Table) NormalizePrice(price decimal.Decimal, productID int64, unitID *int64) decimal.Decimal {
	f := t.FactorToBase(productID, unitID)
	if f.IsZero() {
		return decimal.Zero
	}
	return price.Div(f)
}

// FactorScale is the number of decimal places a stored factor keeps.
const FactorScale = 4

// ValidateSet checks the conversions of one product: positive factors, one
// row per unit, exactly one default, and the default (base) unit at factor 1.
func ValidateSet(convs []Conversion) error {
	if len(convs) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(convs))
	defaults := 0
	for _, c := range convs {
		if !c.FactorToBase.IsPositive() {
			return errs.Validation("factor_to_base", "unit %d: factor must be positive, got %s", c.UnitID, c.FactorToBase)
		}
		if !c.FactorToBase.Equal(c.FactorToBase.Truncate(FactorScale)) {
			return errs.Validation("factor_to_base", "unit %d: at most %d decimal places, got %s", c.UnitID, FactorScale, c.FactorToBase)
		}
		if _, dup := seen[c.UnitID]; dup {
			return errs.Validation("unit_id", "unit %d listed twice", c.UnitID)
		}
		seen[c.UnitID] = struct{}{}
		if c.IsDefault {
			defaults++
			if !c.FactorToBase.Equal(one) {
				return errs.Validation("factor_to_base", "default unit %d must have factor 1, got %s", c.UnitID, c.FactorToBase)
			}
		}
	}
	if defaults != 1 {
		return errs.Validation("is_default", "exactly one default unit required, got %d", defaults)
	}
	return nil
}

// CheckReferenced guards the factors historical purchase lines were
// converted at. mapped holds the current factor of every unit that has a row
// and is used by a line; unmapped lists line units with no row, which were
// converted at 1. A mapped unit must stay with the same factor. An unmapped
// unit may only be added at factor 1.
func CheckReferenced(mapped map[int64]decimal.Decimal, unmapped []int64, next []Conversion) error {
	byUnit := make(map[int64]Conversion, len(next))
	for _, c := range next {
		byUnit[c.UnitID] = c
	}
	for unitID, old := range mapped {
		c, ok := byUnit[unitID]
		if !ok {
			return errs.Validation("unit_id", "unit %d is referenced by purchase lines and cannot be removed", unitID)
		}
		if !c.FactorToBase.Equal(old) {
			return errs.Validation("factor_to_base", "unit %d is referenced by purchase lines; factor %s is immutable", unitID, old)
		}
	}
	for _, unitID := range unmapped {
		if c, ok := byUnit[unitID]; ok && !c.FactorToBase.Equal(one) {
			return errs.Validation("factor_to_base", "unit %d was bought without a conversion; its factor must stay 1", unitID)
		}
	}
	return nil
}
