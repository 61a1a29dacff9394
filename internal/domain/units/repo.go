package units

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

/* Units */

func (r *Repo) CreateUnit(ctx context.Context, name string) (*Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("name", "must not be empty")
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO units (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`, name)
	var u Unit
	err := row.Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// already there
		return r.getUnitByName(ctx, name)
	}
	if err != nil {
		return nil, errs.Storage("create unit", err)
	}
	return &u, nil
}

func (r *Repo) getUnitByName(ctx context.Context, name string) (*Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM units WHERE name = $1`, name).
		Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, errs.Storage("get unit", err)
	}
	return &u, nil
}

func (r *Repo) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM units ORDER BY name`)
	if err != nil {
		return nil, errs.Storage("list units", err)
	}
	defer rows.Close()
	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, errs.Storage("list units", err)
		}
		out = append(out, u)
	}
	return out, errs.Storage("list units", rows.Err())
}

/* Conversions */

// ListConversions returns the conversions of the given products, or of all
// products when none are given.
func (r *Repo) ListConversions(ctx context.Context, productIDs ...int64) ([]Conversion, error) {
	q := `
		SELECT pu.id, pu.product_id, pu.unit_id, u.name, pu.factor_to_base, pu.is_default
		FROM product_units pu
		JOIN units u ON u.id = pu.unit_id
	`
	args := []any{}
	if len(productIDs) > 0 {
		q += ` WHERE pu.product_id = ANY($1)`
		args = append(args, productIDs)
	}
	q += ` ORDER BY pu.product_id, pu.is_default DESC, pu.factor_to_base`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Storage("list conversions", err)
	}
	defer rows.Close()
	var out []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.ID, &c.ProductID, &c.UnitID, &c.UnitName, &c.FactorToBase, &c.IsDefault); err != nil {
			return nil, errs.Storage("list conversions", err)
		}
		out = append(out, c)
	}
	return out, errs.Storage("list conversions", rows.Err())
}

// Table loads the conversion table of the given products.
func (r *Repo) Table(ctx context.Context, productIDs ...int64) (*Table, error) {
	convs, err := r.ListConversions(ctx, productIDs...)
	if err != nil {
		return nil, err
	}
	return NewTable(convs...), nil
}

// ReplaceConversions swaps the conversion set of a product. A unit already
// referenced by a purchase line must keep its factor and cannot be removed,
// otherwise historical normalization would change. A line unit that never had
// a row was converted at 1 and can only be added at 1.
func (r *Repo) ReplaceConversions(ctx context.Context, productID int64, convs []Conversion) error {
	for i := range convs {
		convs[i].ProductID = productID
	}
	if err := ValidateSet(convs); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT pu.unit_id, pu.factor_to_base
		FROM product_units pu
		WHERE pu.product_id = $1
		  AND EXISTS (
			SELECT 1 FROM purchase_lines pl
			WHERE pl.product_id = pu.product_id AND pl.unit_id = pu.unit_id
		  )
		FOR UPDATE
	`, productID)
	if err != nil {
		return errs.Storage("load referenced conversions", err)
	}
	mapped := map[int64]decimal.Decimal{}
	for rows.Next() {
		var (
			unitID int64
			factor decimal.Decimal
		)
		if err := rows.Scan(&unitID, &factor); err != nil {
			rows.Close()
			return errs.Storage("load referenced conversions", err)
		}
		mapped[unitID] = factor
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errs.Storage("load referenced conversions", err)
	}

	// lines bought in a unit with no row were converted at factor 1
	rows, err = tx.Query(ctx, `
		SELECT DISTINCT pl.unit_id
		FROM purchase_lines pl
		WHERE pl.product_id = $1 AND pl.unit_id IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM product_units pu
			WHERE pu.product_id = pl.product_id AND pu.unit_id = pl.unit_id
		  )
	`, productID)
	if err != nil {
		return errs.Storage("load unmapped units", err)
	}
	unmapped, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return errs.Storage("load unmapped units", err)
	}

	if err := CheckReferenced(mapped, unmapped, convs); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_units WHERE product_id = $1`, productID); err != nil {
		return errs.Storage("delete conversions", err)
	}
	for _, c := range convs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_units (product_id, unit_id, factor_to_base, is_default)
			VALUES ($1,$2,$3,$4)
		`, productID, c.UnitID, c.FactorToBase, c.IsDefault); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return errs.NotFound("unit", c.UnitID)
			}
			return errs.Storage("insert conversion", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}
