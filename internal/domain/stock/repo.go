package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/units"
)

// Repo is the PostgreSQL Store.
type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}

func (r *Repo) Entries(ctx context.Context, includeArchived bool) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.category_id, p.archived,
		       s.product_id IS NOT NULL, s.quantity, s.mode, s.approx_bucket, s.status, s.last_updated, s.version
		FROM products p
		LEFT JOIN stock s ON s.product_id = p.id
		WHERE $1 OR NOT p.archived
		ORDER BY p.name, p.id
	`, includeArchived)
	if err != nil {
		return nil, errs.Storage("list entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			hasSnap bool
			qty     decimal.NullDecimal
			mode    *string
			bucket  *string
			status  *string
			last    *time.Time
			version *int64
		)
		if err := rows.Scan(&e.Product.ID, &e.Product.Name, &e.Product.CategoryID, &e.Product.Archived,
			&hasSnap, &qty, &mode, &bucket, &status, &last, &version); err != nil {
			return nil, errs.Storage("list entries", err)
		}
		if hasSnap {
			s := Snapshot{ProductID: e.Product.ID, Quantity: qty.Decimal, LastUpdated: last}
			if mode != nil {
				s.Mode = Mode(*mode)
			}
			if bucket != nil {
				s.Bucket = Bucket(*bucket)
			}
			if status != nil {
				s.Status = Status(*status)
			}
			if version != nil {
				s.Version = *version
			}
			e.Snapshot = &s
		}
		out = append(out, e)
	}
	return out, errs.Storage("list entries", rows.Err())
}

func (r *Repo) PriceHistory(ctx context.Context, productID int64) ([]PricePoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pl.id, COALESCE(pu.purchased_at, pl.recorded_at), COALESCE(st.name, ''),
		       pl.unit_id, pl.quantity, pl.unit_price, pl.annotation
		FROM purchase_lines pl
		LEFT JOIN purchases pu ON pu.id = pl.purchase_id
		LEFT JOIN stores st ON st.id = pu.store_id
		WHERE pl.product_id = $1
		ORDER BY 2 DESC, pl.id DESC
	`, productID)
	if err != nil {
		return nil, errs.Storage("price history", err)
	}
	defer rows.Close()
	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.LineID, &p.PurchasedAt, &p.StoreName, &p.UnitID, &p.Quantity, &p.UnitPrice, &p.Annotation); err != nil {
			return nil, errs.Storage("price history", err)
		}
		out = append(out, p)
	}
	return out, errs.Storage("price history", rows.Err())
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Product(ctx context.Context, productID int64) (*ProductRef, error) {
	var p ProductRef
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, category_id, archived FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.CategoryID, &p.Archived)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage("get product", err)
	}
	return &p, nil
}

func (t *pgTx) Conversions(ctx context.Context, productIDs ...int64) ([]units.Conversion, error) {
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
	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Storage("load conversions", err)
	}
	defer rows.Close()
	var out []units.Conversion
	for rows.Next() {
		var c units.Conversion
		if err := rows.Scan(&c.ID, &c.ProductID, &c.UnitID, &c.UnitName, &c.FactorToBase, &c.IsDefault); err != nil {
			return nil, errs.Storage("load conversions", err)
		}
		out = append(out, c)
	}
	return out, errs.Storage("load conversions", rows.Err())
}

func (t *pgTx) Snapshot(ctx context.Context, productID int64) (*Snapshot, error) {
	var (
		s      Snapshot
		mode   string
		bucket *string
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT product_id, quantity, mode, approx_bucket, status, last_updated, version
		FROM stock WHERE product_id = $1
		FOR UPDATE
	`, productID).Scan(&s.ProductID, &s.Quantity, &mode, &bucket, &status, &s.LastUpdated, &s.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage("lock snapshot", err)
	}
	s.Mode, s.Status = Mode(mode), Status(status)
	if bucket != nil {
		s.Bucket = Bucket(*bucket)
	}
	return &s, nil
}

func nullBucket(b Bucket) *string {
	if b == BucketNone {
		return nil
	}
	v := string(b)
	return &v
}

func (t *pgTx) InsertSnapshot(ctx context.Context, s Snapshot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock (product_id, quantity, mode, approx_bucket, status, last_updated, version)
		VALUES ($1,$2,$3,$4,$5,$6,1)
	`, s.ProductID, s.Quantity, string(s.Mode), nullBucket(s.Bucket), string(s.Status), s.LastUpdated)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// someone created it after our read
		return &errs.ConflictError{ProductIDs: []int64{s.ProductID}}
	}
	return errs.Storage("insert snapshot", err)
}

func (t *pgTx) UpdateSnapshots(ctx context.Context, snaps []Snapshot) ([]int64, error) {
	if len(snaps) == 0 {
		return nil, nil
	}
	b := &pgx.Batch{}
	for _, s := range snaps {
		b.Queue(`
			UPDATE stock
			SET quantity = $2, mode = $3, approx_bucket = $4, status = $5, last_updated = $6,
			    version = version + 1
			WHERE product_id = $1 AND version = $7
		`, s.ProductID, s.Quantity, string(s.Mode), nullBucket(s.Bucket), string(s.Status), s.LastUpdated, s.Version)
	}
	br := t.tx.SendBatch(ctx, b)
	defer br.Close()

	var conflicts []int64
	for _, s := range snaps {
		tag, err := br.Exec()
		if err != nil {
			return nil, errs.Storage("update snapshots", err)
		}
		if tag.RowsAffected() == 0 {
			conflicts = append(conflicts, s.ProductID)
		}
	}
	return conflicts, nil
}

func (t *pgTx) TouchSnapshots(ctx context.Context, productIDs []int64, at time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO stock (product_id, last_updated)
		SELECT id, $2 FROM products WHERE id = ANY($1)
		ON CONFLICT (product_id) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`, productIDs, at)
	if err != nil {
		return 0, errs.Storage("touch snapshots", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchases (store_id, purchased_at, total_cost)
		VALUES ($1,$2,$3)
		RETURNING id
	`, p.StoreID, p.PurchasedAt, p.TotalCost).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" && p.StoreID != nil {
		return 0, errs.NotFound("store", *p.StoreID)
	}
	if err != nil {
		return 0, errs.Storage("insert purchase", err)
	}
	return id, nil
}

func (t *pgTx) InsertPurchaseLine(ctx context.Context, l PurchaseLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_lines (purchase_id, product_id, unit_id, quantity, unit_price, line_cost, annotation, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, l.PurchaseID, l.ProductID, l.UnitID, l.Quantity, l.UnitPrice, l.LineCost, l.Annotation, l.RecordedAt).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" && l.UnitID != nil {
		return 0, errs.NotFound("unit", *l.UnitID)
	}
	if err != nil {
		return 0, errs.Storage("insert purchase line", err)
	}
	return id, nil
}

const lineColumns = `id, purchase_id, product_id, unit_id, quantity, unit_price, line_cost, annotation, recorded_at`

func scanLine(row pgx.Row) (PurchaseLine, error) {
	var l PurchaseLine
	err := row.Scan(&l.ID, &l.PurchaseID, &l.ProductID, &l.UnitID, &l.Quantity, &l.UnitPrice, &l.LineCost, &l.Annotation, &l.RecordedAt)
	return l, err
}

func (t *pgTx) PurchaseLine(ctx context.Context, lineID int64) (*PurchaseLine, error) {
	l, err := scanLine(t.tx.QueryRow(ctx, `SELECT `+lineColumns+` FROM purchase_lines WHERE id = $1 FOR UPDATE`, lineID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage("get purchase line", err)
	}
	return &l, nil
}

func (t *pgTx) UpdatePurchaseLineAnnotation(ctx context.Context, lineID int64, annotation string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_lines SET annotation = $2 WHERE id = $1`, lineID, annotation)
	if err != nil {
		return 0, errs.Storage("annotate purchase line", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeletePurchaseLine(ctx context.Context, lineID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_lines WHERE id = $1`, lineID)
	if err != nil {
		return 0, errs.Storage("delete purchase line", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) PurchaseLines(ctx context.Context, productID int64) ([]PurchaseLine, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+lineColumns+` FROM purchase_lines WHERE product_id = $1 ORDER BY recorded_at, id`, productID)
	if err != nil {
		return nil, errs.Storage("list purchase lines", err)
	}
	defer rows.Close()
	var out []PurchaseLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, errs.Storage("list purchase lines", err)
		}
		out = append(out, l)
	}
	return out, errs.Storage("list purchase lines", rows.Err())
}

// InsertAdjustments sends all rows in one batch round trip.
func (t *pgTx) InsertAdjustments(ctx context.Context, adjs []Adjustment) error {
	if len(adjs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, a := range adjs {
		b.Queue(`
			INSERT INTO stock_adjustments (product_id, change_amount, reason, batch_id, adjusted_at)
			VALUES ($1,$2,$3,$4,$5)
		`, a.ProductID, a.Change, string(a.Reason), a.BatchID, a.AdjustedAt)
	}
	br := t.tx.SendBatch(ctx, b)
	defer br.Close()
	for _, a := range adjs {
		if _, err := br.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return errs.NotFound("product", a.ProductID)
			}
			return errs.Storage("insert adjustments", err)
		}
	}
	return nil
}

func (t *pgTx) Adjustments(ctx context.Context, productID int64) ([]Adjustment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, product_id, change_amount, reason, batch_id, adjusted_at
		FROM stock_adjustments WHERE product_id = $1
		ORDER BY adjusted_at, id
	`, productID)
	if err != nil {
		return nil, errs.Storage("list adjustments", err)
	}
	defer rows.Close()
	var out []Adjustment
	for rows.Next() {
		var (
			a      Adjustment
			reason string
		)
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Change, &reason, &a.BatchID, &a.AdjustedAt); err != nil {
			return nil, errs.Storage("list adjustments", err)
		}
		a.Reason = Reason(reason)
		out = append(out, a)
	}
	return out, errs.Storage("list adjustments", rows.Err())
}

func (t *pgTx) UpdateProductCategory(ctx context.Context, productID int64, categoryID *int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET category_id = $2, updated_at = now() WHERE id = $1
	`, productID, categoryID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" && categoryID != nil {
		return 0, errs.NotFound("category", *categoryID)
	}
	if err != nil {
		return 0, errs.Storage("update product category", err)
	}
	return tag.RowsAffected(), nil
}
