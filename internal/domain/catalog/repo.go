package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/homestock/internal/domain/errs"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const (
	tableCategories = "categories"
	tableStores     = "stores"
)

func isFK(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

/* Categories and stores */

func (r *Repo) createRanked(ctx context.Context, table, name string) (*Ranked, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO `+table+` (name, sort_order)
		SELECT $1::text, COALESCE(MAX(sort_order), 0) + 1 FROM `+table+`
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, sort_order, created_at
	`, name)
	var c Ranked
	err = row.Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// already exists
		return r.rankedByName(ctx, table, name)
	}
	if err != nil {
		return nil, errs.Storage("create "+table, err)
	}
	return &c, nil
}

func (r *Repo) rankedByName(ctx context.Context, table, name string) (*Ranked, error) {
	var c Ranked
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, sort_order, created_at FROM `+table+` WHERE name = $1
	`, name).Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if err != nil {
		return nil, errs.Storage("get "+table, err)
	}
	return &c, nil
}

func (r *Repo) listRanked(ctx context.Context, table string) ([]Ranked, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, sort_order, created_at FROM `+table+` ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, errs.Storage("list "+table, err)
	}
	defer rows.Close()
	var out []Ranked
	for rows.Next() {
		var c Ranked
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, errs.Storage("list "+table, err)
		}
		out = append(out, c)
	}
	return out, errs.Storage("list "+table, rows.Err())
}

func (r *Repo) renameRanked(ctx context.Context, table, entity string, id int64, name string) (*Ranked, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	var c Ranked
	err = r.pool.QueryRow(ctx, `
		UPDATE `+table+` SET name = $2 WHERE id = $1
		RETURNING id, name, sort_order, created_at
	`, id, name).Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, errs.Validation("name", "%q already exists", name)
	}
	if err != nil {
		return nil, errs.Storage("rename "+entity, err)
	}
	return &c, nil
}

// reorderRanked rewrites sort_order of the whole table to follow ids.
func (r *Repo) reorderRanked(ctx context.Context, table string, ids []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT id FROM `+table+` ORDER BY id FOR UPDATE`)
	if err != nil {
		return errs.Storage("reorder "+table, err)
	}
	current, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return errs.Storage("reorder "+table, err)
	}
	orders, err := Reindex(current, ids)
	if err != nil {
		return err
	}

	b := &pgx.Batch{}
	for _, id := range ids {
		b.Queue(`UPDATE `+table+` SET sort_order = $2 WHERE id = $1`, id, orders[id])
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return errs.Storage("reorder "+table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}

func (r *Repo) CreateCategory(ctx context.Context, name string) (*Category, error) {
	return r.createRanked(ctx, tableCategories, name)
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	return r.listRanked(ctx, tableCategories)
}

func (r *Repo) RenameCategory(ctx context.Context, id int64, name string) (*Category, error) {
	return r.renameRanked(ctx, tableCategories, "category", id, name)
}

func (r *Repo) ReorderCategories(ctx context.Context, ids []int64) error {
	return r.reorderRanked(ctx, tableCategories, ids)
}

// DeleteCategory removes a category; its products become uncategorized.
func (r *Repo) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE products SET category_id = NULL, updated_at = now() WHERE category_id = $1`, id); err != nil {
		return errs.Storage("uncategorize products", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return errs.Storage("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("category", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}

func (r *Repo) CreateStore(ctx context.Context, name string) (*Store, error) {
	return r.createRanked(ctx, tableStores, name)
}

func (r *Repo) ListStores(ctx context.Context) ([]Store, error) {
	return r.listRanked(ctx, tableStores)
}

func (r *Repo) RenameStore(ctx context.Context, id int64, name string) (*Store, error) {
	return r.renameRanked(ctx, tableStores, "store", id, name)
}

func (r *Repo) ReorderStores(ctx context.Context, ids []int64) error {
	return r.reorderRanked(ctx, tableStores, ids)
}

// DeleteStore removes a store; purchases made there keep their lines and
// lose only the store reference.
func (r *Repo) DeleteStore(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE purchases SET store_id = NULL WHERE store_id = $1`, id); err != nil {
		return errs.Storage("detach purchases", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return errs.Storage("delete store", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("store", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}

/* Tags */

func (r *Repo) CreateTag(ctx context.Context, name, color string) (*Tag, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if color, err = cleanColor(color); err != nil {
		return nil, err
	}
	var t Tag
	err = r.pool.QueryRow(ctx, `
		INSERT INTO tags (name, color) VALUES ($1,$2)
		ON CONFLICT (name) DO UPDATE SET color = EXCLUDED.color
		RETURNING id, name, color
	`, name, color).Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		return nil, errs.Storage("create tag", err)
	}
	return &t, nil
}

func (r *Repo) UpdateTag(ctx context.Context, id int64, name, color string) (*Tag, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if color, err = cleanColor(color); err != nil {
		return nil, err
	}
	var t Tag
	err = r.pool.QueryRow(ctx, `
		UPDATE tags SET name = $2, color = $3 WHERE id = $1
		RETURNING id, name, color
	`, id, name, color).Scan(&t.ID, &t.Name, &t.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("tag", id)
	}
	if err != nil {
		return nil, errs.Storage("update tag", err)
	}
	return &t, nil
}

func (r *Repo) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, errs.Storage("list tags", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Tag])
	return out, errs.Storage("list tags", err)
}

func (r *Repo) DeleteTag(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return errs.Storage("delete tag", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("tag", id)
	}
	return nil
}

// SetProductTags replaces the tag set of a product.
func (r *Repo) SetProductTags(ctx context.Context, productID int64, tagIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM product_tags WHERE product_id = $1`, productID); err != nil {
		return errs.Storage("clear product tags", err)
	}
	if len(tagIDs) > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_tags (product_id, tag_id)
			SELECT $1, t FROM unnest($2::bigint[]) AS t
			ON CONFLICT DO NOTHING
		`, productID, tagIDs)
		if isFK(err) {
			return errs.Validation("tag_ids", "unknown product or tag")
		}
		if err != nil {
			return errs.Storage("set product tags", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}

/* Products */

const productColumns = `id, name, category_id, memo, url, archived, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Memo, &p.URL, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisterProduct creates a product together with its initial snapshot:
// quantity 0, exact, unchecked.
func (r *Repo) RegisterProduct(ctx context.Context, in ProductInput) (*Product, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `
		INSERT INTO products (name, category_id, memo, url)
		VALUES ($1,$2,$3,$4)
		RETURNING `+productColumns, name, in.CategoryID, in.Memo, in.URL))
	if isFK(err) && in.CategoryID != nil {
		return nil, errs.NotFound("category", *in.CategoryID)
	}
	if err != nil {
		return nil, errs.Storage("insert product", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock (product_id, quantity, mode, status, last_updated, version)
		VALUES ($1, 0, 'exact', 'unchecked', $2, 1)
	`, p.ID, time.Now()); err != nil {
		return nil, errs.Storage("insert snapshot", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Storage("commit", err)
	}
	return p, nil
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("product", id)
	}
	if err != nil {
		return nil, errs.Storage("get product", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.color
		FROM product_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.product_id = $1 ORDER BY t.name
	`, id)
	if err != nil {
		return nil, errs.Storage("product tags", err)
	}
	p.Tags, err = pgx.CollectRows(rows, pgx.RowToStructByPos[Tag])
	if err != nil {
		return nil, errs.Storage("product tags", err)
	}
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context, includeArchived bool) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE $1 OR NOT archived
		ORDER BY name, id
	`, includeArchived)
	if err != nil {
		return nil, errs.Storage("list products", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errs.Storage("list products", err)
		}
		out = append(out, *p)
	}
	return out, errs.Storage("list products", rows.Err())
}

func (r *Repo) updateProduct(ctx context.Context, id int64, set string, arg any) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `
		UPDATE products SET `+set+` = $2, updated_at = now() WHERE id = $1
		RETURNING `+productColumns, id, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("product", id)
	}
	if err != nil {
		return nil, errs.Storage("update product "+set, err)
	}
	return p, nil
}

func (r *Repo) RenameProduct(ctx context.Context, id int64, name string) (*Product, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return r.updateProduct(ctx, id, "name", name)
}

func (r *Repo) SetProductCategory(ctx context.Context, id int64, categoryID *int64) (*Product, error) {
	p, err := r.updateProduct(ctx, id, "category_id", categoryID)
	if isFK(err) && categoryID != nil {
		return nil, errs.NotFound("category", *categoryID)
	}
	return p, err
}

func (r *Repo) SetProductMemo(ctx context.Context, id int64, memo string) (*Product, error) {
	return r.updateProduct(ctx, id, "memo", memo)
}

func (r *Repo) SetProductURL(ctx context.Context, id int64, url string) (*Product, error) {
	return r.updateProduct(ctx, id, "url", url)
}

func (r *Repo) SetProductArchived(ctx context.Context, id int64, archived bool) (*Product, error) {
	return r.updateProduct(ctx, id, "archived", archived)
}

// DeleteProduct removes a product with its whole ledger, conversions, tag
// links and snapshot in one transaction.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, q := range []string{
		`DELETE FROM purchase_lines WHERE product_id = $1`,
		`DELETE FROM stock_adjustments WHERE product_id = $1`,
		`DELETE FROM product_units WHERE product_id = $1`,
		`DELETE FROM product_tags WHERE product_id = $1`,
		`DELETE FROM stock WHERE product_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return errs.Storage("delete product ledger", err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return errs.Storage("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("product", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Storage("commit", err)
	}
	return nil
}
