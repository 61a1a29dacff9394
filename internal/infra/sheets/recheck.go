// Package sheets exports the stale list to xlsx and reads the counted
// workbook back as an edit session.
package sheets

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/stock"
)

const (
	colProductID = iota
	colProductName
	colCategoryID
	colCategoryName
	colQuantity
	colMode
	colBucket
	colStatus
	colVersion
	colCounted
	colNewStatus
	numCols
)

var header = []any{
	"product_id",
	"product_name",
	"category_id",
	"category_name",
	"quantity",
	"mode",
	"approx_bucket",
	"status",
	"version",
	"counted",    // filled in by the user
	"new_status", // optional
}

// ExportRecheck writes one row per entry. The first nine columns carry the
// state the recheck started from; counted and new_status are left empty.
func ExportRecheck(entries []stock.Entry, categoryNames map[int64]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	items := reconcile.FromEntries(entries)
	for i, it := range items {
		var catID, catName any = "", ""
		if it.CategoryID != nil {
			catID, catName = *it.CategoryID, categoryNames[*it.CategoryID]
		}
		row := []any{
			it.ProductID,
			entries[i].Product.Name,
			catID,
			catName,
			it.Quantity.String(),
			string(it.Mode),
			string(it.Bucket),
			string(it.Status),
			it.Version,
			"",
			"",
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "B", "B", 32)

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportRecheck reads a workbook produced by ExportRecheck. It returns the
// pre-edit set as exported and the post-edit set with the user's counts
// applied; a row with empty counted and new_status cells is unchanged.
func ImportRecheck(data []byte) (pre, post []reconcile.Item, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errs.Validation("file", "not a readable xlsx workbook")
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, errs.Validation("file", "cannot read sheet %q", sheet)
	}
	if len(rows) < 1 || len(rows[0]) < colCounted {
		return nil, nil, errs.Validation("file", "expected at least %d columns", colCounted)
	}

	for i := 1; i < len(rows); i++ {
		row := make([]string, numCols)
		copy(row, rows[i])
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
		}
		if row[colProductID] == "" {
			continue
		}
		it, err := parseRow(row)
		if err != nil {
			return nil, nil, errs.Validation("file", "row %d: %v", i+1, err)
		}
		pre = append(pre, it)

		edited := it
		if row[colCounted] != "" {
			q, err := decimal.NewFromString(strings.ReplaceAll(row[colCounted], ",", "."))
			if err != nil {
				return nil, nil, errs.Validation("counted", "row %d: %q is not a number", i+1, row[colCounted])
			}
			// a count is exact by definition
			edited.Quantity = q
			edited.Mode, edited.Bucket = stock.ModeExact, stock.BucketNone
		}
		if row[colNewStatus] != "" {
			edited.Status = stock.Status(strings.ToLower(row[colNewStatus]))
		}
		post = append(post, edited)
	}
	return pre, post, nil
}

func parseRow(row []string) (reconcile.Item, error) {
	var it reconcile.Item
	id, err := strconv.ParseInt(row[colProductID], 10, 64)
	if err != nil {
		return it, fmt.Errorf("bad product_id %q", row[colProductID])
	}
	it.ProductID = id
	if row[colCategoryID] != "" {
		cat, err := strconv.ParseInt(row[colCategoryID], 10, 64)
		if err != nil {
			return it, fmt.Errorf("bad category_id %q", row[colCategoryID])
		}
		it.CategoryID = &cat
	}
	if it.Quantity, err = decimal.NewFromString(row[colQuantity]); err != nil {
		return it, fmt.Errorf("bad quantity %q", row[colQuantity])
	}
	it.Mode = stock.Mode(row[colMode])
	it.Bucket = stock.Bucket(row[colBucket])
	it.Status = stock.Status(row[colStatus])
	if it.Version, err = strconv.ParseInt(row[colVersion], 10, 64); err != nil {
		return it, fmt.Errorf("bad version %q", row[colVersion])
	}
	return it, nil
}
