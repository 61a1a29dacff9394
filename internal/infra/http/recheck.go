package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/infra/sheets"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type touchRequest struct {
	ProductIDs []int64 `json:"product_ids" validate:"required,min=1,dive,gt=0"`
}

type batchRequest struct {
	Pre  []reconcile.Item `json:"pre" validate:"dive"`
	Post []reconcile.Item `json:"post" validate:"dive"`
}

type planResponse struct {
	BatchID     *uuid.UUID         `json:"batch_id,omitempty"`
	Written     []int64            `json:"written"`
	Skipped     []int64            `json:"skipped"`
	Adjustments []stock.Adjustment `json:"adjustments"`
	Touched     int64              `json:"touched"`
}

func newPlanResponse(p *reconcile.Plan, touched int64) planResponse {
	out := planResponse{
		Written:     p.ProductIDs(),
		Skipped:     p.Skipped,
		Adjustments: p.Adjustments,
		Touched:     touched,
	}
	if !p.Empty() {
		id := p.BatchID
		out.BatchID = &id
	}
	if out.Written == nil {
		out.Written = []int64{}
	}
	if out.Skipped == nil {
		out.Skipped = []int64{}
	}
	if out.Adjustments == nil {
		out.Adjustments = []stock.Adjustment{}
	}
	return out
}

func (a *API) stale(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if days <= 0 {
		days = a.recheck.HorizonDays()
	}
	entries, err := a.ledger.Stale(r.Context(), days)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) touch(w http.ResponseWriter, r *http.Request) {
	var req touchRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	n, err := a.ledger.Touch(r.Context(), req.ProductIDs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"touched": n})
}

// reconcile writes a batch edit without touching the unchanged rows.
func (a *API) reconcile(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	plan, err := a.engine.Reconcile(r.Context(), req.Pre, req.Post)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanResponse(plan, 0))
}

func (a *API) startRecheck(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sess, err := a.recheck.Start(r.Context(), days)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) completeRecheck(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.recheck.Complete(r.Context(), req.Pre, req.Post)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanResponse(res.Plan, res.Touched))
}

func (a *API) exportSheet(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sess, err := a.recheck.Start(r.Context(), days)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	cats, err := a.catalog.ListCategories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	data, err := sheets.ExportRecheck(sess.Entries, names)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="recheck_%s.xlsx"`, time.Now().Format("20060102_150405")))
	_, _ = w.Write(data)
}

func (a *API) importSheet(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		a.fail(w, r, errs.Validation("", "read workbook: %v", err))
		return
	}
	pre, post, err := sheets.ImportRecheck(data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.recheck.Complete(r.Context(), pre, post)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanResponse(res.Plan, res.Touched))
}
