package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/stock"
)

type adjustmentRequest struct {
	ChangeAmount decimal.Decimal `json:"change_amount"`
	Reason       stock.Reason    `json:"reason" validate:"required,oneof=consumed audit manual_update initial_setup"`
}

type quantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Mode     stock.Mode      `json:"mode" validate:"omitempty,oneof=exact approximate"`
	Bucket   stock.Bucket    `json:"approx_bucket" validate:"omitempty,oneof=few many"`
}

type modeRequest struct {
	Mode   stock.Mode   `json:"mode" validate:"required,oneof=exact approximate"`
	Bucket stock.Bucket `json:"approx_bucket" validate:"omitempty,oneof=few many"`
}

type lineRequest struct {
	ProductID  int64           `json:"product_id" validate:"required,gt=0"`
	UnitID     *int64          `json:"unit_id" validate:"omitempty,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Annotation string          `json:"annotation" validate:"max=500"`
}

func (l lineRequest) input() stock.PurchaseInput {
	return stock.PurchaseInput{
		ProductID:  l.ProductID,
		UnitID:     l.UnitID,
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice,
		Annotation: l.Annotation,
	}
}

type purchaseRequest struct {
	StoreID     *int64        `json:"store_id" validate:"omitempty,gt=0"`
	PurchasedAt time.Time     `json:"purchased_at"`
	Lines       []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type annotationRequest struct {
	Annotation string `json:"annotation" validate:"max=500"`
}

func (a *API) listStock(w http.ResponseWriter, r *http.Request) {
	entries, err := a.ledger.List(r.Context(), queryBool(r, "archived"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) recordAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req adjustmentRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	adj, err := a.ledger.RecordAdjustment(r.Context(), id, req.ChangeAmount, req.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adj)
}

func (a *API) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req quantityRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.ledger.SetQuantity(r.Context(), id, req.Quantity, req.Mode, req.Bucket)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) setMode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req modeRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.ledger.SetMode(r.Context(), id, req.Mode, req.Bucket)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) advanceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.ledger.AdvanceStatus(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) priceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	points, err := a.ledger.PriceHistory(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

type driftResponse struct {
	stock.Drift
	InSync bool `json:"in_sync"`
}

func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.ledger.Verify(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, driftResponse{Drift: d, InSync: d.InSync()})
}

func (a *API) repair(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.ledger.Repair(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, driftResponse{Drift: d, InSync: d.InSync()})
}

/* Purchases */

func (a *API) submitPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	lines := make([]stock.PurchaseInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.input())
	}
	p, err := a.ledger.SubmitPurchase(r.Context(), req.StoreID, req.PurchasedAt, lines)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) recordPurchaseLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	line, err := a.ledger.RecordPurchase(r.Context(), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (a *API) annotateLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req annotationRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.ledger.UpdateLineAnnotation(r.Context(), id, req.Annotation); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.ledger.DeletePurchaseLine(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
