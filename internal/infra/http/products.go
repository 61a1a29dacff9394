package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/catalog"
	"github.com/Spok95/homestock/internal/domain/units"
)

type productRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	CategoryID *int64 `json:"category_id" validate:"omitempty,gt=0"`
	Memo       string `json:"memo" validate:"max=2000"`
	URL        string `json:"url" validate:"omitempty,url"`
}

type productPatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Memo     *string `json:"memo" validate:"omitempty,max=2000"`
	URL      *string `json:"url"`
	Archived *bool   `json:"archived"`
}

type categoryRequest struct {
	CategoryID *int64 `json:"category_id" validate:"omitempty,gt=0"`
}

type tagsRequest struct {
	TagIDs []int64 `json:"tag_ids" validate:"dive,gt=0"`
}

type conversionRequest struct {
	UnitID       int64           `json:"unit_id" validate:"required,gt=0"`
	FactorToBase decimal.Decimal `json:"factor_to_base"`
	IsDefault    bool            `json:"is_default"`
}

type conversionsRequest struct {
	Units []conversionRequest `json:"units" validate:"required,min=1,dive"`
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := a.catalog.ListProducts(r.Context(), queryBool(r, "archived"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.catalog.RegisterProduct(r.Context(), catalog.ProductInput{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Memo:       req.Memo,
		URL:        req.URL,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.catalog.GetProduct(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updateProduct applies each present field in turn and returns the product
// as of the last write.
func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req productPatch
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	ctx := r.Context()
	var p *catalog.Product
	steps := []func() error{}
	if req.Name != nil {
		steps = append(steps, func() (err error) { p, err = a.catalog.RenameProduct(ctx, id, *req.Name); return })
	}
	if req.Memo != nil {
		steps = append(steps, func() (err error) { p, err = a.catalog.SetProductMemo(ctx, id, *req.Memo); return })
	}
	if req.URL != nil {
		steps = append(steps, func() (err error) { p, err = a.catalog.SetProductURL(ctx, id, *req.URL); return })
	}
	if req.Archived != nil {
		steps = append(steps, func() (err error) { p, err = a.catalog.SetProductArchived(ctx, id, *req.Archived); return })
	}
	if len(steps) == 0 {
		steps = append(steps, func() (err error) { p, err = a.catalog.GetProduct(ctx, id); return })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) setProductCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req categoryRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.catalog.SetProductCategory(r.Context(), id, req.CategoryID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) setProductTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req tagsRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.catalog.SetProductTags(r.Context(), id, req.TagIDs); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.catalog.DeleteProduct(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listConversions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	convs, err := a.units.ListConversions(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (a *API) replaceConversions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req conversionsRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	convs := make([]units.Conversion, 0, len(req.Units))
	for _, c := range req.Units {
		convs = append(convs, units.Conversion{ProductID: id, UnitID: c.UnitID, FactorToBase: c.FactorToBase, IsDefault: c.IsDefault})
	}
	if err := a.units.ReplaceConversions(r.Context(), id, convs); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
