package http

import (
	"context"
	"net/http"

	"github.com/Spok95/homestock/internal/domain/catalog"
)

type nameRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type orderRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type tagRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// rankedOps are the catalog calls behind an ordered lookup list.
type rankedOps interface {
	list(ctx context.Context) ([]catalog.Ranked, error)
	create(ctx context.Context, name string) (*catalog.Ranked, error)
	rename(ctx context.Context, id int64, name string) (*catalog.Ranked, error)
	reorder(ctx context.Context, ids []int64) error
	remove(ctx context.Context, id int64) error
}

type categoryOps struct{ c Catalog }

func (o categoryOps) list(ctx context.Context) ([]catalog.Ranked, error) {
	return o.c.ListCategories(ctx)
}
func (o categoryOps) create(ctx context.Context, name string) (*catalog.Ranked, error) {
	return o.c.CreateCategory(ctx, name)
}
func (o categoryOps) rename(ctx context.Context, id int64, name string) (*catalog.Ranked, error) {
	return o.c.RenameCategory(ctx, id, name)
}
func (o categoryOps) reorder(ctx context.Context, ids []int64) error {
	return o.c.ReorderCategories(ctx, ids)
}
func (o categoryOps) remove(ctx context.Context, id int64) error { return o.c.DeleteCategory(ctx, id) }

type storeOps struct{ c Catalog }

func (o storeOps) list(ctx context.Context) ([]catalog.Ranked, error) {
	return o.c.ListStores(ctx)
}
func (o storeOps) create(ctx context.Context, name string) (*catalog.Ranked, error) {
	return o.c.CreateStore(ctx, name)
}
func (o storeOps) rename(ctx context.Context, id int64, name string) (*catalog.Ranked, error) {
	return o.c.RenameStore(ctx, id, name)
}
func (o storeOps) reorder(ctx context.Context, ids []int64) error {
	return o.c.ReorderStores(ctx, ids)
}
func (o storeOps) remove(ctx context.Context, id int64) error { return o.c.DeleteStore(ctx, id) }

func (a *API) registerRanked(mux *http.ServeMux, name string, ops rankedOps) {
	base := "/api/" + name

	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		list, err := ops.list(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := a.decode(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		row, err := ops.create(r.Context(), req.Name)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, row)
	})

	mux.HandleFunc("PATCH "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		var req nameRequest
		if err := a.decode(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		row, err := ops.rename(r.Context(), id, req.Name)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	})

	mux.HandleFunc("PUT "+base+"/order", func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		if err := a.decode(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		if err := ops.reorder(r.Context(), req.IDs); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if err := ops.remove(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

/* Tags */

func (a *API) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := a.catalog.ListTags(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (a *API) createTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	tag, err := a.catalog.CreateTag(r.Context(), req.Name, req.Color)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (a *API) updateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req tagRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	tag, err := a.catalog.UpdateTag(r.Context(), id, req.Name, req.Color)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (a *API) deleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.catalog.DeleteTag(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* Units */

func (a *API) listUnits(w http.ResponseWriter, r *http.Request) {
	list, err := a.units.ListUnits(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createUnit(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.units.CreateUnit(r.Context(), req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}
