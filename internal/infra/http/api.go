package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Spok95/homestock/internal/domain/catalog"
	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/recheck"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/domain/units"
)

// maxBody bounds JSON and workbook uploads.
const maxBody = 8 << 20

type Catalog interface {
	CreateCategory(ctx context.Context, name string) (*catalog.Category, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	RenameCategory(ctx context.Context, id int64, name string) (*catalog.Category, error)
	ReorderCategories(ctx context.Context, ids []int64) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateStore(ctx context.Context, name string) (*catalog.Store, error)
	ListStores(ctx context.Context) ([]catalog.Store, error)
	RenameStore(ctx context.Context, id int64, name string) (*catalog.Store, error)
	ReorderStores(ctx context.Context, ids []int64) error
	DeleteStore(ctx context.Context, id int64) error

	CreateTag(ctx context.Context, name, color string) (*catalog.Tag, error)
	UpdateTag(ctx context.Context, id int64, name, color string) (*catalog.Tag, error)
	ListTags(ctx context.Context) ([]catalog.Tag, error)
	DeleteTag(ctx context.Context, id int64) error
	SetProductTags(ctx context.Context, productID int64, tagIDs []int64) error

	RegisterProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	ListProducts(ctx context.Context, includeArchived bool) ([]catalog.Product, error)
	RenameProduct(ctx context.Context, id int64, name string) (*catalog.Product, error)
	SetProductCategory(ctx context.Context, id int64, categoryID *int64) (*catalog.Product, error)
	SetProductMemo(ctx context.Context, id int64, memo string) (*catalog.Product, error)
	SetProductURL(ctx context.Context, id int64, url string) (*catalog.Product, error)
	SetProductArchived(ctx context.Context, id int64, archived bool) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type Units interface {
	CreateUnit(ctx context.Context, name string) (*units.Unit, error)
	ListUnits(ctx context.Context) ([]units.Unit, error)
	ListConversions(ctx context.Context, productIDs ...int64) ([]units.Conversion, error)
	ReplaceConversions(ctx context.Context, productID int64, convs []units.Conversion) error
}

// API is the JSON surface over the catalog, the ledger and the recheck flow.
type API struct {
	catalog  Catalog
	units    Units
	ledger   *stock.Ledger
	engine   *reconcile.Engine
	recheck  *recheck.Service
	validate *validator.Validate
	log      *slog.Logger
}

func NewAPI(cat Catalog, u Units, ledger *stock.Ledger, engine *reconcile.Engine, rc *recheck.Service, log *slog.Logger) *API {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &API{catalog: cat, units: u, ledger: ledger, engine: engine, recheck: rc, validate: v, log: log}
}

func (a *API) register(mux *http.ServeMux) {
	/* Products */
	mux.HandleFunc("GET /api/products", a.listProducts)
	mux.HandleFunc("POST /api/products", a.createProduct)
	mux.HandleFunc("GET /api/products/{id}", a.getProduct)
	mux.HandleFunc("PATCH /api/products/{id}", a.updateProduct)
	mux.HandleFunc("PUT /api/products/{id}/category", a.setProductCategory)
	mux.HandleFunc("PUT /api/products/{id}/tags", a.setProductTags)
	mux.HandleFunc("DELETE /api/products/{id}", a.deleteProduct)
	mux.HandleFunc("GET /api/products/{id}/units", a.listConversions)
	mux.HandleFunc("PUT /api/products/{id}/units", a.replaceConversions)

	/* Stock */
	mux.HandleFunc("GET /api/stock", a.listStock)
	mux.HandleFunc("POST /api/products/{id}/adjustments", a.recordAdjustment)
	mux.HandleFunc("PUT /api/products/{id}/stock", a.setQuantity)
	mux.HandleFunc("PUT /api/products/{id}/mode", a.setMode)
	mux.HandleFunc("POST /api/products/{id}/status/advance", a.advanceStatus)
	mux.HandleFunc("GET /api/products/{id}/prices", a.priceHistory)
	mux.HandleFunc("GET /api/products/{id}/verify", a.verify)
	mux.HandleFunc("POST /api/products/{id}/repair", a.repair)

	/* Purchases */
	mux.HandleFunc("POST /api/purchases", a.submitPurchase)
	mux.HandleFunc("POST /api/purchase-lines", a.recordPurchaseLine)
	mux.HandleFunc("PATCH /api/purchase-lines/{id}", a.annotateLine)
	mux.HandleFunc("DELETE /api/purchase-lines/{id}", a.deleteLine)

	/* Lookups */
	a.registerRanked(mux, "categories", categoryOps{a.catalog})
	a.registerRanked(mux, "stores", storeOps{a.catalog})
	mux.HandleFunc("GET /api/tags", a.listTags)
	mux.HandleFunc("POST /api/tags", a.createTag)
	mux.HandleFunc("PATCH /api/tags/{id}", a.updateTag)
	mux.HandleFunc("DELETE /api/tags/{id}", a.deleteTag)
	mux.HandleFunc("GET /api/units", a.listUnits)
	mux.HandleFunc("POST /api/units", a.createUnit)

	/* Recheck */
	mux.HandleFunc("GET /api/stale", a.stale)
	mux.HandleFunc("POST /api/stale/touch", a.touch)
	mux.HandleFunc("POST /api/reconcile", a.reconcile)
	mux.HandleFunc("GET /api/recheck", a.startRecheck)
	mux.HandleFunc("POST /api/recheck", a.completeRecheck)
	mux.HandleFunc("GET /api/recheck/sheet", a.exportSheet)
	mux.HandleFunc("POST /api/recheck/sheet", a.importSheet)
}

/* Helpers */

type errorBody struct {
	Error      string            `json:"error"`
	Fields     map[string]string `json:"fields,omitempty"`
	ProductIDs []int64           `json:"product_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  validator.ValidationErrors
		ce  *errs.ConflictError
		val *errs.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request", Fields: fields})
	case errors.As(err, &val):
		body := errorBody{Error: val.Error()}
		if val.Field != "" {
			body.Fields = map[string]string{val.Field: val.Msg}
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errs.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, errorBody{Error: ce.Error(), ProductIDs: ce.ProductIDs})
	default:
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decode reads a JSON body into dst and runs the struct validations.
func (a *API) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Validation("", "malformed JSON: %v", err)
	}
	return a.validate.Struct(dst)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation("id", "must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Validation(key, "must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
