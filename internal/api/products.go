package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/logger"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/pricing"
	"github.com/erazemk/prenos/internal/store"
	"github.com/erazemk/prenos/internal/transfer"
)

// rateInvalidator is implemented by resolvers that cache manufacturer rates.
type rateInvalidator interface {
	InvalidateRate(ctx context.Context, manufacturer string) error
}

// ProductsHandler handles catalog endpoints. Products and variants are only
// ever added, so cached resolutions never go stale; rates can change.
type ProductsHandler struct {
	DB      *db.DB
	Catalog catalog.Resolver
}

type createProductRequest struct {
	Name             string          `json:"name" validate:"required,max=200"`
	Manufacturer     string          `json:"manufacturer" validate:"max=200"`
	WholesalePackage string          `json:"wholesale_package" validate:"max=50"`
	WholesalePrice   decimal.Decimal `json:"wholesale_price"`
	RetailPackage    string          `json:"retail_package" validate:"max=50"`
	UnitsPerPackage  int             `json:"units_per_package" validate:"gte=0"`
}

type createVariantRequest struct {
	Package         string          `json:"package" validate:"required,max=50"`
	Price           decimal.Decimal `json:"price"`
	UnitsPerPackage int             `json:"units_per_package" validate:"gte=0"`
}

type setRateRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

// Get handles GET /api/products/{id}. The optional variant_id query
// parameter resolves one of the product's variants instead of the base.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid product id")
		return
	}
	variantID, ok := queryInt(r, "variant_id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid variant_id")
		return
	}
	variant, _ := model.ParseVariantID(variantID)

	res, err := h.Catalog.Resolve(r.Context(), id, variant)
	if errors.Is(err, catalog.ErrNotFound) {
		jsonError(w, r, http.StatusNotFound, transfer.ErrNotFound.Code, "product not found")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, res)
}

// Create handles POST /api/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.WholesalePrice.IsNegative() {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "wholesale_price cannot be negative")
		return
	}

	p, err := store.CreateProduct(r.Context(), h.DB, model.Product{
		Name:             req.Name,
		Manufacturer:     req.Manufacturer,
		WholesalePackage: req.WholesalePackage,
		WholesalePrice:   req.WholesalePrice,
		RetailPackage:    req.RetailPackage,
		UnitsPerPackage:  req.UnitsPerPackage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("product created",
		zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	jsonResponse(w, r, http.StatusCreated, p)
}

// CreateVariant handles POST /api/products/{id}/variants.
func (h *ProductsHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid product id")
		return
	}
	var req createVariantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Price.IsNegative() {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "price cannot be negative")
		return
	}

	p, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		jsonError(w, r, http.StatusNotFound, transfer.ErrNotFound.Code, "product not found")
		return
	}

	v, err := store.CreateVariant(r.Context(), h.DB, model.Variant{
		ProductID:       id,
		Package:         req.Package,
		Price:           req.Price,
		UnitsPerPackage: req.UnitsPerPackage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusCreated, v)
}

// SetRate handles PUT /api/manufacturers/{name}/rate.
func (h *ProductsHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "manufacturer is required")
		return
	}
	var req setRateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := pricing.ValidateRate(req.Rate); err != nil {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, err.Error())
		return
	}

	if err := store.SetManufacturerRate(r.Context(), h.DB, name, req.Rate); err != nil {
		writeError(w, r, err)
		return
	}
	if inv, ok := h.Catalog.(rateInvalidator); ok {
		if err := inv.InvalidateRate(r.Context(), name); err != nil {
			logger.FromContext(r.Context()).Warn("stale rate may be served until it expires",
				zap.String("manufacturer", name), zap.Error(err))
		}
	}

	logger.FromContext(r.Context()).Info("manufacturer rate set",
		zap.String("manufacturer", name), zap.String("rate", req.Rate.String()))
	jsonResponse(w, r, http.StatusOK, model.ManufacturerRate{Manufacturer: name, Rate: req.Rate})
}
