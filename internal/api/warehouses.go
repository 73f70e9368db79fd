package api

import (
	"net/http"

	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/store"
	"github.com/erazemk/prenos/internal/transfer"
)

// WarehousesHandler handles warehouse endpoints.
type WarehousesHandler struct {
	DB     *db.DB
	Engine *transfer.Engine
}

type createWarehouseRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Kind string `json:"kind" validate:"required,oneof=wholesale retail"`
}

// List handles GET /api/warehouses.
func (h *WarehousesHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != model.WarehouseWholesale && kind != model.WarehouseRetail {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "kind must be wholesale or retail")
		return
	}

	warehouses, err := store.ListWarehouses(r.Context(), h.DB, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if warehouses == nil {
		warehouses = []model.Warehouse{}
	}
	jsonResponse(w, r, http.StatusOK, warehouses)
}

// Create handles POST /api/warehouses.
func (h *WarehousesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWarehouseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wh, err := store.CreateWarehouse(r.Context(), h.DB, req.Name, req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusCreated, wh)
}

// Stock handles GET /api/warehouses/{id}/stock.
func (h *WarehousesHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid warehouse id")
		return
	}

	rows, err := h.Engine.Stock(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.Stock{}
	}
	jsonResponse(w, r, http.StatusOK, rows)
}
