package api

import (
	"net/http"

	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/transfer"
)

// StockHandler handles manual stock corrections.
type StockHandler struct {
	Engine *transfer.Engine
}

type adjustRequest struct {
	WarehouseID int64            `json:"warehouse_id" validate:"gt=0"`
	ProductID   int64            `json:"product_id" validate:"gt=0"`
	Variant     model.VariantRef `json:"variant_id"`
	Delta       int              `json:"delta" validate:"ne=0"`
}

type adjustResponse struct {
	WarehouseID int64            `json:"warehouse_id"`
	ProductID   int64            `json:"product_id"`
	Variant     model.VariantRef `json:"variant_id"`
	Quantity    int              `json:"quantity"`
}

// Adjust handles POST /api/stock/adjust.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	qty, err := h.Engine.AdjustStock(r.Context(), transfer.AdjustRequest{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Variant:     req.Variant,
		Delta:       req.Delta,
	}, actor(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, r, http.StatusOK, adjustResponse{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Variant:     req.Variant,
		Quantity:    qty,
	})
}
