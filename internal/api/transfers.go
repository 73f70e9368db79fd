package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prenos/internal/model"
	"github.com/erazemk/prenos/internal/transfer"
)

// IdempotencyKeyHeader makes POST /api/transfers safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// TransfersHandler handles transfer endpoints.
type TransfersHandler struct {
	Engine *transfer.Engine
}

type transferLineBody struct {
	ProductID     int64            `json:"product_id" validate:"gt=0"`
	Variant       model.VariantRef `json:"variant_id"`
	Quantity      int              `json:"quantity" validate:"gt=0"`
	PriceAddition decimal.Decimal  `json:"price_addition"`
}

type transferBody struct {
	SourceWarehouseID      int64              `json:"source_warehouse_id" validate:"gt=0"`
	DestinationWarehouseID int64              `json:"destination_warehouse_id" validate:"gt=0,nefield=SourceWarehouseID"`
	Lines                  []transferLineBody `json:"lines" validate:"required,min=1,max=500,dive"`
	Note                   string             `json:"note" validate:"max=500"`
}

func (b transferBody) request() model.TransferRequest {
	req := model.TransferRequest{
		SourceWarehouseID:      b.SourceWarehouseID,
		DestinationWarehouseID: b.DestinationWarehouseID,
		Note:                   b.Note,
		Lines:                  make([]model.LineRequest, len(b.Lines)),
	}
	for i, l := range b.Lines {
		req.Lines[i] = model.LineRequest{
			ProductID:     l.ProductID,
			Variant:       l.Variant,
			Quantity:      l.Quantity,
			PriceAddition: l.PriceAddition,
		}
	}
	return req
}

type executeResponse struct {
	TransferID         int64               `json:"transfer_id"`
	CommittedLineCount int                 `json:"committed_line_count"`
	Replayed           bool                `json:"replayed"`
	Lines              []model.LineVerdict `json:"lines,omitempty"`
	Transfer           *model.Transfer     `json:"transfer"`
}

// Preview handles POST /api/transfers/preview.
func (h *TransfersHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeJSON(w, r, &body) {
		return
	}

	verdicts, err := h.Engine.Preview(r.Context(), body.request())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, verdicts)
}

// Execute handles POST /api/transfers.
func (h *TransfersHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeJSON(w, r, &body) {
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > 128 {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "idempotency key too long")
		return
	}

	res, err := h.Engine.Commit(r.Context(), body.request(), transfer.CommitOptions{
		CreatedBy:  actor(r.Context()),
		RequestKey: key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	jsonResponse(w, r, status, executeResponse{
		TransferID:         res.TransferID(),
		CommittedLineCount: res.CommittedLineCount(),
		Replayed:           res.Replayed,
		Lines:              res.Verdicts,
		Transfer:           res.Transfer,
	})
}

// Get handles GET /api/transfers/{id}.
func (h *TransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid transfer id")
		return
	}

	t, err := h.Engine.GetTransfer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, t)
}

// List handles GET /api/transfers.
func (h *TransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	var f transfer.Filter
	var ok bool

	if f.WarehouseID, ok = queryInt(r, "warehouse_id"); !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid warehouse_id")
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok || limit > 500 {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid limit")
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid offset")
		return
	}
	f.Limit, f.Offset = int(limit), int(offset)
	if f.Limit == 0 {
		f.Limit = 50
	}
	f.Status = r.URL.Query().Get("status")

	transfers, err := h.Engine.ListTransfers(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if transfers == nil {
		transfers = []model.Transfer{}
	}
	jsonResponse(w, r, http.StatusOK, transfers)
}

// CancelLine handles POST /api/transfers/lines/{id}/cancel.
func (h *TransfersHandler) CancelLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid line id")
		return
	}

	res, err := h.Engine.CancelLine(r.Context(), id, actor(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, res)
}

// CancelTransfer handles POST /api/transfers/{id}/cancel.
func (h *TransfersHandler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid transfer id")
		return
	}

	res, err := h.Engine.CancelTransfer(r.Context(), id, actor(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, r, http.StatusOK, res)
}
