package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer and line statuses. cancelled is terminal.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Transfer is a committed batch move of stock between two warehouses.
type Transfer struct {
	ID                     int64           `json:"id"`
	SourceWarehouseID      int64           `json:"source_warehouse_id"`
	DestinationWarehouseID int64           `json:"destination_warehouse_id"`
	Status                 string          `json:"status"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	Note                   string          `json:"note,omitempty"`
	CreatedBy              string          `json:"created_by,omitempty"`
	RequestKey             string          `json:"request_key,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	CancelledAt            *time.Time      `json:"cancelled_at,omitempty"`

	Lines []TransferLine `json:"lines,omitempty"`
}

// TransferLine is one committed product/variant move within a transfer.
type TransferLine struct {
	ID         int64      `json:"id"`
	TransferID int64      `json:"transfer_id"`
	ProductID  int64      `json:"product_id"`
	Variant    VariantRef `json:"variant_id"`
	// Quantity is debited from the source in wholesale packages.
	Quantity int `json:"quantity"`
	// DestQuantity is credited to the destination in retail units.
	DestQuantity  int             `json:"dest_quantity"`
	FromQuantity  int             `json:"from_quantity"`
	ToQuantity    int             `json:"to_quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PriceAddition decimal.Decimal `json:"price_addition"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Status        string          `json:"status"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

// TransferRequest is a candidate transfer, previewed or committed.
type TransferRequest struct {
	SourceWarehouseID      int64         `json:"source_warehouse_id"`
	DestinationWarehouseID int64         `json:"destination_warehouse_id"`
	Lines                  []LineRequest `json:"lines"`
	Note                   string        `json:"note,omitempty"`
}

// LineRequest is one requested line of a transfer.
type LineRequest struct {
	ProductID     int64           `json:"product_id"`
	Variant       VariantRef      `json:"variant_id"`
	Quantity      int             `json:"quantity"`
	PriceAddition decimal.Decimal `json:"price_addition"`
}

// VerdictStatus classifies a previewed line.
type VerdictStatus string

// Verdict statuses.
const (
	VerdictOK       VerdictStatus = "ok"
	VerdictRejected VerdictStatus = "rejected"
)

// RejectReason is a stable code for why a line cannot be transferred.
type RejectReason string

// Reject reasons.
const (
	ReasonProductNotFound   RejectReason = "product_not_found"
	ReasonInsufficientStock RejectReason = "insufficient_stock"
	ReasonExceedsAvailable  RejectReason = "exceeds_available"
)

// Message returns a human readable description of the reason.
func (r RejectReason) Message() string {
	switch r {
	case ReasonProductNotFound:
		return "product not found"
	case ReasonInsufficientStock:
		return "insufficient stock at source"
	case ReasonExceedsAvailable:
		return "requested quantity exceeds available stock"
	}
	return string(r)
}

// LineVerdict is the outcome of evaluating one requested line.
// FinalPrice is set only when Status is ok; Reason only when rejected.
type LineVerdict struct {
	LineRequest

	FromQuantity  int              `json:"from_quantity"`
	ToQuantity    int              `json:"to_quantity"`
	DestQuantity  int              `json:"dest_quantity,omitempty"`
	Status        VerdictStatus    `json:"status"`
	Reason        RejectReason     `json:"reason,omitempty"`
	Message       string           `json:"message,omitempty"`
	FinalPrice    *decimal.Decimal `json:"final_price,omitempty"`
	Package       string           `json:"package,omitempty"`
	RetailPackage string           `json:"retail_package,omitempty"`
}

// OK reports whether the line can be transferred.
func (v LineVerdict) OK() bool { return v.Status == VerdictOK }
