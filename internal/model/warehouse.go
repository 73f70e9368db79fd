package model

import "time"

// Warehouse is a location that holds stock.
type Warehouse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Warehouse kinds.
const (
	WarehouseWholesale = "wholesale"
	WarehouseRetail    = "retail"
)

// Stock is the on-hand quantity of one priceable unit in a warehouse.
type Stock struct {
	WarehouseID int64      `json:"warehouse_id"`
	ProductID   int64      `json:"product_id"`
	Variant     VariantRef `json:"variant_id"`
	Quantity    int        `json:"quantity"`

	// Joined fields (not always populated).
	ProductName string `json:"product_name,omitempty"`
	Package     string `json:"package,omitempty"`
}
