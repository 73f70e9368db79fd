// Package events publishes transfer lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	TypeTransferCommitted = "transfer.committed"
	TypeLineCancelled     = "transfer.line_cancelled"
	TypeTransferCancelled = "transfer.cancelled"
)

// Event is the envelope written to the event stream.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	TransferID int64     `json:"transfer_id"`
	Actor      string    `json:"actor,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// New returns an event with a fresh id.
func New(eventType string, transferID int64, actor string, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		TransferID: transferID,
		Actor:      actor,
		Payload:    payload,
	}
}

// Movement is one stock row change carried by an event.
type Movement struct {
	LineID       int64  `json:"line_id"`
	ProductID    int64  `json:"product_id"`
	Variant      string `json:"variant"`
	Quantity     int    `json:"quantity"`
	DestQuantity int    `json:"dest_quantity"`
}

// Committed is the payload of transfer.committed.
type Committed struct {
	SourceWarehouseID      int64           `json:"source_warehouse_id"`
	DestinationWarehouseID int64           `json:"destination_warehouse_id"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	Lines                  []Movement      `json:"lines"`
}

// Cancelled is the payload of transfer.line_cancelled and transfer.cancelled.
type Cancelled struct {
	SourceWarehouseID      int64      `json:"source_warehouse_id"`
	DestinationWarehouseID int64      `json:"destination_warehouse_id"`
	Lines                  []Movement `json:"lines"`
}

// Publisher delivers events. Publishing happens after the database commit,
// so implementations may fail without affecting the stored transfer.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }
