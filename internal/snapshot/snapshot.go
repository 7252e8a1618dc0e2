// Package snapshot turns what the backend knows about an order into one
// normalized, read-only view. Sources are the archived record and the live
// event tail with its server-computed snapshot; the client never folds events
// itself.
package snapshot

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by a source that has no record of the order.
	ErrNotFound = errors.New("order not found")
	// ErrSnapshotMissing is returned when a live event tail arrives without
	// the server snapshot.
	ErrSnapshotMissing = errors.New("live response carries no snapshot")
)

// Source identifies which backend view a Snapshot was built from.
type Source string

const (
	SourceArchive Source = "archive"
	SourceLive    Source = "live"
)

// Snapshot is the reconstructed state of one order. It is rebuilt on every
// fetch and never mutated afterwards.
type Snapshot struct {
	OrderID       string `json:"order_id"`
	ReceiptNumber string `json:"receipt_number"`
	Status        string `json:"status"`

	TableID    string `json:"table_id,omitempty"`
	TableName  string `json:"table_name,omitempty"`
	ZoneID     string `json:"zone_id,omitempty"`
	ZoneName   string `json:"zone_name,omitempty"`
	IsRetail   bool   `json:"is_retail"`
	GuestCount int32  `json:"guest_count"`
	MemberID   string `json:"member_id,omitempty"`

	Items    []Item    `json:"items"`
	Payments []Payment `json:"payments"`
	Totals   Totals    `json:"totals"`

	Timeline []TimelineEntry `json:"timeline"`

	Source    Source     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Item is one order line.
type Item struct {
	InstanceID            string                   `json:"instance_id"`
	ProductID             string                   `json:"product_id"`
	Name                  string                   `json:"name"`
	Quantity              int32                    `json:"quantity"`
	UnpaidQuantity        int32                    `json:"unpaid_quantity"`
	UnitPrice             decimal.Decimal          `json:"unit_price"`
	OriginalPrice         decimal.Decimal          `json:"original_price"`
	Discount              decimal.Decimal          `json:"discount"`
	Surcharge             decimal.Decimal          `json:"surcharge"`
	LineTotal             decimal.Decimal          `json:"line_total"`
	SelectedOptions       []command.SelectedOption `json:"selected_options"`
	SelectedSpecification *command.Specification   `json:"selected_specification,omitempty"`
	IsRemoved             bool                     `json:"is_removed"`
	IsComped              bool                     `json:"is_comped"`
	Note                  string                   `json:"note,omitempty"`
}

// Payment is one tender recorded against the order.
type Payment struct {
	PaymentID    string           `json:"payment_id"`
	Method       string           `json:"method"`
	Amount       decimal.Decimal  `json:"amount"`
	Tendered     *decimal.Decimal `json:"tendered,omitempty"`
	Change       *decimal.Decimal `json:"change,omitempty"`
	Cancelled    bool             `json:"cancelled"`
	CancelReason string           `json:"cancel_reason,omitempty"`
	PaidAt       time.Time        `json:"paid_at"`
}

// Totals holds the order money figures. Total = Subtotal - Discount +
// Surcharge + Tax and Remaining = max(0, Total - Paid) always hold.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Surcharge     decimal.Decimal `json:"surcharge"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	Paid          decimal.Decimal `json:"paid_amount"`
	Remaining     decimal.Decimal `json:"remaining_amount"`
}

// TimelineEntry is one human-readable line of the order history.
type TimelineEntry struct {
	Sequence     int64     `json:"sequence"`
	EventType    string    `json:"event_type"`
	Summary      string    `json:"summary"`
	OperatorName string    `json:"operator_name"`
	At           time.Time `json:"at"`
}

// Update is one push from the backend notification stream.
type Update struct {
	OrderID  string
	Snapshot *Snapshot
	Err      error
}

// --- Wire records ---

// Event is one entry of an order's event log as returned by the backend.
type Event struct {
	EventID      string          `json:"event_id"`
	Sequence     int64           `json:"sequence"`
	OrderID      string          `json:"order_id"`
	Timestamp    int64           `json:"timestamp"`
	OperatorID   string          `json:"operator_id"`
	OperatorName string          `json:"operator_name"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
}

// RecordItem is an item as stored by the backend.
type RecordItem struct {
	InstanceID            string                   `json:"instance_id"`
	ProductID             string                   `json:"product_id"`
	Name                  string                   `json:"name"`
	Price                 decimal.Decimal          `json:"price"`
	OriginalPrice         *decimal.Decimal         `json:"original_price"`
	Quantity              int32                    `json:"quantity"`
	UnpaidQuantity        *int32                   `json:"unpaid_quantity"`
	DiscountAmount        decimal.Decimal          `json:"discount_amount"`
	SurchargeAmount       decimal.Decimal          `json:"surcharge_amount"`
	LineTotal             *decimal.Decimal         `json:"line_total"`
	SelectedOptions       []command.SelectedOption `json:"selected_options"`
	SelectedSpecification *command.Specification   `json:"selected_specification"`
	IsRemoved             bool                     `json:"is_removed"`
	IsComped              bool                     `json:"is_comped"`
	Note                  *string                  `json:"note"`
}

// RecordPayment is a payment as stored by the backend.
type RecordPayment struct {
	PaymentID    string           `json:"payment_id"`
	Method       string           `json:"method"`
	Amount       decimal.Decimal  `json:"amount"`
	Tendered     *decimal.Decimal `json:"tendered"`
	Change       *decimal.Decimal `json:"change"`
	Cancelled    bool             `json:"cancelled"`
	CancelReason *string          `json:"cancel_reason"`
	Timestamp    int64            `json:"timestamp"`
}

// Header is shared by archived records and live snapshots.
type Header struct {
	OrderID       string  `json:"order_id"`
	ReceiptNumber string  `json:"receipt_number"`
	Status        string  `json:"status"`
	TableID       *string `json:"table_id"`
	TableName     *string `json:"table_name"`
	ZoneID        *string `json:"zone_id"`
	ZoneName      *string `json:"zone_name"`
	IsRetail      bool    `json:"is_retail"`
	GuestCount    int32   `json:"guest_count"`
	MemberID      *string `json:"member_id"`
	CreatedAt     int64   `json:"created_at"`
	EndedAt       *int64  `json:"end_time"`
}

// ArchivedOrder is the durable record of a concluded order. Money figures are
// the ones the backend settled on at archive time.
type ArchivedOrder struct {
	Header
	Items           []RecordItem    `json:"items"`
	Payments        []RecordPayment `json:"payments"`
	Events          []Event         `json:"events"`
	Total           decimal.Decimal `json:"total_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	SurchargeAmount decimal.Decimal `json:"surcharge_amount"`
	TaxAmount       decimal.Decimal `json:"tax"`
}

// ServerSnapshot is the backend's fold of the live event log.
type ServerSnapshot struct {
	Header
	Items     []RecordItem    `json:"items"`
	Payments  []RecordPayment `json:"payments"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"order_discount_amount"`
	Surcharge decimal.Decimal `json:"order_surcharge_amount"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid_amount"`
}

// LiveOrder is the event tail plus the server snapshot it folds into.
type LiveOrder struct {
	Snapshot *ServerSnapshot `json:"snapshot"`
	Events   []Event         `json:"events"`
}
