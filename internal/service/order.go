package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/marker"
	"github.com/kiwari-pos/terminal/internal/session"
	log "github.com/sirupsen/logrus"
)

// Local precondition failures. These are raised before anything is sent.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingOrderID = errors.New("open table succeeded without an order_id")
	ErrNoPayments     = errors.New("at least one payment is required")
)

// EnvelopeBuilder stamps a payload into an envelope.
// Satisfied by *command.Builder.
type EnvelopeBuilder interface {
	Build(sess *session.Session, payload command.Payload) command.Envelope
}

// CommandDispatcher sends an envelope and never fails outright.
// Satisfied by *command.Dispatcher.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, env command.Envelope) command.Response
}

// OrderService is the catalog of order mutations. Every method builds one
// payload, sends it, and turns a failed response into a *command.CommandError.
// Nothing is applied locally; the backend decides the resulting state.
type OrderService struct {
	builder    EnvelopeBuilder
	dispatcher CommandDispatcher
	markers    marker.Store
	now        func() time.Time
	logger     *log.Entry
}

// NewOrderService creates a new OrderService. markers may be nil, in which
// case no pending retail marker is kept.
func NewOrderService(builder EnvelopeBuilder, dispatcher CommandDispatcher, markers marker.Store, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &OrderService{
		builder:    builder,
		dispatcher: dispatcher,
		markers:    markers,
		now:        time.Now,
		logger:     logger,
	}
}

// execute runs one command with the operator taken from ctx.
func (s *OrderService) execute(ctx context.Context, payload command.Payload) (command.Response, error) {
	env := s.builder.Build(session.FromContext(ctx), payload)
	resp := s.dispatcher.Dispatch(ctx, env)
	if err := command.EnsureSuccess(resp, string(payload.CommandType())); err != nil {
		return resp, err
	}
	return resp, nil
}

func (s *OrderService) run(ctx context.Context, payload command.Payload) error {
	_, err := s.execute(ctx, payload)
	return err
}

// --- Lifecycle ---

// OpenTable opens an order and returns the id assigned by the backend.
func (s *OrderService) OpenTable(ctx context.Context, req command.OpenTable) (string, error) {
	resp, err := s.execute(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.OrderID == nil || *resp.OrderID == "" {
		return "", ErrMissingOrderID
	}
	return *resp.OrderID, nil
}

func (s *OrderService) AddItems(ctx context.Context, req command.AddItems) error {
	return s.run(ctx, req)
}

// CompleteOrder concludes the order and drops the pending retail marker if it
// names this order.
func (s *OrderService) CompleteOrder(ctx context.Context, req command.CompleteOrder) error {
	if err := s.run(ctx, req); err != nil {
		return err
	}
	s.clearMarker(ctx, req.OrderID)
	return nil
}

// VoidOrder voids the order and drops the pending retail marker if it names
// this order.
func (s *OrderService) VoidOrder(ctx context.Context, req command.VoidOrder) error {
	if err := s.run(ctx, req); err != nil {
		return err
	}
	s.clearMarker(ctx, req.OrderID)
	return nil
}

// --- Items ---

func (s *OrderService) ModifyItem(ctx context.Context, req command.ModifyItem) error {
	return s.run(ctx, req)
}

func (s *OrderService) RemoveItem(ctx context.Context, req command.RemoveItem) error {
	return s.run(ctx, req)
}

func (s *OrderService) CompItem(ctx context.Context, req command.CompItem) error {
	return s.run(ctx, req)
}

func (s *OrderService) UncompItem(ctx context.Context, req command.UncompItem) error {
	return s.run(ctx, req)
}

// --- Payments ---

func (s *OrderService) AddPayment(ctx context.Context, req command.AddPayment) error {
	return s.run(ctx, req)
}

func (s *OrderService) CancelPayment(ctx context.Context, req command.CancelPayment) error {
	return s.run(ctx, req)
}

func (s *OrderService) SplitByItems(ctx context.Context, req command.SplitByItems) error {
	return s.run(ctx, req)
}

func (s *OrderService) SplitByAmount(ctx context.Context, req command.SplitByAmount) error {
	return s.run(ctx, req)
}

func (s *OrderService) StartAASplit(ctx context.Context, req command.StartAASplit) error {
	return s.run(ctx, req)
}

func (s *OrderService) PayAASplit(ctx context.Context, req command.PayAASplit) error {
	return s.run(ctx, req)
}

// --- Adjustments ---

// ApplyOrderDiscount forwards percent and fixed amount as given. The backend
// owns the rule that only one may be set; both nil clears the discount.
func (s *OrderService) ApplyOrderDiscount(ctx context.Context, req command.ApplyOrderDiscount) error {
	return s.run(ctx, req)
}

func (s *OrderService) ApplyOrderSurcharge(ctx context.Context, req command.ApplyOrderSurcharge) error {
	return s.run(ctx, req)
}

func (s *OrderService) AddOrderNote(ctx context.Context, req command.AddOrderNote) error {
	return s.run(ctx, req)
}

func (s *OrderService) ToggleRuleSkip(ctx context.Context, req command.ToggleRuleSkip) error {
	return s.run(ctx, req)
}

func (s *OrderService) MoveOrder(ctx context.Context, req command.MoveOrder) error {
	return s.run(ctx, req)
}

func (s *OrderService) MergeOrders(ctx context.Context, req command.MergeOrders) error {
	return s.run(ctx, req)
}

func (s *OrderService) UpdateOrderInfo(ctx context.Context, req command.UpdateOrderInfo) error {
	return s.run(ctx, req)
}

// --- Membership ---

func (s *OrderService) LinkMember(ctx context.Context, req command.LinkMember) error {
	return s.run(ctx, req)
}

func (s *OrderService) UnlinkMember(ctx context.Context, req command.UnlinkMember) error {
	return s.run(ctx, req)
}

func (s *OrderService) RedeemStamp(ctx context.Context, req command.RedeemStamp) error {
	return s.run(ctx, req)
}

func (s *OrderService) CancelStampRedemption(ctx context.Context, req command.CancelStampRedemption) error {
	return s.run(ctx, req)
}

// --- Composite flows ---

// CreateRetailOrder opens a counter order and adds the cart to it. The pending
// retail marker is written as soon as the order exists so a restart mid-sale
// can resume checkout.
func (s *OrderService) CreateRetailOrder(ctx context.Context, cart []command.ItemInput) (string, error) {
	if len(cart) == 0 {
		return "", ErrEmptyCart
	}

	orderID, err := s.OpenTable(ctx, command.OpenTable{GuestCount: 1, IsRetail: true})
	if err != nil {
		return "", fmt.Errorf("open retail order: %w", err)
	}
	s.setMarker(ctx, orderID)

	if err := s.AddItems(ctx, command.AddItems{OrderID: orderID, Items: cart}); err != nil {
		return orderID, fmt.Errorf("add items to retail order %s: %w", orderID, err)
	}
	return orderID, nil
}

// TableSelectOutcome says what HandleTableSelect did.
type TableSelectOutcome string

const (
	OutcomeMerged    TableSelectOutcome = "MERGED"
	OutcomeCreated   TableSelectOutcome = "CREATED"
	OutcomeRetrieved TableSelectOutcome = "RETRIEVED"
	OutcomeEmpty     TableSelectOutcome = "EMPTY"
)

// Table identifies a dine-in table.
type Table struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ZoneID     *string `json:"zone_id"`
	ZoneName   *string `json:"zone_name"`
	GuestCount int32   `json:"guest_count"`
}

// ExistingOrder is what the caller knows about the order already on a table.
type ExistingOrder struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// TableSelectResult carries the outcome and the order it concerns, if any.
type TableSelectResult struct {
	Outcome TableSelectOutcome `json:"outcome"`
	OrderID string             `json:"order_id,omitempty"`
}

// HandleTableSelect resolves a table tap into exactly one outcome. An existing
// order that is not ACTIVE counts as no order.
func (s *OrderService) HandleTableSelect(ctx context.Context, table Table, cart []command.ItemInput, existing *ExistingOrder) (TableSelectResult, error) {
	hasOrder := existing != nil && existing.OrderID != "" && existing.Status == enum.OrderStatusActive
	hasItems := len(cart) > 0

	switch {
	case hasOrder && hasItems:
		if err := s.AddItems(ctx, command.AddItems{OrderID: existing.OrderID, Items: cart}); err != nil {
			return TableSelectResult{}, err
		}
		return TableSelectResult{Outcome: OutcomeMerged, OrderID: existing.OrderID}, nil

	case hasItems:
		guests := table.GuestCount
		if guests < 1 {
			guests = 1
		}
		orderID, err := s.OpenTable(ctx, command.OpenTable{
			TableID:    &table.ID,
			TableName:  &table.Name,
			ZoneID:     table.ZoneID,
			ZoneName:   table.ZoneName,
			GuestCount: guests,
		})
		if err != nil {
			return TableSelectResult{}, fmt.Errorf("open table %s: %w", table.ID, err)
		}
		if err := s.AddItems(ctx, command.AddItems{OrderID: orderID, Items: cart}); err != nil {
			return TableSelectResult{Outcome: OutcomeCreated, OrderID: orderID}, fmt.Errorf("add items to order %s: %w", orderID, err)
		}
		return TableSelectResult{Outcome: OutcomeCreated, OrderID: orderID}, nil

	case hasOrder:
		return TableSelectResult{Outcome: OutcomeRetrieved, OrderID: existing.OrderID}, nil

	default:
		return TableSelectResult{Outcome: OutcomeEmpty}, nil
	}
}

// PartialPaymentError reports that CompleteWithPayments stopped part way.
// The first Committed payments were accepted by the backend and stay applied.
type PartialPaymentError struct {
	OrderID   string
	Committed int
	Total     int
	Err       error
}

func (e *PartialPaymentError) Error() string {
	if e.Committed == e.Total {
		return fmt.Sprintf("order %s: all %d payments recorded but completion failed: %v", e.OrderID, e.Total, e.Err)
	}
	return fmt.Sprintf("order %s: %d of %d payments recorded: %v", e.OrderID, e.Committed, e.Total, e.Err)
}

func (e *PartialPaymentError) Unwrap() error { return e.Err }

// CompleteWithPayments records each payment in order, one command per payment,
// then completes the order. There is no rollback of payments already recorded.
func (s *OrderService) CompleteWithPayments(ctx context.Context, orderID string, payments []command.PaymentInput, receiptNumber *string) error {
	if len(payments) == 0 {
		return ErrNoPayments
	}

	for i, p := range payments {
		if err := s.AddPayment(ctx, command.AddPayment{OrderID: orderID, Payment: p}); err != nil {
			return &PartialPaymentError{OrderID: orderID, Committed: i, Total: len(payments), Err: err}
		}
	}

	if err := s.CompleteOrder(ctx, command.CompleteOrder{OrderID: orderID, ReceiptNumber: receiptNumber}); err != nil {
		return &PartialPaymentError{OrderID: orderID, Committed: len(payments), Total: len(payments), Err: err}
	}
	return nil
}

// --- Pending retail marker ---

// Marker failures are logged, never returned: the sale itself has succeeded.
func (s *OrderService) setMarker(ctx context.Context, orderID string) {
	if s.markers == nil {
		return
	}
	if err := s.markers.Set(ctx, marker.Marker{OrderID: orderID, CreatedAt: s.now()}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("failed to write pending retail marker")
	}
}

func (s *OrderService) clearMarker(ctx context.Context, orderID string) {
	if s.markers == nil {
		return
	}
	if _, err := marker.ClearIf(ctx, s.markers, orderID); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("failed to clear pending retail marker")
	}
}
