package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/service"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// OrderServicer is the command catalog exposed over HTTP.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	HandleTableSelect(ctx context.Context, table service.Table, cart []command.ItemInput, existing *service.ExistingOrder) (service.TableSelectResult, error)
	CreateRetailOrder(ctx context.Context, cart []command.ItemInput) (string, error)
	AddItems(ctx context.Context, req command.AddItems) error
	CompleteOrder(ctx context.Context, req command.CompleteOrder) error
	CompleteWithPayments(ctx context.Context, orderID string, payments []command.PaymentInput, receiptNumber *string) error
	VoidOrder(ctx context.Context, req command.VoidOrder) error
	ModifyItem(ctx context.Context, req command.ModifyItem) error
	RemoveItem(ctx context.Context, req command.RemoveItem) error
	CompItem(ctx context.Context, req command.CompItem) error
	UncompItem(ctx context.Context, req command.UncompItem) error
	AddPayment(ctx context.Context, req command.AddPayment) error
	CancelPayment(ctx context.Context, req command.CancelPayment) error
	SplitByItems(ctx context.Context, req command.SplitByItems) error
	SplitByAmount(ctx context.Context, req command.SplitByAmount) error
	StartAASplit(ctx context.Context, req command.StartAASplit) error
	PayAASplit(ctx context.Context, req command.PayAASplit) error
	ApplyOrderDiscount(ctx context.Context, req command.ApplyOrderDiscount) error
	ApplyOrderSurcharge(ctx context.Context, req command.ApplyOrderSurcharge) error
	AddOrderNote(ctx context.Context, req command.AddOrderNote) error
	ToggleRuleSkip(ctx context.Context, req command.ToggleRuleSkip) error
	MoveOrder(ctx context.Context, req command.MoveOrder) error
	MergeOrders(ctx context.Context, req command.MergeOrders) error
	UpdateOrderInfo(ctx context.Context, req command.UpdateOrderInfo) error
	LinkMember(ctx context.Context, req command.LinkMember) error
	UnlinkMember(ctx context.Context, req command.UnlinkMember) error
	RedeemStamp(ctx context.Context, req command.RedeemStamp) error
	CancelStampRedemption(ctx context.Context, req command.CancelStampRedemption) error
}

// SnapshotFetcher returns the reconstructed view of one order.
// Satisfied by *snapshot.Reconstructor.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, orderID string) (*snapshot.Snapshot, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc       OrderServicer
	snapshots SnapshotFetcher
	logger    *log.Entry
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, snapshots SnapshotFetcher, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &OrderHandler{svc: svc, snapshots: snapshots, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/table-select", h.TableSelect)
	r.Post("/retail", h.CreateRetail)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", orderCommand(h, h.svc.UpdateOrderInfo, func(p *command.UpdateOrderInfo, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))

		r.Post("/items", orderCommand(h, h.svc.AddItems, func(p *command.AddItems, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Patch("/items/{instance}", orderCommand(h, h.svc.ModifyItem, func(p *command.ModifyItem, r *http.Request) {
			p.OrderID, p.InstanceID = chi.URLParam(r, "id"), chi.URLParam(r, "instance")
		}))
		r.Delete("/items/{instance}", orderCommand(h, h.svc.RemoveItem, func(p *command.RemoveItem, r *http.Request) {
			p.OrderID, p.InstanceID = chi.URLParam(r, "id"), chi.URLParam(r, "instance")
		}))
		r.Post("/items/{instance}/comp", orderCommand(h, h.svc.CompItem, func(p *command.CompItem, r *http.Request) {
			p.OrderID, p.InstanceID = chi.URLParam(r, "id"), chi.URLParam(r, "instance")
		}))
		r.Post("/items/{instance}/uncomp", orderCommand(h, h.svc.UncompItem, func(p *command.UncompItem, r *http.Request) {
			p.OrderID, p.InstanceID = chi.URLParam(r, "id"), chi.URLParam(r, "instance")
		}))

		r.Post("/payments", orderCommand(h, h.svc.AddPayment, func(p *command.AddPayment, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Delete("/payments/{pid}", orderCommand(h, h.svc.CancelPayment, func(p *command.CancelPayment, r *http.Request) {
			p.OrderID, p.PaymentID = chi.URLParam(r, "id"), chi.URLParam(r, "pid")
		}))
		r.Post("/complete", h.Complete)
		r.Post("/void", orderCommand(h, h.svc.VoidOrder, func(p *command.VoidOrder, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))

		r.Post("/split/items", orderCommand(h, h.svc.SplitByItems, func(p *command.SplitByItems, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/split/amount", orderCommand(h, h.svc.SplitByAmount, func(p *command.SplitByAmount, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/split/aa", orderCommand(h, h.svc.StartAASplit, func(p *command.StartAASplit, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/split/aa/pay", orderCommand(h, h.svc.PayAASplit, func(p *command.PayAASplit, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))

		r.Post("/discount", orderCommand(h, h.svc.ApplyOrderDiscount, func(p *command.ApplyOrderDiscount, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/surcharge", orderCommand(h, h.svc.ApplyOrderSurcharge, func(p *command.ApplyOrderSurcharge, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/note", orderCommand(h, h.svc.AddOrderNote, func(p *command.AddOrderNote, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/rule-skip", orderCommand(h, h.svc.ToggleRuleSkip, func(p *command.ToggleRuleSkip, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/move", orderCommand(h, h.svc.MoveOrder, func(p *command.MoveOrder, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		// The path order is merged into target_order_id from the body.
		r.Post("/merge", orderCommand(h, h.svc.MergeOrders, func(p *command.MergeOrders, r *http.Request) {
			p.SourceOrderID = chi.URLParam(r, "id")
		}))

		r.Post("/member", orderCommand(h, h.svc.LinkMember, func(p *command.LinkMember, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Delete("/member", orderCommand(h, h.svc.UnlinkMember, func(p *command.UnlinkMember, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Post("/stamps", orderCommand(h, h.svc.RedeemStamp, func(p *command.RedeemStamp, r *http.Request) {
			p.OrderID = chi.URLParam(r, "id")
		}))
		r.Delete("/stamps/{activity}", orderCommand(h, h.svc.CancelStampRedemption, func(p *command.CancelStampRedemption, r *http.Request) {
			p.OrderID, p.StampActivityID = chi.URLParam(r, "id"), chi.URLParam(r, "activity")
		}))
	})
}

// --- Request / Response types ---

type tableSelectRequest struct {
	Table    service.Table          `json:"table"`
	Cart     []command.ItemInput    `json:"cart"`
	Existing *service.ExistingOrder `json:"existing_order"`
}

type retailRequest struct {
	Items []command.ItemInput `json:"items"`
}

type completeRequest struct {
	ReceiptNumber *string                `json:"receipt_number"`
	Payments      []command.PaymentInput `json:"payments"`
}

type orderIDResponse struct {
	OrderID string `json:"order_id"`
}

type okResponse struct {
	Success bool `json:"success"`
}

// --- Handlers ---

// orderCommand decodes the body into a payload, lets stamp fill in the path
// parameters, and runs the command. Path values always win over the body.
func orderCommand[P any](h *OrderHandler, run func(context.Context, P) error, stamp func(*P, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p P
		if err := decodeBody(r, &p); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		stamp(&p, r)

		if err := run(r.Context(), p); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{Success: true})
	}
}

// TableSelect handles POST /orders/table-select.
func (h *OrderHandler) TableSelect(w http.ResponseWriter, r *http.Request) {
	var req tableSelectRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Table.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "table.id is required"})
		return
	}

	result, err := h.svc.HandleTableSelect(r.Context(), req.Table, req.Cart, req.Existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == service.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// CreateRetail handles POST /orders/retail.
func (h *OrderHandler) CreateRetail(w http.ResponseWriter, r *http.Request) {
	var req retailRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	orderID, err := h.svc.CreateRetailOrder(r.Context(), req.Items)
	if err != nil {
		// The order may exist even though adding items failed.
		if orderID != "" {
			h.logger.WithError(err).WithField("order_id", orderID).Warn("retail order opened without items")
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderIDResponse{OrderID: orderID})
}

// Complete handles POST /orders/{id}/complete. With payments in the body each
// one is recorded before completion.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	var err error
	if len(req.Payments) > 0 {
		err = h.svc.CompleteWithPayments(r.Context(), orderID, req.Payments, req.ReceiptNumber)
	} else {
		err = h.svc.CompleteOrder(r.Context(), command.CompleteOrder{OrderID: orderID, ReceiptNumber: req.ReceiptNumber})
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
