package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/handler"
	"github.com/kiwari-pos/terminal/internal/marker"
	"github.com/kiwari-pos/terminal/internal/money"
	"github.com/kiwari-pos/terminal/internal/service"
	"github.com/kiwari-pos/terminal/internal/snapshot"
)

// --- Mock dispatcher ---

type mockDispatcher struct {
	mu         sync.Mutex
	dispatchFn func(env command.Envelope) command.Response
	sent       []command.Envelope
}

func (m *mockDispatcher) Dispatch(ctx context.Context, env command.Envelope) command.Response {
	m.mu.Lock()
	m.sent = append(m.sent, env)
	m.mu.Unlock()
	if m.dispatchFn == nil {
		return accept(env)
	}
	return m.dispatchFn(env)
}

func (m *mockDispatcher) last() command.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1].Payload
}

func accept(env command.Envelope) command.Response {
	resp := command.Response{CommandID: env.CommandID, Success: true}
	if env.Payload.CommandType() == command.TypeOpenTable {
		id := "order-new"
		resp.OrderID = &id
	}
	return resp
}

func reject(t command.Type, code command.Code) func(env command.Envelope) command.Response {
	return func(env command.Envelope) command.Response {
		if env.Payload.CommandType() == t {
			return command.Failure(env.CommandID, code, "rejected by backend")
		}
		return accept(env)
	}
}

// --- Mock SnapshotFetcher ---

type mockFetcher struct {
	fetchFn func(ctx context.Context, orderID string) (*snapshot.Snapshot, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, orderID string) (*snapshot.Snapshot, error) {
	return m.fetchFn(ctx, orderID)
}

// --- Helpers ---

func setupOrderRouter(d *mockDispatcher, f *mockFetcher) (*chi.Mux, *marker.MemoryStore) {
	store := marker.NewMemoryStore()
	svc := service.NewOrderService(command.NewBuilder(), d, store, nil)
	if f == nil {
		f = &mockFetcher{fetchFn: func(ctx context.Context, id string) (*snapshot.Snapshot, error) {
			return nil, errors.New("not wired")
		}}
	}
	h := handler.NewOrderHandler(svc, f, nil)

	r := chi.NewRouter()
	r.Route("/orders", h.RegisterRoutes)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func cart() []map[string]interface{} {
	return []map[string]interface{}{
		{"product_id": "p-1", "name": "Latte", "price": "25.00", "quantity": 2},
	}
}

// --- Tests ---

func TestOrderRoutes_PathParamsStampPayload(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		check  func(t *testing.T, p command.Payload)
	}{
		{
			name: "add items", method: "POST", path: "/orders/o-1/items",
			body: map[string]interface{}{"order_id": "spoofed", "items": cart()},
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.AddItems)
				if got.OrderID != "o-1" || len(got.Items) != 1 {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "modify item", method: "PATCH", path: "/orders/o-1/items/i-9",
			body: map[string]interface{}{"changes": map[string]interface{}{"quantity": 3}},
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.ModifyItem)
				if got.InstanceID != "i-9" || got.Changes.Quantity == nil || *got.Changes.Quantity != 3 {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "remove item without body", method: "DELETE", path: "/orders/o-1/items/i-9",
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.RemoveItem)
				if got.OrderID != "o-1" || got.InstanceID != "i-9" || got.Quantity != nil {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "cancel payment", method: "DELETE", path: "/orders/o-1/payments/pay-2",
			body: map[string]interface{}{"reason": "wrong tender"},
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.CancelPayment)
				if got.PaymentID != "pay-2" || got.Reason == nil || *got.Reason != "wrong tender" {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "merge", method: "POST", path: "/orders/o-1/merge",
			body: map[string]interface{}{"target_order_id": "o-2"},
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.MergeOrders)
				if got.SourceOrderID != "o-1" || got.TargetOrderID != "o-2" {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "update info", method: "PATCH", path: "/orders/o-1",
			body: map[string]interface{}{"guest_count": 4},
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.UpdateOrderInfo)
				if got.OrderID != "o-1" || got.GuestCount == nil || *got.GuestCount != 4 {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "aa split pay", method: "POST", path: "/orders/o-1/split/aa/pay",
			body: map[string]interface{}{"shares": 1, "payment_method": "CASH"},
			check: func(t *testing.T, p command.Payload) {
				if _, ok := p.(command.PayAASplit); !ok {
					t.Errorf("got %T", p)
				}
			},
		},
		{
			name: "cancel stamp", method: "DELETE", path: "/orders/o-1/stamps/act-7",
			check: func(t *testing.T, p command.Payload) {
				got := p.(command.CancelStampRedemption)
				if got.StampActivityID != "act-7" {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "unlink member", method: "DELETE", path: "/orders/o-1/member",
			check: func(t *testing.T, p command.Payload) {
				if got := p.(command.UnlinkMember); got.OrderID != "o-1" {
					t.Errorf("got %+v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{}
			r, _ := setupOrderRouter(d, nil)

			rr := do(t, r, tt.method, tt.path, tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
			}
			tt.check(t, d.last())
		})
	}
}

func TestOrderRoutes_InvalidBody(t *testing.T) {
	d := &mockDispatcher{}
	r, _ := setupOrderRouter(d, nil)

	req := httptest.NewRequest("POST", "/orders/o-1/note", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if d.last() != nil {
		t.Error("nothing should be dispatched for an invalid body")
	}
}

func TestOrderRoutes_ErrorMapping(t *testing.T) {
	tests := []struct {
		code      command.Code
		status    int
		retryable bool
	}{
		{command.CodeOrderNotFound, http.StatusNotFound, false},
		{command.CodeValidationFailed, http.StatusUnprocessableEntity, false},
		{command.CodeConflict, http.StatusConflict, false},
		{command.CodeOrderNotActive, http.StatusConflict, false},
		{command.CodePermissionDenied, http.StatusForbidden, false},
		{command.CodeNetworkError, http.StatusServiceUnavailable, true},
		{command.CodeInternalError, http.StatusServiceUnavailable, true},
		{command.CodeInvalidResponse, http.StatusServiceUnavailable, false},
		{command.Code("TABLE_OCCUPIED"), http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			d := &mockDispatcher{dispatchFn: reject(command.TypeAddOrderNote, tt.code)}
			r, _ := setupOrderRouter(d, nil)

			rr := do(t, r, "POST", "/orders/o-1/note", map[string]string{"note": "no ice"})
			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d", rr.Code, tt.status)
			}
			body := decodeError(t, rr)
			if body["code"] != string(tt.code) {
				t.Errorf("code: got %v, want %s", body["code"], tt.code)
			}
			if retryable, _ := body["retryable"].(bool); retryable != tt.retryable {
				t.Errorf("retryable: got %v, want %v", body["retryable"], tt.retryable)
			}
		})
	}
}

func TestTableSelect_CreatesOrder(t *testing.T) {
	d := &mockDispatcher{}
	r, _ := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/table-select", map[string]interface{}{
		"table": map[string]interface{}{"id": "t-1", "name": "T1"},
		"cart":  cart(),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var res service.TableSelectResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Outcome != service.OutcomeCreated || res.OrderID != "order-new" {
		t.Errorf("result: got %+v", res)
	}
}

func TestTableSelect_RetrievesActiveOrder(t *testing.T) {
	d := &mockDispatcher{}
	r, _ := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/table-select", map[string]interface{}{
		"table":          map[string]interface{}{"id": "t-1", "name": "T1"},
		"existing_order": map[string]interface{}{"order_id": "o-5", "status": enum.OrderStatusActive},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if d.last() != nil {
		t.Error("retrieving an order must not send a command")
	}
}

func TestTableSelect_MissingTable(t *testing.T) {
	r, _ := setupOrderRouter(&mockDispatcher{}, nil)

	rr := do(t, r, "POST", "/orders/table-select", map[string]interface{}{"cart": cart()})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateRetail(t *testing.T) {
	d := &mockDispatcher{}
	r, store := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/retail", map[string]interface{}{"items": cart()})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	m, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("marker: %v", err)
	}
	if m.OrderID != "order-new" {
		t.Errorf("marker order: got %s, want order-new", m.OrderID)
	}
}

func TestCreateRetail_EmptyCart(t *testing.T) {
	d := &mockDispatcher{}
	r, _ := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/retail", map[string]interface{}{"items": []interface{}{}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if d.last() != nil {
		t.Error("empty cart must not reach the backend")
	}
}

func TestComplete_WithPayments(t *testing.T) {
	d := &mockDispatcher{}
	r, _ := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/o-1/complete", map[string]interface{}{
		"receipt_number": "R-9",
		"payments": []map[string]interface{}{
			{"method": "CASH", "amount": "10.00"},
			{"method": "CARD", "amount": "5.00"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(d.sent) != 3 {
		t.Fatalf("commands: got %d, want 3", len(d.sent))
	}
	got := d.last().(command.CompleteOrder)
	if got.ReceiptNumber == nil || *got.ReceiptNumber != "R-9" {
		t.Errorf("receipt: got %v", got.ReceiptNumber)
	}
}

func TestComplete_PartialPayment(t *testing.T) {
	seen := 0
	d := &mockDispatcher{dispatchFn: func(env command.Envelope) command.Response {
		if env.Payload.CommandType() == command.TypeAddPayment {
			seen++
			if seen == 2 {
				return command.Failure(env.CommandID, command.CodeValidationFailed, "card declined")
			}
		}
		return accept(env)
	}}
	r, _ := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/o-1/complete", map[string]interface{}{
		"payments": []map[string]interface{}{
			{"method": "CASH", "amount": "10.00"},
			{"method": "CARD", "amount": "5.00"},
		},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	body := decodeError(t, rr)
	if body["committed_payments"] != float64(1) || body["total_payments"] != float64(2) {
		t.Errorf("body: got %v", body)
	}
}

func TestComplete_WithoutPayments(t *testing.T) {
	d := &mockDispatcher{}
	r, _ := setupOrderRouter(d, nil)

	rr := do(t, r, "POST", "/orders/o-1/complete", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if _, ok := d.last().(command.CompleteOrder); !ok {
		t.Errorf("last command: got %T", d.last())
	}
}

func TestGetOrder(t *testing.T) {
	f := &mockFetcher{fetchFn: func(ctx context.Context, id string) (*snapshot.Snapshot, error) {
		return &snapshot.Snapshot{
			OrderID: id,
			Status:  enum.OrderStatusActive,
			Source:  snapshot.SourceLive,
			Totals:  snapshot.Totals{Total: money.MustParse("12.00"), Remaining: money.MustParse("12.00")},
		}, nil
	}}
	r, _ := setupOrderRouter(&mockDispatcher{}, f)

	rr := do(t, r, "GET", "/orders/o-3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var got snapshot.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OrderID != "o-3" || got.Source != snapshot.SourceLive {
		t.Errorf("snapshot: got %+v", got)
	}
}

func TestGetOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"both not found", &snapshot.FetchError{OrderID: "o", Archive: snapshot.ErrNotFound, Fallback: snapshot.ErrNotFound}, http.StatusNotFound},
		{"live unreachable", &snapshot.FetchError{OrderID: "o", Archive: snapshot.ErrNotFound, Fallback: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{fetchFn: func(ctx context.Context, id string) (*snapshot.Snapshot, error) {
				return nil, tt.err
			}}
			r, _ := setupOrderRouter(&mockDispatcher{}, f)

			rr := do(t, r, "GET", "/orders/o", nil)
			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d", rr.Code, tt.status)
			}
		})
	}
}
