package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/recovery"
)

// GateController reads and flips the command gate. Satisfied by *command.Gate.
type GateController interface {
	Check() command.GateStatus
	SetSyncing(v bool)
	SetConnected(v bool)
}

// RecoveryReporter exposes the recovery monitor state. Satisfied by *recovery.Monitor.
type RecoveryReporter interface {
	Status() recovery.Result
}

// TerminalHandler serves terminal state: the gate and the recovery monitor.
type TerminalHandler struct {
	gate     GateController
	recovery RecoveryReporter
}

// NewTerminalHandler creates a new TerminalHandler. recovery may be nil.
func NewTerminalHandler(gate GateController, recovery RecoveryReporter) *TerminalHandler {
	return &TerminalHandler{gate: gate, recovery: recovery}
}

// RegisterRoutes registers gate and recovery endpoints. guard wraps the gate
// update, typically a role check; it may be nil.
func (h *TerminalHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Get("/gate", h.GetGate)
	if guard != nil {
		r.With(guard).Put("/gate", h.UpdateGate)
	} else {
		r.Put("/gate", h.UpdateGate)
	}
	r.Get("/recovery", h.GetRecovery)
}

// updateGateRequest carries the sync and connectivity flags. Omitted fields
// keep their current value.
type updateGateRequest struct {
	Syncing   *bool `json:"syncing"`
	Connected *bool `json:"connected"`
}

// GetGate handles GET /gate.
func (h *TerminalHandler) GetGate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gate.Check())
}

// UpdateGate handles PUT /gate.
func (h *TerminalHandler) UpdateGate(w http.ResponseWriter, r *http.Request) {
	var req updateGateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Syncing == nil && req.Connected == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "syncing or connected is required"})
		return
	}

	if req.Syncing != nil {
		h.gate.SetSyncing(*req.Syncing)
	}
	if req.Connected != nil {
		h.gate.SetConnected(*req.Connected)
	}
	writeJSON(w, http.StatusOK, h.gate.Check())
}

// GetRecovery handles GET /recovery.
func (h *TerminalHandler) GetRecovery(w http.ResponseWriter, r *http.Request) {
	if h.recovery == nil {
		writeJSON(w, http.StatusOK, recovery.Result{State: recovery.StateIdle})
		return
	}
	writeJSON(w, http.StatusOK, h.recovery.Status())
}
