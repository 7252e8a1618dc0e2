package command

import "sync/atomic"

// Gate reasons.
const (
	ReasonSyncing      = "synchronization in progress"
	ReasonDisconnected = "not connected to server"
)

// GateStatus is the answer to "may a command be sent right now".
type GateStatus struct {
	CanExecute bool   `json:"can_execute"`
	Reason     string `json:"reason,omitempty"`
}

// GateChecker is consulted before every dispatch.
type GateChecker interface {
	Check() GateStatus
}

// Gate is the process-wide execution switch. Check does no I/O. Between Check
// and the actual send the state may flip; the backend enforces ordering on
// its own log, so the gate is only backpressure.
type Gate struct {
	syncing   atomic.Bool
	connected atomic.Bool
}

// NewGate returns a connected, idle gate.
func NewGate() *Gate {
	g := &Gate{}
	g.connected.Store(true)
	return g
}

// SetSyncing marks a local synchronization as running or finished.
// Commands are blocked while it runs.
func (g *Gate) SetSyncing(v bool) { g.syncing.Store(v) }

// SetConnected records whether the backend connection is up.
func (g *Gate) SetConnected(v bool) { g.connected.Store(v) }

// Check reports whether commands may currently be dispatched.
func (g *Gate) Check() GateStatus {
	if g.syncing.Load() {
		return GateStatus{CanExecute: false, Reason: ReasonSyncing}
	}
	if !g.connected.Load() {
		return GateStatus{CanExecute: false, Reason: ReasonDisconnected}
	}
	return GateStatus{CanExecute: true}
}
