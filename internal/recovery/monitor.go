// Package recovery resumes a retail checkout whose order was opened but never
// concluded locally, typically because the terminal restarted mid-sale.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/marker"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyRan is returned when Run is called after the monitor has reached
// a final state, or while another Run is in progress.
var ErrAlreadyRan = errors.New("recovery monitor already ran")

// State is the monitor's position in its state machine.
type State string

const (
	StateIdle             State = "IDLE"
	StatePolling          State = "POLLING"
	StateResolvedActive   State = "RESOLVED_ACTIVE"
	StateResolvedTerminal State = "RESOLVED_TERMINAL"
	StateTimedOut         State = "TIMED_OUT"
	StateCancelled        State = "CANCELLED"
)

// OrderLookup finds an order by id. Any error counts as "not found yet".
// Satisfied by *snapshot.Reconstructor.
type OrderLookup interface {
	Fetch(ctx context.Context, orderID string) (*snapshot.Snapshot, error)
}

// Observer receives the final state of each run. Implemented by internal/metrics.
type Observer interface {
	RecoveryFinished(state State, attempts int)
}

// Config bounds the polling loop.
type Config struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultConfig polls ten times, one second apart.
func DefaultConfig() Config {
	return Config{MaxAttempts: 10, Interval: time.Second}
}

// Result describes how a run ended.
type Result struct {
	State    State              `json:"state"`
	OrderID  string             `json:"order_id,omitempty"`
	Attempts int                `json:"attempts"`
	Order    *snapshot.Snapshot `json:"order,omitempty"`
}

// Monitor polls for the order named by the pending retail marker.
type Monitor struct {
	store    marker.Store
	lookup   OrderLookup
	cfg      Config
	onResume func(*snapshot.Snapshot)
	observer Observer
	logger   *log.Entry

	mu      sync.RWMutex
	running bool
	done    bool
	result  Result
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(m *Monitor) { m.cfg = cfg }
}

// WithOnResume sets the callback invoked once when an active retail order is
// found. It runs on the polling goroutine.
func WithOnResume(fn func(*snapshot.Snapshot)) Option {
	return func(m *Monitor) { m.onResume = fn }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithLogger sets the log entry.
func WithLogger(l *log.Entry) Option {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor creates a Monitor in the Idle state.
func NewMonitor(store marker.Store, lookup OrderLookup, opts ...Option) *Monitor {
	m := &Monitor{
		store:  store,
		lookup: lookup,
		cfg:    DefaultConfig(),
		result: Result{State: StateIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.MaxAttempts < 1 {
		m.cfg.MaxAttempts = 1
	}
	if m.logger == nil {
		m.logger = log.New().WithField("component", "recovery")
	}
	return m
}

// Status returns the latest result.
func (m *Monitor) Status() Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

// Run checks for a pending marker and, if one exists, polls until the order
// resolves, the attempts run out, or ctx is cancelled. A run that ends in
// Cancelled leaves the marker in place and may be started again; any other
// final state makes later calls return ErrAlreadyRan.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	m.mu.Lock()
	if m.running || m.done {
		m.mu.Unlock()
		return m.Status(), ErrAlreadyRan
	}
	m.running = true
	m.mu.Unlock()

	res, err := m.run(ctx)

	m.mu.Lock()
	m.running = false
	m.done = err == nil && res.State != StateCancelled
	m.result = res
	m.mu.Unlock()

	if err == nil && res.State != StateIdle && m.observer != nil {
		m.observer.RecoveryFinished(res.State, res.Attempts)
	}
	return res, err
}

func (m *Monitor) run(ctx context.Context) (Result, error) {
	mk, err := m.store.Get(ctx)
	if errors.Is(err, marker.ErrNoMarker) {
		m.logger.Debug("no pending retail order")
		return Result{State: StateIdle}, nil
	}
	if err != nil {
		return Result{State: StateIdle}, fmt.Errorf("read pending marker: %w", err)
	}

	entry := m.logger.WithField("order_id", mk.OrderID)
	m.transition(entry, Result{State: StatePolling, OrderID: mk.OrderID})

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return m.finish(entry, Result{State: StateCancelled, OrderID: mk.OrderID, Attempts: attempt - 1}), nil
		}

		snap, err := m.lookup.Fetch(ctx, mk.OrderID)
		if err == nil {
			res := Result{OrderID: mk.OrderID, Attempts: attempt, Order: snap}
			if snap.Status == enum.OrderStatusActive && snap.IsRetail {
				res.State = StateResolvedActive
				res = m.finish(entry, res)
				if m.onResume != nil {
					m.onResume(snap)
				}
				return res, nil
			}
			res.State = StateResolvedTerminal
			if err := m.clear(ctx, mk.OrderID); err != nil {
				return res, err
			}
			return m.finish(entry.WithField("status", snap.Status), res), nil
		}
		if ctx.Err() != nil {
			return m.finish(entry, Result{State: StateCancelled, OrderID: mk.OrderID, Attempts: attempt}), nil
		}
		entry.WithError(err).WithField("attempt", attempt).Debug("pending order not found yet")

		if attempt == m.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return m.finish(entry, Result{State: StateCancelled, OrderID: mk.OrderID, Attempts: attempt}), nil
		case <-time.After(m.cfg.Interval):
		}
	}

	res := Result{State: StateTimedOut, OrderID: mk.OrderID, Attempts: m.cfg.MaxAttempts}
	if err := m.clear(ctx, mk.OrderID); err != nil {
		return res, err
	}
	return m.finish(entry, res), nil
}

func (m *Monitor) clear(ctx context.Context, orderID string) error {
	if _, err := marker.ClearIf(context.WithoutCancel(ctx), m.store, orderID); err != nil {
		return fmt.Errorf("clear pending marker: %w", err)
	}
	return nil
}

func (m *Monitor) transition(entry *log.Entry, res Result) {
	m.mu.Lock()
	m.result = res
	m.mu.Unlock()
	entry.WithField("state", res.State).Info("recovery state changed")
}

func (m *Monitor) finish(entry *log.Entry, res Result) Result {
	entry.WithFields(log.Fields{
		"state":    res.State,
		"attempts": res.Attempts,
	}).Info("recovery finished")
	return res
}
