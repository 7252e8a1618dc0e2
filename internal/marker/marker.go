// Package marker persists the Pending Retail Order Marker: the single local
// note that a retail order was opened but its completion has not yet been
// confirmed on this terminal.
package marker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoMarker is returned by Get when no marker is stored.
var ErrNoMarker = errors.New("no pending retail order marker")

// Marker names the retail order awaiting confirmation.
type Marker struct {
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a local get/set/clear slot holding at most one marker.
// Set replaces any existing marker.
type Store interface {
	Get(ctx context.Context) (Marker, error)
	Set(ctx context.Context, m Marker) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store used by tests and ephemeral terminals.
type MemoryStore struct {
	mu     sync.Mutex
	marker *Marker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil {
		return Marker{}, ErrNoMarker
	}
	return *s.marker, nil
}

func (s *MemoryStore) Set(_ context.Context, m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &m
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
	return nil
}

// ClearIf removes the stored marker only when it names orderID.
// Reports whether a marker was removed.
func ClearIf(ctx context.Context, s Store, orderID string) (bool, error) {
	m, err := s.Get(ctx)
	if errors.Is(err, ErrNoMarker) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if m.OrderID != orderID {
		return false, nil
	}
	if err := s.Clear(ctx); err != nil {
		return false, err
	}
	return true, nil
}
