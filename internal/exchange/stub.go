package exchange

import (
	"context"
	"sync"
)

// StubPlacer accepts every order and records it, optionally failing with a
// scripted sequence of errors first. Used by tests and the dry-run binary.
type StubPlacer struct {
	mu      sync.Mutex
	orders  []Order
	scripts []error
	nextID  int64
}

// NewStubPlacer returns an empty stub that acknowledges everything.
func NewStubPlacer() *StubPlacer { return &StubPlacer{} }

// FailWith queues errors to return, in order, before accepting again.
func (s *StubPlacer) FailWith(errs ...error) {
	s.mu.Lock()
	s.scripts = append(s.scripts, errs...)
	s.mu.Unlock()
}

// PlaceOrder pops a scripted error if one is queued, otherwise records the
// order and acknowledges it.
func (s *StubPlacer) PlaceOrder(_ context.Context, order Order) (Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scripts) > 0 {
		err := s.scripts[0]
		s.scripts = s.scripts[1:]
		if err != nil {
			return Ack{}, err
		}
	}
	s.orders = append(s.orders, order)
	s.nextID++
	return Ack{OrderID: s.nextID, ClientOrderID: order.ClientOrderID}, nil
}

// Orders returns a copy of every accepted order.
func (s *StubPlacer) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// StaticMeta is a MetaSource backed by a fixed map.
type StaticMeta map[string]Meta

// InstrumentMeta returns the mapped filters or ErrMetadataUnavailable.
func (s StaticMeta) InstrumentMeta(_ context.Context, symbol string) (Meta, error) {
	if meta, ok := s[symbol]; ok {
		return meta, nil
	}
	return Meta{}, ErrMetadataUnavailable
}
