package orders

import (
	"context"
	"sync"
)

// InMemoryStore is the volatile fallback used when no durable store is
// reachable. Contents are lost on restart.
type InMemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[string]*Order)}
}

func (s *InMemoryStore) Create(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

func (s *InMemoryStore) ListByCustomer(ctx context.Context, customerID string) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Order
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			res = append(res, order.Clone())
		}
	}
	return res, nil
}

// UpdateWith holds the store lock for the duration of fn, which serializes
// transitions: no two concurrent updates on the same order interleave.
func (s *InMemoryStore) UpdateWith(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	draft := order.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	s.orders[id] = draft
	return draft.Clone(), nil
}

func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders), nil
}
