package orders

import "context"

// Store is the pluggable persistence contract. The service is indifferent
// to which implementation backs it, given the same read/write semantics.
type Store interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Order, error)
	// UpdateWith loads the order, applies fn under per-order exclusive
	// access and persists the result atomically. When fn returns an error
	// the order is left untouched and the error is returned as-is.
	UpdateWith(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
	// Count reports the number of stored orders (admin statistics).
	Count(ctx context.Context) (int, error)
}
