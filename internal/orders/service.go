package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agrolink.org/internal/obs"
)

// EventOrderStatusUpdate is published to the order's customer on every
// successful status change.
const EventOrderStatusUpdate = "order-status-update"

const defaultDeliveryFee = 500

// Publisher delivers events to the notification fabric.
type Publisher interface {
	Publish(name, target string, payload any)
}

// Notifier is the outbound email/SMS side channel. Send failures are logged
// by the service and never abort the triggering transition.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// StatusUpdate is the payload of an EventOrderStatusUpdate event.
type StatusUpdate struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Service validates and applies order placements and status transitions.
type Service struct {
	store       Store
	pub         Publisher
	notifier    Notifier
	deliveryFee int64
	now         func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithNotifier enables the best-effort outbound notification side channel.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDeliveryFee overrides the flat delivery fee (minor units).
func WithDeliveryFee(fee int64) Option {
	return func(s *Service) {
		if fee >= 0 {
			s.deliveryFee = fee
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the state machine to its store and event publisher.
func NewService(store Store, pub Publisher, opts ...Option) *Service {
	s := &Service{
		store:       store,
		pub:         pub,
		deliveryFee: defaultDeliveryFee,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Place creates an order in the placed state with a single seed timeline
// entry. Duplicate submissions create duplicate orders; there is no
// idempotency key.
func (s *Service) Place(ctx context.Context, customerID string, items []Item, deliveryAddress string) (*Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidOrder)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(deliveryAddress) == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrInvalidOrder)
	}

	var subtotal int64
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return nil, fmt.Errorf("%w: item product id is required", ErrInvalidOrder)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be > 0", ErrInvalidOrder)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item unit price must be >= 0", ErrInvalidOrder)
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	now := s.now().UTC()
	order := &Order{
		ID:              NewNumber(now),
		CustomerID:      customerID,
		Items:           append([]Item(nil), items...),
		Subtotal:        subtotal,
		DeliveryFee:     s.deliveryFee,
		Total:           subtotal + s.deliveryFee,
		Status:          StatusPlaced,
		DeliveryAddress: strings.TrimSpace(deliveryAddress),
		Timeline: []TimelineEntry{
			{Status: StatusPlaced, At: now, Notes: "Order placed"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	s.announce(ctx, order, "Your order "+order.ID+" has been placed")
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// ListByCustomer returns the customer's orders.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]*Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// Count reports the number of stored orders.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Transition applies one status change. Unreachable targets and transitions
// out of a terminal state fail with ErrInvalidTransition and leave the order
// unmodified. On success exactly one timeline entry is appended and an
// order-status-update event is published to the order's customer.
func (s *Service) Transition(ctx context.Context, id string, newStatus Status, notes string) (*Order, error) {
	if _, err := ParseStatus(string(newStatus)); err != nil {
		obs.OrderTransitions.WithLabelValues(string(newStatus), "rejected").Inc()
		return nil, err
	}

	order, err := s.store.UpdateWith(ctx, id, func(o *Order) error {
		if !CanTransition(o.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
		}
		now := s.now().UTC()
		o.Status = newStatus
		o.UpdatedAt = now
		o.Timeline = append(o.Timeline, TimelineEntry{Status: newStatus, At: now, Notes: notes})
		return nil
	})
	if err != nil {
		obs.OrderTransitions.WithLabelValues(string(newStatus), "rejected").Inc()
		return nil, err
	}
	obs.OrderTransitions.WithLabelValues(string(newStatus), "applied").Inc()

	s.announce(ctx, order, "Your order "+order.ID+" is now "+string(order.Status))
	return order, nil
}

// announce publishes the realtime event and fires the outbound notifier.
// Both are side channels: neither failure aborts the business action.
func (s *Service) announce(ctx context.Context, order *Order, message string) {
	if s.pub != nil {
		s.pub.Publish(EventOrderStatusUpdate, order.CustomerID, StatusUpdate{
			OrderID: order.ID,
			Status:  order.Status,
			Message: message,
		})
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, order.CustomerID, "Order "+order.ID, message); err != nil {
		obs.Warn("order notification failed", map[string]any{
			"order_id": order.ID,
			"status":   string(order.Status),
			"error":    err.Error(),
		})
	}
}
