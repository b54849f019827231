package orders

import (
	"errors"
	"fmt"
	mathrand "math/rand"
	"time"
)

// Status is an order's position in the fulfilment state machine.
type Status string

const (
	StatusPlaced     Status = "placed"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// transitions is the full state graph: a linear happy path plus
// cancellation from any non-terminal state. delivered and cancelled are
// terminal.
var transitions = map[Status][]Status{
	StatusPlaced:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, raw)
	}
	return s, nil
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is one order line. Prices are minor units; no floats.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// TimelineEntry is one append-only audit record of a status change.
type TimelineEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Notes  string    `json:"notes,omitempty"`
}

// Order is mutated only through Service.Transition; it is never deleted,
// cancellation is a terminal status. The last timeline entry's status always
// equals Status.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	Items           []Item          `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	DeliveryFee     int64           `json:"delivery_fee"`
	Total           int64           `json:"total"`
	Status          Status          `json:"status"`
	DeliveryAddress string          `json:"delivery_address"`
	Timeline        []TimelineEntry `json:"timeline"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out across goroutines.
func (o *Order) Clone() *Order {
	out := *o
	out.Items = append([]Item(nil), o.Items...)
	out.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	return &out
}

var (
	// ErrNotFound indicates an unknown order id.
	ErrNotFound = errors.New("orders: not found")
	// ErrInvalidTransition indicates a target state not reachable from the
	// order's current state.
	ErrInvalidTransition = errors.New("orders: invalid transition")
	// ErrInvalidOrder indicates a malformed placement request.
	ErrInvalidOrder = errors.New("orders: invalid order")
)

const numberPrefix = "AGO"

// NewNumber generates an order number: fixed prefix, time-derived digits and
// a random suffix. Collisions are treated as negligible, not deduplicated.
func NewNumber(now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, now.UTC().Format("20060102150405"), mathrand.Intn(10000))
}
