// Package bus is the in-process publish/subscribe fabric. Connections
// register under at most one identity ("room"); publishes address either a
// single room or every registered connection. Delivery is at-most-once and
// fire-and-forget: there is no backlog, no replay and no acknowledgement.
package bus

import (
	"context"
	"sync"
	"time"

	"agrolink.org/internal/obs"
)

// Broadcast targets every currently-registered connection across all rooms.
const Broadcast = "*"

// sendBuffer bounds per-connection queueing before events are dropped.
const sendBuffer = 16

// Event is an ephemeral named payload addressed to a room or to Broadcast.
type Event struct {
	Name      string    `json:"event"`
	Target    string    `json:"-"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is one live subscriber connection.
type Conn struct {
	id   int
	room string
	ch   chan Event
}

// Events returns the channel delivering this connection's events. It is
// closed when the connection is unregistered.
func (c *Conn) Events() <-chan Event { return c.ch }

// Room returns the identity the connection is currently registered under,
// or the empty string.
func (c *Conn) Room() string { return c.room }

// Bus tracks room membership and fans events out to subscribers.
type Bus struct {
	mu    sync.RWMutex
	conns map[int]*Conn
	rooms map[string]map[int]*Conn
	next  int
}

// New initialises an empty bus.
func New() *Bus {
	return &Bus{
		conns: make(map[int]*Conn),
		rooms: make(map[string]map[int]*Conn),
	}
}

// Subscribe registers a connection under identityID (may be empty for a
// connection that only wants broadcasts). The connection is unregistered and
// its channel closed when ctx ends, which covers abnormal disconnects too.
func (b *Bus) Subscribe(ctx context.Context, identityID string) *Conn {
	conn := &Conn{ch: make(chan Event, sendBuffer)}

	b.mu.Lock()
	conn.id = b.next
	b.next++
	b.conns[conn.id] = conn
	b.joinLocked(conn, identityID)
	b.mu.Unlock()

	obs.StreamConnections.Inc()

	go func() {
		<-ctx.Done()
		b.Unregister(conn)
	}()

	return conn
}

// Register moves the connection into identityID's room, clearing any
// previous association first. A connection is in at most one room.
func (b *Bus) Register(conn *Conn, identityID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[conn.id]; !ok {
		return
	}
	b.leaveLocked(conn)
	b.joinLocked(conn, identityID)
}

// Unregister removes the connection entirely and closes its channel.
// Safe to call more than once.
func (b *Bus) Unregister(conn *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[conn.id]; !ok {
		return
	}
	b.leaveLocked(conn)
	delete(b.conns, conn.id)
	close(conn.ch)
	obs.StreamConnections.Dec()
}

func (b *Bus) joinLocked(conn *Conn, identityID string) {
	conn.room = identityID
	if identityID == "" {
		return
	}
	room, ok := b.rooms[identityID]
	if !ok {
		room = make(map[int]*Conn)
		b.rooms[identityID] = room
	}
	room[conn.id] = conn
}

func (b *Bus) leaveLocked(conn *Conn) {
	if conn.room == "" {
		return
	}
	if room, ok := b.rooms[conn.room]; ok {
		delete(room, conn.id)
		if len(room) == 0 {
			delete(b.rooms, conn.room)
		}
	}
	conn.room = ""
}

// ConnectionsFor reports how many live connections identityID currently has.
func (b *Bus) ConnectionsFor(identityID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[identityID])
}

// Len reports the total number of registered connections.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Publish fans the event out to the target's connections as of this call.
// Connections registering later never receive it. Publish never blocks:
// a slow subscriber has the event dropped rather than delaying others.
func (b *Bus) Publish(name, target string, payload any) {
	evt := Event{
		Name:      name,
		Target:    target,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obs.EventsPublished.WithLabelValues(name).Inc()

	if target == Broadcast {
		for _, conn := range b.conns {
			deliver(conn, evt)
		}
		return
	}
	for _, conn := range b.rooms[target] {
		deliver(conn, evt)
	}
}

func deliver(conn *Conn, evt Event) {
	select {
	case conn.ch <- evt:
	default:
		// Drop when subscriber is slow to avoid blocking.
	}
}
