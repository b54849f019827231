package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func drain(t *testing.T, conn *Conn) []Event {
	t.Helper()
	var got []Event
	for {
		select {
		case evt, ok := <-conn.Events():
			if !ok {
				return got
			}
			got = append(got, evt)
		case <-time.After(50 * time.Millisecond):
			return got
		}
	}
}

func TestPublishTargetsOnlyMatchingRoom(t *testing.T) {
	b := New()
	ctx := context.Background()

	alice1 := b.Subscribe(ctx, "alice")
	alice2 := b.Subscribe(ctx, "alice")
	bob := b.Subscribe(ctx, "bob")

	b.Publish("order-status-update", "alice", map[string]string{"order_id": "o1"})

	if got := drain(t, alice1); len(got) != 1 || got[0].Name != "order-status-update" {
		t.Fatalf("alice1 events: %+v", got)
	}
	if got := drain(t, alice2); len(got) != 1 {
		t.Fatalf("alice2 events: %+v", got)
	}
	if got := drain(t, bob); len(got) != 0 {
		t.Fatalf("bob should receive nothing, got %+v", got)
	}
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	b := New()
	ctx := context.Background()

	conns := []*Conn{
		b.Subscribe(ctx, "alice"),
		b.Subscribe(ctx, "bob"),
		b.Subscribe(ctx, ""),
	}

	b.Publish("price-update", Broadcast, map[string]any{"crop": "wheat"})

	for i, conn := range conns {
		if got := drain(t, conn); len(got) != 1 {
			t.Fatalf("conn %d: expected 1 event, got %+v", i, got)
		}
	}
}

func TestUnregisteredConnectionReceivesNothing(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())

	conn := b.Subscribe(ctx, "carol")
	if b.ConnectionsFor("carol") != 1 {
		t.Fatalf("ConnectionsFor = %d, want 1", b.ConnectionsFor("carol"))
	}

	cancel()
	// Wait for the ctx-driven unregister to run.
	deadline := time.Now().Add(time.Second)
	for b.ConnectionsFor("carol") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was never unregistered")
		}
		time.Sleep(time.Millisecond)
	}

	b.Publish("order-status-update", "carol", nil)
	if got := drain(t, conn); len(got) != 0 {
		t.Fatalf("disconnected conn received %+v", got)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestRegisterMovesConnectionBetweenRooms(t *testing.T) {
	b := New()
	conn := b.Subscribe(context.Background(), "old-identity")

	b.Register(conn, "new-identity")

	if b.ConnectionsFor("old-identity") != 0 {
		t.Fatal("connection still counted under old identity")
	}
	if b.ConnectionsFor("new-identity") != 1 {
		t.Fatal("connection missing from new identity room")
	}

	b.Publish("ping", "old-identity", nil)
	b.Publish("ping", "new-identity", nil)
	got := drain(t, conn)
	if len(got) != 1 || got[0].Target != "new-identity" {
		t.Fatalf("expected exactly the new-identity event, got %+v", got)
	}
}

func TestLateSubscriberMissesEarlierPublish(t *testing.T) {
	b := New()
	b.Publish("news-update", "dana", "headline")

	conn := b.Subscribe(context.Background(), "dana")
	if got := drain(t, conn); len(got) != 0 {
		t.Fatalf("late subscriber got replayed events: %+v", got)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	conn := b.Subscribe(context.Background(), "eve")

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*4; i++ {
			b.Publish("tick", "eve", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if got := drain(t, conn); len(got) > sendBuffer {
		t.Fatalf("received %d events, buffer is %d", len(got), sendBuffer)
	}
}

func TestConcurrentRegisterPublishUnregister(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("id-%d", i%5)
			ctx, cancel := context.WithCancel(context.Background())
			conn := b.Subscribe(ctx, room)
			for j := 0; j < 50; j++ {
				b.Publish("tick", room, j)
				b.Publish("tick", Broadcast, j)
				_ = b.ConnectionsFor(room)
			}
			b.Register(conn, fmt.Sprintf("id-%d", (i+1)%5))
			cancel()
		}(i)
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for b.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Len = %d after all disconnects", b.Len())
		}
		time.Sleep(time.Millisecond)
	}
}
