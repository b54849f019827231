package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrolink.org/internal/auth"
	"agrolink.org/internal/bus"
)

func waitForConn(t *testing.T, b *bus.Bus, room string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.ConnectionsFor(room) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no connection registered for room %q", room)
}

func TestStreamRequiresIdentity(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/stream", nil)
	rr := httptest.NewRecorder()
	a.Stream(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
}

func TestStreamRejectsForeignRoom(t *testing.T) {
	a := newTestAPI(t)
	identity := auth.Identity{ID: "cust-1", Role: auth.RoleCustomer}

	req := httptest.NewRequest(http.MethodGet, "/v1/stream?room=cust-2", nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
	rr := httptest.NewRecorder()
	a.Stream(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rr.Code)
	}
}

func TestStreamDeliversTargetedEvents(t *testing.T) {
	a := newTestAPI(t)
	identity := auth.Identity{ID: "cust-7", Role: auth.RoleCustomer}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/stream", nil)
	req = req.WithContext(auth.ContextWithIdentity(ctx, identity))
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Stream(rr, req)
	}()

	waitForConn(t, a.bus, identity.ID)
	a.bus.Publish("order-status-update", identity.ID, map[string]any{"order_id": "AGO-1"})
	a.bus.Publish("price-update", bus.Broadcast, map[string]any{"produce": "apples"})
	a.bus.Publish("order-status-update", "someone-else", map[string]any{"order_id": "AGO-2"})

	// Let delivery settle before tearing the stream down.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not exit on context cancel")
	}

	body := rr.Body.String()
	if !strings.HasPrefix(body, ": stream started\n\n") {
		t.Fatalf("missing stream preamble: %q", body)
	}
	if !strings.Contains(body, "event: order-status-update\n") {
		t.Fatalf("targeted event not delivered: %q", body)
	}
	if !strings.Contains(body, "event: price-update\n") {
		t.Fatalf("broadcast not delivered: %q", body)
	}
	if strings.Contains(body, "AGO-2") {
		t.Fatalf("foreign-room event leaked: %q", body)
	}
	if !strings.Contains(body, `"order_id":"AGO-1"`) {
		t.Fatalf("payload missing from data frame: %q", body)
	}
	if a.bus.ConnectionsFor(identity.ID) != 0 {
		t.Fatal("connection not unregistered after disconnect")
	}
}
