package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"agrolink.org/internal/auth"
)

// Stream handles Server-Sent Events for realtime notifications. The caller's
// identity id is its room: targeted events for that identity plus broadcasts
// are pushed as they are published. Disconnect ends the request context and
// unregisters the connection.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.bus == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	// A client may request a room explicitly; it must be its own identity
	// unless it is an admin.
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		room = identity.ID
	}
	if room != identity.ID && identity.Role != auth.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "cannot join another identity's room")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := a.bus.Subscribe(ctx, room)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range conn.Events() {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: " + event.Name + "\n"))
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
