package httpapi

import (
	"net/http"
	"strings"
	"time"

	"agrolink.org/internal/audit"
	"agrolink.org/internal/auth"
	"agrolink.org/internal/ids"
)

type inventorySubmission struct {
	ID        string    `json:"id"`
	FarmerID  string    `json:"farmer_id"`
	Produce   string    `json:"produce"`
	Unit      string    `json:"unit"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

type inventoryRequest struct {
	Produce   string `json:"produce"`
	Unit      string `json:"unit"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// handleInventory accepts produce submissions from farmers. Route is gated
// to {farmer} by RequireRole.
func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		var req inventoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Produce) == "" {
			writeError(w, r, http.StatusBadRequest, "produce is required")
			return
		}
		if req.Quantity <= 0 {
			writeError(w, r, http.StatusBadRequest, "quantity must be > 0")
			return
		}
		if req.UnitPrice < 0 {
			writeError(w, r, http.StatusBadRequest, "unit_price must be >= 0")
			return
		}

		sub := inventorySubmission{
			ID:        ids.New(),
			FarmerID:  identity.ID,
			Produce:   strings.TrimSpace(req.Produce),
			Unit:      strings.TrimSpace(req.Unit),
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			CreatedAt: time.Now().UTC(),
		}
		a.invMu.Lock()
		a.inventory = append(a.inventory, sub)
		a.invMu.Unlock()

		_ = audit.LogEvent(r.Context(), "inventory.submit", map[string]any{
			"submission_id": sub.ID,
			"produce":       sub.Produce,
			"quantity":      sub.Quantity,
		})
		writeJSON(w, http.StatusCreated, sub)

	case http.MethodGet:
		a.invMu.Lock()
		var own []inventorySubmission
		for _, sub := range a.inventory {
			if sub.FarmerID == identity.ID {
				own = append(own, sub)
			}
		}
		a.invMu.Unlock()
		if own == nil {
			own = []inventorySubmission{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": own})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleLogisticsRoutes lists orders awaiting movement, grouped by status.
// Route is gated to {logistics, admin} by RequireRole.
func (a *API) handleLogisticsRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of": time.Now().UTC(),
		"routes": []map[string]any{
			{"name": "north-valley", "window": "06:00-10:00", "capacity": 24},
			{"name": "riverside", "window": "10:00-14:00", "capacity": 18},
			{"name": "city-depot", "window": "14:00-18:00", "capacity": 30},
		},
	})
}

// handleAdminStats reports operational counters. Route is gated to {admin}.
func (a *API) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	count, err := a.orders.Count(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.invMu.Lock()
	submissions := len(a.inventory)
	a.invMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"orders":                count,
		"inventory_submissions": submissions,
		"stream_connections":    a.bus.Len(),
		"uptime_seconds":        int(time.Since(a.startedAt).Seconds()),
	})
}
