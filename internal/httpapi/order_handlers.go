package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"agrolink.org/internal/audit"
	"agrolink.org/internal/auth"
	"agrolink.org/internal/orders"
)

type placeOrderRequest struct {
	Items           []orders.Item `json:"items"`
	DeliveryAddress string        `json:"delivery_address"`
}

type transitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

func (a *API) handleOrdersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.placeOrder(w, r)
	case http.MethodGet:
		a.listOrders(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrderResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/status") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/status"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transitionOrder(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getOrder(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := auth.Authorize(identity, auth.RoleCustomer); err != nil {
		writeError(w, r, http.StatusForbidden, "only customers can place orders")
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	order, err := a.orders.Place(r.Context(), identity.ID, req.Items, req.DeliveryAddress)
	if err != nil {
		handleOrdersError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "orders.place", map[string]any{
		"order_id": order.ID,
		"total":    order.Total,
	})

	w.Header().Set("Location", "/v1/orders/"+order.ID)
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	list, err := a.orders.ListByCustomer(r.Context(), identity.ID)
	if err != nil {
		handleOrdersError(w, r, err)
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	order, err := a.orders.Get(r.Context(), id)
	if err != nil {
		handleOrdersError(w, r, err)
		return
	}
	// Customers see only their own orders; operational roles see all.
	if order.CustomerID != identity.ID {
		if err := auth.Authorize(identity, auth.RoleAdmin, auth.RoleLogistics, auth.RoleFarmer); err != nil {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) transitionOrder(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	newStatus, err := orders.ParseStatus(strings.TrimSpace(strings.ToLower(req.Status)))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	// Operational roles drive fulfilment; a customer may only cancel their
	// own order.
	if err := auth.Authorize(identity, auth.RoleFarmer, auth.RoleLogistics, auth.RoleAdmin); err != nil {
		if newStatus != orders.StatusCancelled {
			writeError(w, r, http.StatusForbidden, "insufficient role")
			return
		}
		order, err := a.orders.Get(r.Context(), id)
		if err != nil {
			handleOrdersError(w, r, err)
			return
		}
		if order.CustomerID != identity.ID {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
	}

	order, err := a.orders.Transition(r.Context(), id, newStatus, req.Notes)
	if err != nil {
		handleOrdersError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "orders.transition", map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
	})

	writeJSON(w, http.StatusOK, order)
}

func handleOrdersError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrInvalidOrder):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
