package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agrolink.org/internal/auth"
	"agrolink.org/internal/bus"
	"agrolink.org/internal/orders"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	t.Setenv("AGROLINK_AUTH_SECRET", "handlers-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	eventBus := bus.New()
	svc := orders.NewService(orders.NewInMemoryStore(), eventBus)
	return New(ReadyProbe{}, "test", svc, eventBus, auth.NewInMemoryDirectory())
}

func doJSON(t *testing.T, a *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.withAuth(a.mux).ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, a *API, role string) (string, auth.Identity) {
	t.Helper()
	rr := doJSON(t, a, http.MethodPost, "/v1/auth/login", "", map[string]string{"role": role})
	if rr.Code != http.StatusOK {
		t.Fatalf("login(%s): status %d body %s", role, rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token, resp.Identity
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	rr := doJSON(t, a, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rr.Code)
	}
}

func TestReadyzReportsProbeFailure(t *testing.T) {
	t.Setenv("AGROLINK_AUTH_SECRET", "s")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	eventBus := bus.New()
	svc := orders.NewService(orders.NewInMemoryStore(), eventBus)
	probe := ReadyProbe{Check: func(ctx context.Context) error { return errors.New("store down") }}
	a := New(probe, "test", svc, eventBus, nil)

	rr := doJSON(t, a, http.MethodGet, "/readyz", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status %d, want 503", rr.Code)
	}
}

func TestLoginRejectsBogusRole(t *testing.T) {
	a := newTestAPI(t)
	rr := doJSON(t, a, http.MethodPost, "/v1/auth/login", "", map[string]string{"role": "bogus"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}

func TestLoginWithDirectoryCredentials(t *testing.T) {
	a := newTestAPI(t)
	dir := a.directory.(*auth.InMemoryDirectory)
	if _, err := dir.Seed("Marat", "marat@agro.example", "dry-summer", auth.RoleLogistics); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	rr := doJSON(t, a, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "marat@agro.example", "password": "dry-summer",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, a, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "marat@agro.example", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status %d, want 401", rr.Code)
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	a := newTestAPI(t)
	rr := doJSON(t, a, http.MethodGet, "/v1/auth/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
}

func TestProtectedRouteWithInvalidToken(t *testing.T) {
	a := newTestAPI(t)
	rr := doJSON(t, a, http.MethodGet, "/v1/auth/me", "not.a.token", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rr.Code)
	}
}

func TestMeEchoesIdentity(t *testing.T) {
	a := newTestAPI(t)
	token, identity := login(t, a, "customer")

	rr := doJSON(t, a, http.MethodGet, "/v1/auth/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var got auth.Identity
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != identity.ID || got.Role != auth.RoleCustomer {
		t.Fatalf("me = %+v, want %+v", got, identity)
	}
}

func TestRoleGatedRoutes(t *testing.T) {
	a := newTestAPI(t)
	farmerToken, _ := login(t, a, "farmer")
	adminToken, _ := login(t, a, "admin")

	// Farmer on a {logistics, admin} route is forbidden.
	rr := doJSON(t, a, http.MethodGet, "/v1/logistics/routes", farmerToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("farmer on logistics route: %d, want 403", rr.Code)
	}

	// Same farmer on the {farmer} route succeeds.
	rr = doJSON(t, a, http.MethodPost, "/v1/inventory", farmerToken, map[string]any{
		"produce": "carrots", "unit": "kg", "quantity": 40, "unit_price": 150,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("farmer inventory submit: %d body %s", rr.Code, rr.Body.String())
	}

	// Admin passes the {logistics, admin} route and the {admin} route.
	rr = doJSON(t, a, http.MethodGet, "/v1/logistics/routes", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin on logistics route: %d", rr.Code)
	}
	rr = doJSON(t, a, http.MethodGet, "/v1/admin/stats", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin stats: %d", rr.Code)
	}

	// Farmer on the {admin} route is forbidden.
	rr = doJSON(t, a, http.MethodGet, "/v1/admin/stats", farmerToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("farmer on admin stats: %d, want 403", rr.Code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	customerToken, _ := login(t, a, "customer")
	farmerToken, _ := login(t, a, "farmer")

	// Place.
	rr := doJSON(t, a, http.MethodPost, "/v1/orders", customerToken, map[string]any{
		"items": []map[string]any{
			{"product_id": "plums-1kg", "name": "Plums", "quantity": 3, "unit_price": 380},
		},
		"delivery_address": "7 Hilltop",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("place: %d body %s", rr.Code, rr.Body.String())
	}
	var placed orders.Order
	if err := json.Unmarshal(rr.Body.Bytes(), &placed); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if placed.Status != orders.StatusPlaced {
		t.Fatalf("status = %s", placed.Status)
	}

	// A farmer cannot place orders.
	rr = doJSON(t, a, http.MethodPost, "/v1/orders", farmerToken, map[string]any{
		"items":            []map[string]any{{"product_id": "x", "quantity": 1}},
		"delivery_address": "nowhere",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("farmer place: %d, want 403", rr.Code)
	}

	// Farmer confirms.
	rr = doJSON(t, a, http.MethodPost, "/v1/orders/"+placed.ID+"/status", farmerToken, map[string]any{
		"status": "confirmed", "notes": "packing tomorrow",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: %d body %s", rr.Code, rr.Body.String())
	}

	// Invalid jump is a conflict.
	rr = doJSON(t, a, http.MethodPost, "/v1/orders/"+placed.ID+"/status", farmerToken, map[string]any{
		"status": "delivered",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("invalid transition: %d, want 409", rr.Code)
	}

	// Customer cancels their own order.
	rr = doJSON(t, a, http.MethodPost, "/v1/orders/"+placed.ID+"/status", customerToken, map[string]any{
		"status": "cancelled", "notes": "found closer farm",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: %d body %s", rr.Code, rr.Body.String())
	}

	// Customer may not drive fulfilment statuses.
	rr = doJSON(t, a, http.MethodPost, "/v1/orders/"+placed.ID+"/status", customerToken, map[string]any{
		"status": "shipped",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("customer ship: %d, want 403", rr.Code)
	}

	// Final state: cancelled, timeline ends at cancelled.
	rr = doJSON(t, a, http.MethodGet, "/v1/orders/"+placed.ID, customerToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	var final orders.Order
	if err := json.Unmarshal(rr.Body.Bytes(), &final); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if final.Status != orders.StatusCancelled {
		t.Fatalf("final status = %s", final.Status)
	}
	if last := final.Timeline[len(final.Timeline)-1]; last.Status != orders.StatusCancelled {
		t.Fatalf("timeline ends at %s", last.Status)
	}
}

func TestCustomersCannotSeeOthersOrders(t *testing.T) {
	a := newTestAPI(t)
	aliceToken, _ := login(t, a, "customer")
	malloryToken, _ := login(t, a, "customer")

	rr := doJSON(t, a, http.MethodPost, "/v1/orders", aliceToken, map[string]any{
		"items":            []map[string]any{{"product_id": "eggs", "quantity": 1, "unit_price": 540}},
		"delivery_address": "1 Lane",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("place: %d", rr.Code)
	}
	var placed orders.Order
	_ = json.Unmarshal(rr.Body.Bytes(), &placed)

	rr = doJSON(t, a, http.MethodGet, "/v1/orders/"+placed.ID, malloryToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign get: %d, want 404", rr.Code)
	}
}

func TestUnknownOrder404(t *testing.T) {
	a := newTestAPI(t)
	token, _ := login(t, a, "customer")
	rr := doJSON(t, a, http.MethodGet, "/v1/orders/AGO-00000000000000-0000", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}
}
