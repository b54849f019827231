package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"agrolink.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth verifies the bearer token and attaches the resulting identity to
// the request context. A missing token yields 401, an invalid or expired one
// 403. Role checks happen later, per route.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="agrolink"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		identity, err := auth.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				w.Header().Set("WWW-Authenticate", `Bearer realm="agrolink"`)
				writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, r, http.StatusForbidden, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler on the route's declared allowed-role set via
// the authorization guard. Runs after withAuth has produced an identity.
func RequireRole(allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="agrolink"`)
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := auth.Authorize(identity, allowed...); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="agrolink"`)
				writeError(w, r, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
