package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"agrolink.org/internal/audit"
	"agrolink.org/internal/auth"
)

// loginRequest covers both login modes: a bare role for demo sessions, or
// email/password for credential exchange against the user directory.
type loginRequest struct {
	Role     string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	Identity  auth.Identity `json:"identity"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var (
		token    string
		identity auth.Identity
		err      error
	)
	switch {
	case strings.TrimSpace(req.Email) != "":
		if a.directory == nil {
			writeError(w, r, http.StatusServiceUnavailable, "credential login is not configured")
			return
		}
		token, identity, err = auth.Login(r.Context(), a.directory, req.Email, req.Password)
	case strings.TrimSpace(req.Role) != "":
		token, identity, err = auth.Issue(req.Role)
	default:
		writeError(w, r, http.StatusBadRequest, "role or email is required")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRole):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUnauthorized):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, r, http.StatusInternalServerError, "token generation failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.session.issued", map[string]any{
		"identity_id": identity.ID,
		"role":        string(identity.Role),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Identity:  identity,
		ExpiresAt: time.Now().UTC().Add(auth.DefaultTTL),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
