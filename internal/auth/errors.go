package auth

import "errors"

var (
	// ErrInvalidRole indicates a role outside the enumerated set.
	ErrInvalidRole = errors.New("auth: invalid role")
	// ErrMissingToken indicates no bearer token was supplied.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken indicates the token is malformed, expired or badly signed.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrForbidden indicates an authenticated identity with an insufficient role.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrUnauthorized indicates failed credential exchange.
	ErrUnauthorized = errors.New("auth: unauthorized")
)
