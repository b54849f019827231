package auth

import "fmt"

// Authorize gates an operation on the route's declared allowed-role set.
// An empty set means every authenticated identity passes. Fails closed:
// a role outside the set is rejected with ErrForbidden.
func Authorize(identity Identity, allowed ...Role) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q not in allowed set", ErrForbidden, identity.Role)
}
