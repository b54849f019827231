package auth

import (
	"fmt"
	"strings"
)

// Role is the single role carried by an authenticated identity.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleFarmer    Role = "farmer"
	RoleAdmin     Role = "admin"
	RoleLogistics Role = "logistics"
)

// Roles enumerates every valid role.
var Roles = []Role{RoleCustomer, RoleFarmer, RoleAdmin, RoleLogistics}

// ParseRole normalizes raw into a Role or fails with ErrInvalidRole.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	switch role {
	case RoleCustomer, RoleFarmer, RoleAdmin, RoleLogistics:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Identity is an authenticated principal with exactly one role.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}
