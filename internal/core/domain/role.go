package domain

import (
	"fmt"
	"strings"
)

// Role is a privilege label. The set is closed; see ParseRole.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleManager         Role = "manager"
	RoleSalesRep        Role = "sales_rep"
	RoleCustomerSupport Role = "customer_support"
	RoleReadOnly        Role = "read_only"
)

// DefaultRole is assigned to a subject provisioned on first login.
const DefaultRole = RoleReadOnly

var knownRoles = map[Role]struct{}{
	RoleAdmin:           {},
	RoleManager:         {},
	RoleSalesRep:        {},
	RoleCustomerSupport: {},
	RoleReadOnly:        {},
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}
