package domain

import (
	"errors"
	"strings"
)

// Authentication failures. ErrUnauthorized wraps the verifier's cause so
// callers can still tell an expired token from a malformed one.
var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// Upstream failures. These are server errors, never "user unauthenticated".
var (
	ErrProviderUnavailable  = errors.New("identity provider unavailable")
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)

var (
	ErrForbidden        = errors.New("access forbidden")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrIdentityConflict = errors.New("identity already exists")
)

// RoleError reports a route-level role check failure together with the
// roles that would have been accepted.
type RoleError struct {
	Role          Role
	RequiredRoles []Role
}

func (e *RoleError) Error() string {
	names := make([]string, len(e.RequiredRoles))
	for i, r := range e.RequiredRoles {
		names[i] = string(r)
	}
	return "role " + string(e.Role) + " not in [" + strings.Join(names, ", ") + "]"
}

func (e *RoleError) Unwrap() error { return ErrForbidden }
