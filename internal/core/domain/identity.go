package domain

import (
	"strings"
	"time"
)

// Claims is what a TokenVerifier extracts from a valid bearer token.
type Claims struct {
	SubjectID string
	Email     string
	Expiry    time.Time
}

// Expired reports whether the claims are past their expiry at t.
// Claims without an expiry never expire.
func (c Claims) Expired(t time.Time) bool {
	return !c.Expiry.IsZero() && !t.Before(c.Expiry)
}

// Identity is the local record for an external subject.
type Identity struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Department string    `json:"department,omitempty"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	LastLogin  time.Time `json:"lastLogin"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewIdentity builds the record provisioned for a subject seen for the
// first time.
func NewIdentity(c Claims, now time.Time) Identity {
	return Identity{
		SubjectID: c.SubjectID,
		Email:     NormalizeEmail(c.Email),
		Role:      DefaultRole,
		LastLogin: now,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasRole reports whether the identity holds any of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an address so the unique index
// compares like the provider does.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
