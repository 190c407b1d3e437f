package ports

import (
	"context"
	"time"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// UserDirectory persists identities keyed by subject id.
//
// Store failures are reported wrapped in domain.ErrDirectoryUnavailable.
type UserDirectory interface {
	// FindBySubject returns domain.ErrNotFound when the subject is unknown.
	FindBySubject(ctx context.Context, subjectID string) (domain.Identity, error)

	// TouchLogin sets lastLogin on an existing identity and returns the
	// updated record, or domain.ErrNotFound.
	TouchLogin(ctx context.Context, subjectID string, at time.Time) (domain.Identity, error)

	// InsertOrGet atomically inserts seed unless an identity with the same
	// subject already exists, in which case the stored one is returned with
	// created=false. An email bound to a different subject yields
	// domain.ErrIdentityConflict.
	InsertOrGet(ctx context.Context, seed domain.Identity) (identity domain.Identity, created bool, err error)

	// UpdateRole returns domain.ErrNotFound when the subject is unknown.
	UpdateRole(ctx context.Context, subjectID string, role domain.Role, at time.Time) (domain.Identity, error)
}
